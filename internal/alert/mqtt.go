package alert

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSink publishes alerts to a broker topic the ops dashboard subscribes to.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// MQTTOptions broker connection settings.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

func NewMQTTSink(opts MQTTOptions) (*MQTTSink, error) {
	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetCleanSession(true)

	client := mqtt.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &MQTTSink{client: client, topic: opts.Topic, qos: 1}, nil
}

var _ Sink = (*MQTTSink)(nil)

func (s *MQTTSink) Raise(_ context.Context, a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	token := s.client.Publish(s.topic, s.qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish alert to %s: %w", s.topic, token.Error())
	}
	return nil
}

func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
}

package alert

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes alerts to the service log. Always registered so anomalies
// stay visible even when no broker or webhook is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

var _ Sink = (*LogSink)(nil)

func (s *LogSink) Raise(_ context.Context, a Alert) error {
	s.logger.Warn("anomaly alert",
		zap.String("type", a.Type),
		zap.String("severity", a.Severity),
		zap.String("client_ip", a.ClientIP),
		zap.Any("details", a.Details),
	)
	return nil
}

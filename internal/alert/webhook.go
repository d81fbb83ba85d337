package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebhookSink POSTs alerts to an ops endpoint (pager bridge, chat hook).
type WebhookSink struct {
	client *resty.Client
	url    string
}

func NewWebhookSink(url string) *WebhookSink {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json")

	return &WebhookSink{client: client, url: url}
}

var _ Sink = (*WebhookSink)(nil)

func (s *WebhookSink) Raise(ctx context.Context, a Alert) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(a).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("failed to deliver alert webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("alert webhook returned %d", resp.StatusCode())
	}
	return nil
}

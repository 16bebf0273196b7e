package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPSender posts confirmation requests to the notification service, which
// owns templating and the actual email delivery.
type HTTPSender struct {
	client *resty.Client
}

func NewHTTPSender(baseURL string, timeout time.Duration) *HTTPSender {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	return &HTTPSender{client: client}
}

func (s *HTTPSender) Send(ctx context.Context, confirmation OrderConfirmation) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(confirmation).
		Post("/api/notifications/order-confirmation")
	if err != nil {
		return fmt.Errorf("failed to reach notification service: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notification service returned %s", resp.Status())
	}
	return nil
}

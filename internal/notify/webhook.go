package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

// WebhookSender POSTs deliveries to a configured endpoint.
type WebhookSender struct {
	url     string
	client  *fasthttp.Client
	timeout time.Duration
}

func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		url:     url,
		client:  &fasthttp.Client{},
		timeout: timeout,
	}
}

func (s *WebhookSender) Send(_ context.Context, delivery Delivery) error {
	body, err := json.Marshal(delivery)
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := s.client.DoTimeout(req, resp, s.timeout); err != nil {
		return err
	}
	if code := resp.StatusCode(); code >= 300 {
		return fmt.Errorf("webhook returned status %d", code)
	}
	return nil
}

var _ Sender = (*WebhookSender)(nil)

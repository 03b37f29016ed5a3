package publish

import (
	"context"
	"fmt"
	"io"

	"github.com/wonny/rgm/internal/contracts"
	"github.com/wonny/rgm/pkg/httputil"
)

// WebhookPublisher POSTs the scenario summary to the dashboard collaborator
type WebhookPublisher struct {
	client *httputil.Client
	url    string
}

// NewWebhookPublisher creates a publisher for url
func NewWebhookPublisher(client *httputil.Client, url string) *WebhookPublisher {
	return &WebhookPublisher{client: client, url: url}
}

// Name implements Publisher
func (p *WebhookPublisher) Name() string { return "webhook" }

// Publish sends the summary; any non-2xx answer is an error
func (p *WebhookPublisher) Publish(ctx context.Context, result *contracts.ScenarioResult) error {
	resp, err := p.client.PostJSON(ctx, p.url, Summarize(result))
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook answered %d", resp.StatusCode)
	}
	return nil
}

package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/queuewatch/queuewatch/internal/alerting/service/engine"
	"github.com/rs/zerolog/log"
)

const defaultTimeout = 5 * time.Second

// Config describes the webhook destination for alert events.
type Config struct {
	WebhookURL string
	Timeout    time.Duration
	// Optional credentials. BearerToken takes precedence over basic auth.
	BearerToken string
	BasicUser   string
	BasicPass   string
}

// Notifier consumes firing and resolved events and delivers them as JSON
// POSTs to a webhook. Delivery is best-effort: a failed POST is logged and
// the event is not retried.
type Notifier struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Notifier{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// Run consumes events from ch until the context is canceled or the channel
// closes. Without a webhook URL events are logged only.
func (n *Notifier) Run(ctx context.Context, ch <-chan engine.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			n.deliver(ctx, event)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, event engine.Notification) {
	inst := event.Instance
	log.Info().
		Str("alert", inst.Name).
		Str("group", inst.Group).
		Str("state", inst.State.String()).
		Float64("value", inst.Value).
		Msg("alert state change")

	if n.cfg.WebhookURL == "" {
		return
	}
	if err := n.post(ctx, event); err != nil {
		log.Error().Err(err).Str("alert", inst.Name).Msg("webhook delivery failed")
	}
}

func (n *Notifier) post(ctx context.Context, event engine.Notification) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case n.cfg.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+n.cfg.BearerToken)
	case n.cfg.BasicUser != "":
		req.SetBasicAuth(n.cfg.BasicUser, n.cfg.BasicPass)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

type WebhookConfig struct {
	URL        string
	HTTPClient *http.Client
	// Location is the time zone used in summary text. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
}

// WebhookNotifier POSTs each notification as a JSON Message.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	loc        *time.Location
	now        func() time.Time
}

func NewWebhookNotifier(cfg WebhookConfig) (*WebhookNotifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook notifier: URL is required")
	}
	n := &WebhookNotifier{
		url:        cfg.URL,
		httpClient: cfg.HTTPClient,
		loc:        cfg.Location,
		now:        cfg.Now,
	}
	if n.httpClient == nil {
		n.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if n.now == nil {
		n.now = time.Now
	}
	return n, nil
}

var _ ports.Notifier = (*WebhookNotifier)(nil)

func (n *WebhookNotifier) NotifyVote(ctx context.Context, notice domain.VoteNotice) error {
	return n.post(ctx, voteMessage(notice, n.now()))
}

func (n *WebhookNotifier) NotifySummary(ctx context.Context, operatorAddress string, s *domain.CycleSummary) error {
	return n.post(ctx, summaryMessage(operatorAddress, s, n.loc, n.now()))
}

func (n *WebhookNotifier) post(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("webhook notifier: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook notifier: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook notifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return nil
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/velora-hq/threadboard-backend/internal/logger"
	"github.com/velora-hq/threadboard-backend/internal/types"
)

// ThreadMessagePayload is one chat line inside a scoring request.
type ThreadMessagePayload struct {
	Direction string    `json:"direction"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ThreadPayload is the per-thread body shipped to the scoring webhook. The
// webhook always receives a JSON array of these, even for a single thread.
type ThreadPayload struct {
	ThreadID        string                 `json:"thread_id"`
	Operator        string                 `json:"operator"`
	Model           string                 `json:"model"`
	Messages        []ThreadMessagePayload `json:"messages"`
	Converted       *string                `json:"converted"`
	LastMessageAt   *time.Time             `json:"last_message_at"`
	AvgResponseTime *float64               `json:"avg_response_time"`
	Responded       string                 `json:"responded"`
}

// BuildThreadPayload packages a thread summary and its chronological messages
// for the scorer. Average response time is expressed in seconds.
func BuildThreadPayload(thread *types.Thread, messages []*types.Message) ThreadPayload {
	msgs := make([]ThreadMessagePayload, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, ThreadMessagePayload{
			Direction: m.Direction,
			Text:      m.Text,
			Timestamp: m.CreatedAt,
		})
	}
	return ThreadPayload{
		ThreadID:        thread.ThreadID,
		Operator:        thread.Operator,
		Model:           thread.Model,
		Messages:        msgs,
		Converted:       thread.Converted,
		LastMessageAt:   thread.LastMessageAt,
		AvgResponseTime: thread.AvgResponseTimeSeconds,
		Responded:       thread.Responded,
	}
}

type WebhookClient interface {
	Post(ctx context.Context, payloads []ThreadPayload) (int, error)
}

type webhookHTTPError struct {
	StatusCode int
	Body       string
}

func (e *webhookHTTPError) Error() string {
	return fmt.Sprintf("webhook http %d: %s", e.StatusCode, e.Body)
}

type webhookClient struct {
	log        *logger.Logger
	url        string
	httpClient *http.Client
}

// NewWebhookClient builds the outbound client for the scoring webhook. URL and
// timeout are injected so tests can point it at a fake endpoint.
func NewWebhookClient(log *logger.Logger, url string, timeout time.Duration) (WebhookClient, error) {
	if url == "" {
		return nil, fmt.Errorf("missing webhook url")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &webhookClient{
		log:        log.With("service", "WebhookClient"),
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (wc *webhookClient) Post(ctx context.Context, payloads []ThreadPayload) (int, error) {
	body, err := json.Marshal(payloads)
	if err != nil {
		return 0, fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := wc.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// keep the error body short; it only ends up in logs and the audit row
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return resp.StatusCode, &webhookHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"unibox/internal/core/ingest"
	"unibox/platform/logger"
)

// HTTPSink posts ingested messages to an external automation engine. The
// pipeline already bounds and isolates the call, so the sink just makes a
// plain request and reports the outcome.
type HTTPSink struct {
	httpClient *http.Client
	url        string
	logger     *logger.Logger
}

func NewHTTPSink(url string, appLogger *logger.Logger) *HTTPSink {
	return &HTTPSink{
		httpClient: &http.Client{},
		url:        url,
		logger:     appLogger.WithModule("automation"),
	}
}

func (s *HTTPSink) OnMessageIngested(ctx context.Context, msg ingest.IngestedMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal automation payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create automation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("automation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("automation engine returned %d: %s", resp.StatusCode, string(respBody))
	}

	s.logger.DebugWithFields("Automation notified", map[string]interface{}{
		"conversation_id": msg.ConversationID.String(),
	})

	return nil
}

// NoopSink discards every notification. Used when no automation engine is
// configured.
type NoopSink struct{}

func (NoopSink) OnMessageIngested(context.Context, ingest.IngestedMessage) error {
	return nil
}

package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"unibox/internal/core/platformconfig"
	"unibox/platform/logger"
)

const (
	defaultBaseURL = "https://graph.facebook.com"
	apiVersion     = "v19.0"
)

// Client sends messages through the Messenger Platform Send API. Facebook
// pages and Instagram professional accounts use the same endpoint, so one
// client serves both as a dispatch.APISender.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

// NewClient builds a Send API client against graph.facebook.com.
func NewClient(appLogger *logger.Logger) *Client {
	return NewClientWithBaseURL(defaultBaseURL, appLogger)
}

// NewClientWithBaseURL builds a client against a custom Graph API host.
func NewClientWithBaseURL(baseURL string, appLogger *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		logger:     appLogger.WithModule("meta-client"),
	}
}

type sendRequest struct {
	Recipient     recipientRef `json:"recipient"`
	Message       messageBody  `json:"message"`
	MessagingType string       `json:"messaging_type"`
}

type recipientRef struct {
	ID string `json:"id"`
}

type messageBody struct {
	Text string `json:"text"`
}

type sendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// apiError is the Graph API error envelope. Its message is surfaced
// verbatim so operators see what the provider said.
type apiError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
	FBTraceID    string `json:"fbtrace_id"`
}

// SendText posts a text message to a page-scoped recipient id using the
// config's page access token. Returns the provider message id.
func (c *Client) SendText(ctx context.Context, cfg *platformconfig.Config, recipientID, text string) (string, error) {
	payload := sendRequest{
		Recipient:     recipientRef{ID: recipientID},
		Message:       messageBody{Text: text},
		MessagingType: "RESPONSE",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/me/messages", c.baseURL, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.URL.RawQuery = "access_token=" + cfg.Token()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("graph api request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read graph api response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope errorResponse
		if err := json.Unmarshal(respBody, &envelope); err != nil || envelope.Error.Message == "" {
			return "", fmt.Errorf("graph api error %d: %s", resp.StatusCode, string(respBody))
		}

		c.logger.ErrorWithFields("Graph API send failed", map[string]interface{}{
			"status_code":   resp.StatusCode,
			"error_code":    envelope.Error.Code,
			"error_subcode": envelope.Error.ErrorSubcode,
			"fbtrace_id":    envelope.Error.FBTraceID,
			"recipient_id":  recipientID,
		})

		return "", fmt.Errorf("%s", envelope.Error.Message)
	}

	var sendResp sendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		// HTTP 200 means the send was accepted even if the body surprised us.
		c.logger.WarnWithFields("Unexpected Graph API success body", map[string]interface{}{
			"body": string(respBody),
		})
		return "", nil
	}

	c.logger.InfoWithFields("Message sent via Graph API", map[string]interface{}{
		"recipient_id": recipientID,
		"message_id":   sendResp.MessageID,
	})

	return sendResp.MessageID, nil
}

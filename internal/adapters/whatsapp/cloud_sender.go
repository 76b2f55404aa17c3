package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"unibox/internal/core/platformconfig"
	"unibox/internal/core/shared/errors"
	"unibox/platform/logger"
)

const (
	defaultBaseURL = "https://graph.facebook.com"
	apiVersion     = "v19.0"
)

// CloudSender sends text messages through the WhatsApp Business Cloud API
// as a dispatch.APISender.
type CloudSender struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

// NewCloudSender builds a sender against graph.facebook.com.
func NewCloudSender(appLogger *logger.Logger) *CloudSender {
	return NewCloudSenderWithBaseURL(defaultBaseURL, appLogger)
}

// NewCloudSenderWithBaseURL builds a sender against a custom host.
func NewCloudSenderWithBaseURL(baseURL string, appLogger *logger.Logger) *CloudSender {
	return &CloudSender{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		logger:     appLogger.WithModule("whatsapp-cloud"),
	}
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText posts a text message to a phone number using the config's
// access token and phone number id. Returns the provider message id.
func (s *CloudSender) SendText(ctx context.Context, cfg *platformconfig.Config, recipientID, text string) (string, error) {
	if cfg.PhoneNumberID == nil || *cfg.PhoneNumberID == "" {
		return "", fmt.Errorf("%w: config has no phone number id", errors.ErrInvalidInput)
	}

	payload := sendRequest{
		MessagingProduct: "whatsapp",
		To:               recipientID,
		Type:             "text",
		Text:             textBody{Body: text},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", s.baseURL, apiVersion, *cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.Token())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloud api request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read cloud api response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope errorResponse
		if err := json.Unmarshal(respBody, &envelope); err != nil || envelope.Error.Message == "" {
			return "", fmt.Errorf("cloud api error %d: %s", resp.StatusCode, string(respBody))
		}

		s.logger.ErrorWithFields("Cloud API send failed", map[string]interface{}{
			"status_code":  resp.StatusCode,
			"error_code":   envelope.Error.Code,
			"error_type":   envelope.Error.Type,
			"recipient_id": recipientID,
		})

		return "", fmt.Errorf("%s", envelope.Error.Message)
	}

	var sendResp sendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil || len(sendResp.Messages) == 0 {
		s.logger.WarnWithFields("Unexpected Cloud API success body", map[string]interface{}{
			"body": string(respBody),
		})
		return "", nil
	}

	s.logger.InfoWithFields("Message sent via Cloud API", map[string]interface{}{
		"recipient_id": recipientID,
		"message_id":   sendResp.Messages[0].ID,
	})

	return sendResp.Messages[0].ID, nil
}

package handler

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"unibox/internal/adapters/http/middleware"
	"unibox/internal/adapters/http/shared"
	"unibox/internal/core/ingest"
	"unibox/internal/core/platform"
	"unibox/internal/core/platformconfig"
	"unibox/internal/core/shared/errors"
	"unibox/internal/core/webhooklog"
	"unibox/platform/logger"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandler terminates the provider-facing webhook endpoints: the
// subscription handshake on GET and event delivery on POST.
type WebhookHandler struct {
	verifier    *platformconfig.Verifier
	normalizers map[platform.Platform]ingest.Normalizer
	pipeline    *ingest.Pipeline
	logs        webhooklog.Repository
	logger      *logger.Logger
}

func NewWebhookHandler(
	verifier *platformconfig.Verifier,
	normalizers map[platform.Platform]ingest.Normalizer,
	pipeline *ingest.Pipeline,
	logs webhooklog.Repository,
	appLogger *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:    verifier,
		normalizers: normalizers,
		pipeline:    pipeline,
		logs:        logs,
		logger:      appLogger.WithModule("webhook-handler"),
	}
}

// Verify handles the Meta webhook subscription handshake
// (GET /webhooks/{platform}).
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	p, ok := platform.Parse(chi.URLParam(r, "platform"))
	if !ok {
		shared.WriteError(w, http.StatusNotFound, "unknown platform", "UNKNOWN_PLATFORM")
		return
	}

	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	echo, err := h.verifier.VerifyHandshake(r.Context(), p, mode, token, challenge)
	if err != nil {
		h.logger.WarnWithFields("Webhook verification rejected", map[string]interface{}{
			"platform": p.String(),
			"mode":     mode,
			"ip":       middleware.GetClientIP(r),
			"error":    err.Error(),
		})

		switch {
		case stderrors.Is(err, errors.ErrInvalidHandshakeMode):
			shared.WriteError(w, http.StatusBadRequest, "unsupported hub.mode", "INVALID_MODE")
		case stderrors.Is(err, errors.ErrNoConfigAvailable):
			shared.WriteError(w, http.StatusNotFound, "no verify token configured", "NO_CONFIG")
		case stderrors.Is(err, errors.ErrVerifyTokenMismatch):
			shared.WriteError(w, http.StatusForbidden, "verify token mismatch", "TOKEN_MISMATCH")
		default:
			shared.WriteError(w, http.StatusInternalServerError, "verification failed", "INTERNAL")
		}
		return
	}

	h.logger.InfoWithFields("Webhook verified", map[string]interface{}{
		"platform": p.String(),
	})

	// The challenge goes back verbatim as plain text, not JSON.
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(echo))
}

// Receive handles event delivery (POST /webhooks/{platform}). The provider
// retries non-2xx responses, so only a genuine storage fault returns 500;
// unparseable or unrecognized payloads are acknowledged and logged.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	p, ok := platform.Parse(chi.URLParam(r, "platform"))
	if !ok {
		shared.WriteError(w, http.StatusNotFound, "unknown platform", "UNKNOWN_PLATFORM")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		shared.WriteJSON(w, http.StatusOK, shared.WebhookAck{Status: "success"})
		return
	}

	// The raw payload must be durably audited before anything is acked.
	// A failed insert returns 500 so the provider redelivers; the ledger's
	// unique index makes the redelivery a safe no-op.
	entry := webhooklog.NewEntry(p, "message", body, middleware.GetClientIP(r))
	if err := h.logs.Create(r.Context(), entry); err != nil {
		h.logger.ErrorWithFields("Failed to persist webhook log", map[string]interface{}{
			"platform": p.String(),
			"error":    err.Error(),
		})
		shared.WriteJSON(w, http.StatusInternalServerError, shared.WebhookAck{
			Status:  "error",
			Message: "failed to record delivery",
		})
		return
	}

	normalizer, ok := h.normalizers[p]
	if !ok {
		shared.WriteError(w, http.StatusNotFound, "unknown platform", "UNKNOWN_PLATFORM")
		return
	}

	events, err := normalizer.Normalize(body)
	if err != nil {
		// Not our shape. Acknowledge so the provider stops retrying, keep
		// the raw payload in the log for inspection.
		h.logger.WarnWithFields("Unparseable webhook payload", map[string]interface{}{
			"platform": p.String(),
			"error":    err.Error(),
		})
		h.markProcessed(r, entry, err.Error())
		shared.WriteJSON(w, http.StatusOK, shared.WebhookAck{Status: "success"})
		return
	}

	for _, ev := range events {
		if _, err := h.pipeline.ProcessEvent(r.Context(), ev); err != nil {
			h.logger.ErrorWithFields("Webhook ingestion failed", map[string]interface{}{
				"platform":    p.String(),
				"external_id": ev.ExternalMessageID,
				"error":       err.Error(),
			})
			h.markProcessed(r, entry, err.Error())
			shared.WriteJSON(w, http.StatusInternalServerError, shared.WebhookAck{
				Status:  "error",
				Message: err.Error(),
			})
			return
		}
	}

	h.markProcessed(r, entry, "")
	shared.WriteJSON(w, http.StatusOK, shared.WebhookAck{Status: "success"})
}

// Logs handles GET /webhooks/{platform}/logs: the recent audit trail of
// raw deliveries for a platform. Unlike the provider-facing endpoints this
// one sits behind the API key.
func (h *WebhookHandler) Logs(w http.ResponseWriter, r *http.Request) {
	p, ok := platform.Parse(chi.URLParam(r, "platform"))
	if !ok {
		shared.WriteError(w, http.StatusNotFound, "unknown platform", "UNKNOWN_PLATFORM")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	entries, err := h.logs.ListRecent(r.Context(), p, limit)
	if err != nil {
		shared.WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
		return
	}

	shared.WriteSuccess(w, http.StatusOK, entries)
}

func (h *WebhookHandler) markProcessed(r *http.Request, entry *webhooklog.Entry, processingError string) {
	var errPtr *string
	if processingError != "" {
		errPtr = &processingError
	}
	if err := h.logs.MarkProcessed(r.Context(), entry.ID, errPtr); err != nil {
		h.logger.ErrorWithFields("Failed to mark webhook log processed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

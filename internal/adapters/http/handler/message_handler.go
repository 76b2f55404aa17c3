package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"unibox/internal/adapters/http/shared"
	"unibox/internal/core/contact"
	"unibox/internal/core/conversation"
	"unibox/internal/core/dispatch"
	"unibox/internal/core/message"
	"unibox/internal/core/platform"
	"unibox/internal/core/shared/errors"
	"unibox/platform/logger"
)

// MessageHandler exposes outbound sending and conversation history to the
// internal API.
type MessageHandler struct {
	dispatcher    *dispatch.Dispatcher
	contacts      *contact.Service
	conversations *conversation.Service
	ledger        *message.Service
	validate      *validator.Validate
	logger        *logger.Logger
}

func NewMessageHandler(
	dispatcher *dispatch.Dispatcher,
	contacts *contact.Service,
	conversations *conversation.Service,
	ledger *message.Service,
	appLogger *logger.Logger,
) *MessageHandler {
	return &MessageHandler{
		dispatcher:    dispatcher,
		contacts:      contacts,
		conversations: conversations,
		ledger:        ledger,
		validate:      validator.New(),
		logger:        appLogger.WithModule("message-handler"),
	}
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	Text           string `json:"text" validate:"required"`
}

type sendToContactRequest struct {
	Platform string `json:"platform" validate:"required"`
	Text     string `json:"text" validate:"required"`
}

// Send handles POST /messages/send: text on an existing conversation. The
// transport outcome comes back as a uniform result with HTTP 200; only
// request-shape problems use error statuses.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, "invalid request body", "INVALID_BODY")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err.Error(), "VALIDATION_FAILED")
		return
	}

	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		shared.WriteError(w, http.StatusBadRequest, "invalid conversation id", "INVALID_ID")
		return
	}

	conv, err := h.conversations.Get(r.Context(), conversationID)
	if err != nil {
		if stderrors.Is(err, errors.ErrConversationNotFound) {
			shared.WriteError(w, http.StatusNotFound, "conversation not found", "NOT_FOUND")
			return
		}
		shared.WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
		return
	}

	result := h.dispatcher.SendUnifiedMessage(r.Context(), conv, req.Text)
	shared.WriteJSON(w, http.StatusOK, result)
}

// SendToContact handles POST /contacts/{id}/send: resolves the contact's
// identifier on the requested platform and dispatches through their open
// conversation.
func (h *MessageHandler) SendToContact(w http.ResponseWriter, r *http.Request) {
	contactID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, http.StatusBadRequest, "invalid contact id", "INVALID_ID")
		return
	}

	var req sendToContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, "invalid request body", "INVALID_BODY")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err.Error(), "VALIDATION_FAILED")
		return
	}

	p, ok := platform.Parse(req.Platform)
	if !ok {
		shared.WriteError(w, http.StatusBadRequest, "unknown platform", "UNKNOWN_PLATFORM")
		return
	}

	ct, err := h.contacts.Get(r.Context(), contactID)
	if err != nil {
		if stderrors.Is(err, errors.ErrContactNotFound) {
			shared.WriteError(w, http.StatusNotFound, "contact not found", "NOT_FOUND")
			return
		}
		shared.WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
		return
	}

	result := h.dispatcher.SendToContact(r.Context(), ct, p, req.Text)
	shared.WriteJSON(w, http.StatusOK, result)
}

type historyResponse struct {
	Messages []*message.Message `json:"messages"`
	Total    int64              `json:"total"`
}

// History handles GET /conversations/{id}/messages with limit/offset
// paging. Total counts every message in the conversation, not just the
// returned page.
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, http.StatusBadRequest, "invalid conversation id", "INVALID_ID")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	msgs, err := h.ledger.ListByConversation(r.Context(), conversationID, limit, offset)
	if err != nil {
		shared.WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
		return
	}

	total, err := h.ledger.CountByConversation(r.Context(), conversationID)
	if err != nil {
		shared.WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
		return
	}

	shared.WriteSuccess(w, http.StatusOK, historyResponse{Messages: msgs, Total: total})
}

package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"unibox/internal/adapters/http/shared"
	"unibox/internal/core/conversation"
	"unibox/internal/core/shared/errors"
	"unibox/platform/logger"
)

// ConversationHandler exposes agent-facing conversation state changes.
type ConversationHandler struct {
	conversations *conversation.Service
	validate      *validator.Validate
	logger        *logger.Logger
}

func NewConversationHandler(conversations *conversation.Service, appLogger *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		validate:      validator.New(),
		logger:        appLogger.WithModule("conversation-handler"),
	}
}

type assignRequest struct {
	AgentID string `json:"agent_id" validate:"required,uuid"`
}

// Get handles GET /conversations/{id}.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, http.StatusBadRequest, "invalid conversation id", "INVALID_ID")
		return
	}

	conv, err := h.conversations.Get(r.Context(), id)
	if err != nil {
		h.writeConversationError(w, err)
		return
	}

	shared.WriteSuccess(w, http.StatusOK, conv)
}

// Assign handles POST /conversations/{id}/assign: hands the conversation
// to an agent and moves it to en_proceso.
func (h *ConversationHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, http.StatusBadRequest, "invalid conversation id", "INVALID_ID")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, "invalid request body", "INVALID_BODY")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err.Error(), "VALIDATION_FAILED")
		return
	}

	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		shared.WriteError(w, http.StatusBadRequest, "invalid agent id", "INVALID_ID")
		return
	}

	conv, err := h.conversations.Assign(r.Context(), id, agentID)
	if err != nil {
		h.writeConversationError(w, err)
		return
	}

	shared.WriteSuccess(w, http.StatusOK, conv)
}

// Close handles POST /conversations/{id}/close. Closing an already closed
// conversation succeeds and returns it unchanged.
func (h *ConversationHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, http.StatusBadRequest, "invalid conversation id", "INVALID_ID")
		return
	}

	conv, err := h.conversations.Close(r.Context(), id)
	if err != nil {
		h.writeConversationError(w, err)
		return
	}

	shared.WriteSuccess(w, http.StatusOK, conv)
}

func (h *ConversationHandler) writeConversationError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, errors.ErrConversationNotFound):
		shared.WriteError(w, http.StatusNotFound, "conversation not found", "NOT_FOUND")
	case stderrors.Is(err, errors.ErrConversationClosed):
		shared.WriteError(w, http.StatusConflict, "conversation is closed", "CONVERSATION_CLOSED")
	default:
		shared.WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
	}
}

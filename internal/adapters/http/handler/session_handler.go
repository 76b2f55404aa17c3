package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"unibox/internal/adapters/http/shared"
	"unibox/internal/adapters/whatsapp"
	"unibox/internal/core/shared/errors"
	"unibox/platform/logger"
)

// SessionHandler manages the lifecycle of persistent WhatsApp sessions.
type SessionHandler struct {
	gateway *whatsapp.Gateway
	logger  *logger.Logger
}

func NewSessionHandler(gateway *whatsapp.Gateway, appLogger *logger.Logger) *SessionHandler {
	return &SessionHandler{
		gateway: gateway,
		logger:  appLogger.WithModule("session-handler"),
	}
}

type qrResponse struct {
	Code  string `json:"code,omitempty"`
	Image string `json:"image,omitempty"`
}

// Connect handles POST /sessions/{name}/connect. Unpaired devices start
// the QR flow; poll the qr endpoint for the code.
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.gateway.Connect(r.Context(), name); err != nil {
		h.logger.ErrorWithFields("Session connect failed", map[string]interface{}{
			"session_name": name,
			"error":        err.Error(),
		})
		shared.WriteError(w, http.StatusInternalServerError, err.Error(), "CONNECT_FAILED")
		return
	}

	shared.WriteSuccess(w, http.StatusOK, map[string]string{"session": name, "state": "connecting"})
}

// QR handles GET /sessions/{name}/qr.
func (h *SessionHandler) QR(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	code, image, err := h.gateway.QRCode(name)
	if err != nil {
		if stderrors.Is(err, errors.ErrSessionNotConnected) {
			shared.WriteError(w, http.StatusNotFound, "session not found", "NOT_FOUND")
			return
		}
		shared.WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
		return
	}

	shared.WriteSuccess(w, http.StatusOK, qrResponse{Code: code, Image: image})
}

// Status handles GET /sessions/{name}/status.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	status, err := h.gateway.Status(name)
	if err != nil {
		if stderrors.Is(err, errors.ErrSessionNotConnected) {
			shared.WriteError(w, http.StatusNotFound, "session not found", "NOT_FOUND")
			return
		}
		shared.WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
		return
	}

	shared.WriteSuccess(w, http.StatusOK, status)
}

// Logout handles POST /sessions/{name}/logout.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.gateway.Logout(r.Context(), name); err != nil {
		if stderrors.Is(err, errors.ErrSessionNotConnected) {
			shared.WriteError(w, http.StatusNotFound, "session not found", "NOT_FOUND")
			return
		}
		shared.WriteError(w, http.StatusInternalServerError, err.Error(), "LOGOUT_FAILED")
		return
	}

	shared.WriteSuccess(w, http.StatusOK, map[string]string{"session": name, "state": "logged_out"})
}

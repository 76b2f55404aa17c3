package errors

import (
	"errors"
)

// Common domain errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternal      = errors.New("internal error")
)

// Ingestion errors
var (
	ErrContactNotFound      = errors.New("contact not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationClosed   = errors.New("conversation is closed")
	ErrMessageNotFound      = errors.New("message not found")
	// ErrMessageDuplicate marks a redelivery of an already ingested external
	// message id. Callers treat it as a successful no-op, never a failure.
	ErrMessageDuplicate = errors.New("message already processed")
)

// Configuration and dispatch errors
var (
	ErrConfigNotFound = errors.New("platform configuration not found")
	// ErrNoConfigAvailable means no credential set resolves for a platform.
	// Retrying does not help without operator action.
	ErrNoConfigAvailable    = errors.New("no configuration available for platform")
	ErrUnsupportedPlatform  = errors.New("unsupported platform")
	ErrSessionNotConnected  = errors.New("session transport not connected")
	ErrVerifyTokenMismatch  = errors.New("verify token mismatch")
	ErrInvalidHandshakeMode = errors.New("invalid handshake mode")
)

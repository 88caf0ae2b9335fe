package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"order-ledger/internal/app"
	"order-ledger/internal/backup"
	"order-ledger/internal/core"
	"order-ledger/internal/imagestore"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps a service error onto a status code and error code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var restoreErr *backup.RestoreError
	switch {
	case errors.Is(err, core.ErrValidation), errors.Is(err, imagestore.ErrInvalidID):
		writeError(w, r, err.Error(), "VALIDATION_ERROR", http.StatusBadRequest)
	case errors.Is(err, core.ErrOrderNotFound), errors.Is(err, app.ErrItemNotFound), errors.Is(err, imagestore.ErrImageNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &restoreErr):
		writeError(w, r, restoreErr.Error(), "RESTORE_FAILED", http.StatusUnprocessableEntity)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, r, "request timed out", "TIMEOUT", http.StatusServiceUnavailable)
	default:
		loggerFromContext(r.Context()).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package utils

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rohits-web03/vidtube/internal/apperror"
	"github.com/rohits-web03/vidtube/internal/logging"
)

type Payload struct {
	StatusCode int    `json:"statusCode"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

// JSONResponse sends a JSON response with given status and payload.
// StatusCode in the body always mirrors the HTTP status.
func JSONResponse(w http.ResponseWriter, status int, payload Payload) {
	payload.StatusCode = status
	payload.Success = status < http.StatusBadRequest
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError renders err as the error envelope. The cause is logged, only the
// client-facing message is sent.
func WriteError(ctx context.Context, w http.ResponseWriter, logger logging.Logger, err error) {
	appErr := apperror.As(err)
	status := appErr.StatusCode()
	if status >= http.StatusInternalServerError {
		logger.Error(ctx, "request failed", "kind", appErr.Kind.String(), "err", err)
	} else {
		logger.Debug(ctx, "request rejected", "kind", appErr.Kind.String(), "message", appErr.Message)
	}
	JSONResponse(w, status, Payload{Message: appErr.Message})
}

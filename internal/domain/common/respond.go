package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

// WriteJSON encodes v as the JSON response body
func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// WriteError maps domain errors to HTTP status codes. Handlers map their
// package-local errors before falling back to this.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, ErrBadRequest):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.Any("error", err))
	}
	WriteJSON(w, logger, status, errorResponse{Error: err.Error()})
}

// WriteErrorStatus writes an error with an explicit status
func WriteErrorStatus(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	WriteJSON(w, logger, status, errorResponse{Error: err.Error()})
}

// DecodeJSON decodes the request body into v. An empty body is not an
// error: v keeps its zero value, for endpoints whose body is optional.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

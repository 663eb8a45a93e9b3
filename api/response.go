package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/xraph/flowsync"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}

// writeStoreError maps store and engine errors to HTTP responses.
func (a *API) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, flowsync.ErrTenantNotFound),
		errors.Is(err, flowsync.ErrDLQNotFound),
		errors.Is(err, flowsync.ErrDeliveryNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, flowsync.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, flowsync.ErrDuplicateTenant):
		writeError(w, http.StatusConflict, "duplicate", err.Error())
	case errors.Is(err, flowsync.ErrUnknownFlow):
		writeError(w, http.StatusBadRequest, "unknown_flow", err.Error())
	case errors.Is(err, flowsync.ErrMalformedSchedule):
		writeError(w, http.StatusBadRequest, "malformed_schedule", err.Error())
	default:
		a.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + key + " parameter")
	}
	return n, nil
}

func queryLimit(r *http.Request) (int, error) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		return 0, err
	}
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

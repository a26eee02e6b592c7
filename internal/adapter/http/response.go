package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/validation"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error   string                   `json:"error"`
	Message string                   `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	// headers are gone by now, nothing useful to do on failure
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	// an empty body decodes to the zero value; use cases validate it
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return validation.Errorf("invalid JSON body: %v", err)
	}
	return nil
}

// writeError maps domain errors onto status codes in one place.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status = http.StatusInternalServerError
		body   = errorBody{Error: "internal", Message: "internal error"}
		verr   *validation.Error
	)
	switch {
	case errors.Is(err, errUnauthenticated):
		status, body = http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: err.Error()}
	case errors.As(err, &verr):
		status, body = http.StatusBadRequest, errorBody{Error: "validation", Message: verr.Error(), Fields: verr.Fields}
	case errors.Is(err, domain.ErrValidation):
		status, body = http.StatusBadRequest, errorBody{Error: "validation", Message: err.Error()}
	case errors.Is(err, domain.ErrForbidden):
		status, body = http.StatusForbidden, errorBody{Error: "forbidden", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		status, body = http.StatusNotFound, errorBody{Error: "not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrSubscriptionCompleted):
		status, body = http.StatusConflict, errorBody{Error: "subscription_completed", Message: err.Error()}
	case errors.Is(err, domain.ErrCampaignNotRunning):
		status, body = http.StatusConflict, errorBody{Error: "campaign_not_running", Message: err.Error()}
	case errors.Is(err, domain.ErrNoSubscription):
		status, body = http.StatusConflict, errorBody{Error: "no_subscription", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidTransition):
		status, body = http.StatusConflict, errorBody{Error: "invalid_transition", Message: err.Error()}
	case errors.Is(err, domain.ErrLedgerRetryable):
		w.Header().Set("Retry-After", "1")
		status, body = http.StatusServiceUnavailable, errorBody{Error: "retryable", Message: "ledger busy, retry"}
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err))
	}
	writeJSON(w, status, body)
}

func pathError(name string) error {
	return validation.Errorf("missing path parameter %s", name)
}

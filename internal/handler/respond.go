package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/security/audit"
)

const maxBodyBytes = 1 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeErrorMessage(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeJSON(w, logger, status, ErrorResponse{Error: message})
}

// decodeJSON reads a bounded JSON body into dst. An empty body decodes as
// an empty object so required-field checks produce the usual message.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeError is the only place errors become status codes. Messages of
// validation, not-found and caller-fault upstream errors are shown verbatim;
// anything unexpected is logged, reported to Sentry and hidden.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		upstream   *domain.UpstreamError
	)

	switch {
	case errors.As(err, &validation):
		writeErrorMessage(w, logger, http.StatusBadRequest, validation.Message)
	case errors.As(err, &notFound):
		writeErrorMessage(w, logger, http.StatusNotFound, notFound.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeErrorMessage(w, logger, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrUnauthorized):
		writeErrorMessage(w, logger, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeErrorMessage(w, logger, http.StatusForbidden, "Forbidden")
	case errors.Is(err, domain.ErrInsufficientSeats):
		writeErrorMessage(w, logger, http.StatusConflict, "Not enough seats available")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeErrorMessage(w, logger, http.StatusConflict, "This ride or request can no longer be changed")
	case errors.As(err, &upstream) && upstream.ClientFault:
		writeErrorMessage(w, logger, http.StatusBadRequest, upstream.Message)
	default:
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", audit.RequestID(r.Context())),
			slog.String("error", err.Error()),
		)
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		hub.CaptureException(err)
		writeErrorMessage(w, logger, http.StatusInternalServerError, "Internal server error")
	}
}

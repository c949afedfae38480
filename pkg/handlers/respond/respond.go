// Package respond writes the service's JSON envelope.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hoangteo0103/ticket-reservations/pkg/api"
	"github.com/hoangteo0103/ticket-reservations/pkg/apperrors"
	"github.com/hoangteo0103/ticket-reservations/pkg/mapping"
)

// Data writes a successful envelope carrying data.
func Data(w http.ResponseWriter, status int, data interface{}) {
	api.WriteEnvelope(w, status, api.Envelope{Success: true, Data: data})
}

// Error writes a failure envelope for err. Only the kind and the caller-safe
// reason are rendered; the cause of an internal failure is logged.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := apperrors.KindOf(err)
	status := mapping.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "kind", kind, "error", err)
	}
	api.WriteEnvelope(w, status, api.Envelope{
		Error: &api.ErrorBody{Kind: string(kind), Message: apperrors.ReasonOf(err)},
	})
}

// Decode reads a JSON request body into dest.
func Decode(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return apperrors.New(apperrors.InvalidArgument, "Invalid request body: %v", err)
	}
	return nil
}

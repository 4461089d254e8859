package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/salonbook/salonbook/libs/httpx"
	"github.com/salonbook/salonbook/services/appointment-service/internal/availability"
	"github.com/salonbook/salonbook/services/appointment-service/internal/booking"
)

type errorBody struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps booking errors to status codes. Repository failures are logged and answered
// with a generic body.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid input", Field: verr.Field, Reason: verr.Reason})
	case errors.Is(err, availability.ErrRejected):
		reason, _ := availability.ReasonOf(err)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "time not available", Reason: string(reason)})
	case errors.Is(err, booking.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "time slot already booked"})
	case errors.Is(err, booking.ErrNotAuthorized):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "not authorized"})
	case errors.Is(err, booking.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "appointment not found"})
	default:
		logger.Error("appointment request failed",
			"err", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", httpx.RequestIDFromContext(r.Context()),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/salonbook/salonbook/services/appointment-service/internal/booking"
	"github.com/salonbook/salonbook/services/appointment-service/internal/model"
)

type AppointmentHandler struct {
	svc    *booking.Service
	logger *slog.Logger
	loc    *time.Location
}

// NewAppointmentHandler renders times in loc, the operating timezone.
func NewAppointmentHandler(svc *booking.Service, logger *slog.Logger, loc *time.Location) *AppointmentHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AppointmentHandler{svc: svc, logger: logger, loc: loc}
}

// Register mounts the appointment routes on mux. protect wraps every route and must at least
// resolve the caller, e.g. RequireIdentity.
func (h *AppointmentHandler) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protect(fn))
	}
	route("GET /api/appointments", h.ListOwn)
	route("POST /api/appointments", h.Create)
	route("GET /api/appointments/all", h.ListAll)
	route("GET /api/appointments/stats", h.Stats)
	route("PUT /api/my/{id}", h.UpdateOwn)
	route("DELETE /api/my/{id}", h.DeleteOwn)
	route("PUT /api/{id}", h.AdminUpdate)
	route("DELETE /api/{id}", h.AdminDelete)
}

type appointmentRequest struct {
	DateTime  string `json:"dateTime"`
	Service   string `json:"service"`
	Attribute string `json:"attribute"`
	Name      string `json:"name"`
	Status    string `json:"status"`
}

type appointmentResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"ownerId"`
	DateTime  string `json:"dateTime"`
	Service   string `json:"service"`
	Attribute string `json:"attribute"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type statsResponse struct {
	CountToday           int                   `json:"countToday"`
	CountThisWeek        int                   `json:"countThisWeek"`
	DistinctActiveOwners int                   `json:"distinctActiveOwners"`
	Today                []appointmentResponse `json:"today"`
}

func (h *AppointmentHandler) render(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:        a.ID,
		OwnerID:   a.OwnerID,
		DateTime:  a.DateTime.In(h.loc).Format(time.RFC3339),
		Service:   a.Service,
		Attribute: a.Attribute,
		Name:      a.ClientName,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *AppointmentHandler) renderAll(appts []model.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, h.render(a))
	}
	return out
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (appointmentRequest, bool) {
	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
			return req, false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return req, false
	}
	return req, true
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Create(r.Context(), id, booking.CreateInput{
		DateTime:   req.DateTime,
		Service:    req.Service,
		Attribute:  req.Attribute,
		ClientName: req.Name,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.render(appt))
}

func (h *AppointmentHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	appts, err := h.svc.ListOwn(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.renderAll(appts))
}

func (h *AppointmentHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	appts, err := h.svc.ListAll(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.renderAll(appts))
}

func (h *AppointmentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	st, err := h.svc.Stats(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		CountToday:           st.CountToday,
		CountThisWeek:        st.CountThisWeek,
		DistinctActiveOwners: st.DistinctActiveOwners,
		Today:                h.renderAll(st.Today),
	})
}

func (h *AppointmentHandler) UpdateOwn(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.UpdateOwn(r.Context(), id, r.PathValue("id"), booking.UpdateInput{
		DateTime:   req.DateTime,
		Service:    req.Service,
		Attribute:  req.Attribute,
		ClientName: req.Name,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render(appt))
}

func (h *AppointmentHandler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.AdminUpdate(r.Context(), id, r.PathValue("id"), booking.AdminUpdateInput{
		UpdateInput: booking.UpdateInput{
			DateTime:   req.DateTime,
			Service:    req.Service,
			Attribute:  req.Attribute,
			ClientName: req.Name,
		},
		Status: req.Status,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.render(appt))
}

func (h *AppointmentHandler) DeleteOwn(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	if err := h.svc.DeleteOwn(r.Context(), id, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AppointmentHandler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	if err := h.svc.AdminDelete(r.Context(), id, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

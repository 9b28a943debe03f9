package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/carelink/telehealth-go/internal/errors"
	"github.com/carelink/telehealth-go/internal/middleware"
	"github.com/carelink/telehealth-go/internal/model"
	"github.com/carelink/telehealth-go/internal/service"
)

type AppointmentHandler struct {
	appointments *service.AppointmentService
	notes        *service.NoteService
}

func NewAppointmentHandler(appointments *service.AppointmentService, notes *service.NoteService) *AppointmentHandler {
	return &AppointmentHandler{
		appointments: appointments,
		notes:        notes,
	}
}

func (h *AppointmentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/accept", h.Accept)
	r.Post("/{id}/reject", h.Reject)
	r.Get("/{id}/notes", h.ListNotes)
	r.Post("/{id}/notes", h.AddNote)

	return r
}

type createAppointmentRequest struct {
	PatientName string     `json:"patientName"`
	Complaint   string     `json:"complaint"`
	DoctorID    *string    `json:"doctorId,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

type updateAppointmentRequest struct {
	PatientName *string    `json:"patientName,omitempty"`
	Complaint   *string    `json:"complaint,omitempty"`
	DoctorID    *string    `json:"doctorId,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "invalid JSON"))
		return
	}

	appt, err := h.appointments.Create(r.Context(), user, model.CreateAppointmentParams{
		PatientName: req.PatientName,
		Complaint:   req.Complaint,
		DoctorID:    req.DoctorID,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, appt)
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	appts, err := h.appointments.List(r.Context(), user, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": appts,
		"count":        len(appts),
	})
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	appt, err := h.appointments.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "invalid JSON"))
		return
	}

	appt, err := h.appointments.Update(r.Context(), user, chi.URLParam(r, "id"), model.UpdateAppointmentParams{
		PatientName: req.PatientName,
		Complaint:   req.Complaint,
		DoctorID:    req.DoctorID,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h *AppointmentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *AppointmentHandler) decide(w http.ResponseWriter, r *http.Request, accept bool) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	appt, err := h.appointments.Decide(r.Context(), user, chi.URLParam(r, "id"), accept)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	if err := h.appointments.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *AppointmentHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "invalid JSON"))
		return
	}

	note, err := h.notes.Add(r.Context(), user, chi.URLParam(r, "id"), req.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

func (h *AppointmentHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	notes, err := h.notes.List(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notes": notes,
		"count": len(notes),
	})
}

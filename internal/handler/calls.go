package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/carelink/telehealth-go/internal/audit"
	"github.com/carelink/telehealth-go/internal/calls"
	apperrors "github.com/carelink/telehealth-go/internal/errors"
	"github.com/carelink/telehealth-go/internal/middleware"
	"github.com/carelink/telehealth-go/internal/model"
	"github.com/carelink/telehealth-go/internal/repository"
)

// CallHandler exposes the video-call lifecycle over HTTP: start, end-report,
// and status. The tracker owns all session state; the handler only resolves
// who the counterpart is and enforces involvement.
type CallHandler struct {
	tracker  *calls.Tracker
	apptRepo repository.AppointmentRepository
}

func NewCallHandler(tracker *calls.Tracker, apptRepo repository.AppointmentRepository) *CallHandler {
	return &CallHandler{
		tracker:  tracker,
		apptRepo: apptRepo,
	}
}

func (h *CallHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/{appointmentID}/start", h.Start)
	r.Post("/{appointmentID}/end", h.End)
	r.Get("/{appointmentID}/status", h.Status)

	return r
}

// POST /v1/calls/{appointmentID}/start
func (h *CallHandler) Start(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	appt, err := h.findInvolved(r, user)
	if err != nil {
		writeError(w, err)
		return
	}

	counterpartID := appt.Counterpart(user.ID)
	if counterpartID == "" {
		writeError(w, apperrors.Conflict("Appointment has no assigned doctor to call"))
		return
	}

	snap := h.tracker.StartCall(r.Context(), appt.ID, user.ID, counterpartID)

	audit.LogFromRequest(r, audit.Event{
		Type:          audit.EventCallStart,
		UserID:        user.ID,
		AppointmentID: appt.ID,
		Details:       map[string]interface{}{"roomId": snap.RoomID},
	})

	writeJSON(w, http.StatusOK, snap)
}

// POST /v1/calls/{appointmentID}/end
//
// Always returns 200: end reports race against each other and against the
// redial timer, so an already-gone session is a valid outcome, not an error.
func (h *CallHandler) End(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	appt, err := h.findInvolved(r, user)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			req.Reason = ""
		}
	}

	result := h.tracker.EndCall(r.Context(), appt.ID, req.Reason)
	if !result.Found {
		log.Debug().
			Str("appointmentId", appt.ID).
			Str("userId", user.ID).
			Msg("end reported with no active call")
	}

	audit.LogFromRequest(r, audit.Event{
		Type:          audit.EventCallEnd,
		UserID:        user.ID,
		AppointmentID: appt.ID,
		Details: map[string]interface{}{
			"found":           result.Found,
			"durationSeconds": result.DurationSeconds,
			"redialScheduled": result.RedialScheduled,
		},
	})

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/calls/{appointmentID}/status
func (h *CallHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	appt, err := h.findInvolved(r, user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.tracker.Status(appt.ID))
}

func (h *CallHandler) findInvolved(r *http.Request, user *model.User) (*model.Appointment, error) {
	if user == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	id := chi.URLParam(r, "appointmentID")
	appt, err := h.apptRepo.FindByID(r.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	if appt == nil {
		return nil, apperrors.NotFound("Appointment")
	}
	if user.Role != model.RoleAdmin && !appt.Involves(user.ID) {
		return nil, apperrors.Forbidden("Not involved in this appointment")
	}
	return appt, nil
}

package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carelink/telehealth-go/internal/model"
)

// RoleDirectory resolves role membership for role-targeted broadcasts.
type RoleDirectory interface {
	FindIDsByRole(ctx context.Context, role model.Role) ([]string, error)
}

// Dispatcher composes typed events and routes them through the Registry.
// The routing rule: a mutation performed by one party notifies the other
// involved party; a role broadcast is used only when no specific assignee
// exists yet. All dispatch is best-effort and never returns delivery errors.
type Dispatcher struct {
	registry *Registry
	users    RoleDirectory
	roomURL  func(roomID string) string
	now      func() time.Time
}

func NewDispatcher(registry *Registry, users RoleDirectory, roomURL func(string) string) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		users:    users,
		roomURL:  roomURL,
		now:      time.Now,
	}
}

// AppointmentCreated broadcasts a new appointment to every connected user.
func (d *Dispatcher) AppointmentCreated(ctx context.Context, appt *model.Appointment) {
	sent := d.registry.BroadcastAll(AppointmentEvent{
		Type:        EventAppointmentCreated,
		Timestamp:   d.now(),
		Appointment: appt,
	})
	log.Debug().
		Str("appointmentId", appt.ID).
		Int("sent", sent).
		Msg("appointment created broadcast")
}

// AppointmentUpdated notifies the involved parties other than the actor.
func (d *Dispatcher) AppointmentUpdated(ctx context.Context, appt *model.Appointment, actorID string) {
	d.notifyOthers(appt, actorID, AppointmentEvent{
		Type:        EventAppointmentUpdated,
		Timestamp:   d.now(),
		Appointment: appt,
	})
}

// AppointmentDeleted notifies the involved parties other than the actor.
func (d *Dispatcher) AppointmentDeleted(ctx context.Context, appt *model.Appointment, actorID string) {
	d.notifyOthers(appt, actorID, AppointmentEvent{
		Type:        EventAppointmentDeleted,
		Timestamp:   d.now(),
		Appointment: appt,
	})
}

// AppointmentDecision notifies the owning provider of an accept or reject.
func (d *Dispatcher) AppointmentDecision(ctx context.Context, appt *model.Appointment) {
	eventType := EventAppointmentAccepted
	if appt.Status == model.AppointmentStatusRejected {
		eventType = EventAppointmentRejected
	}

	delivered := d.registry.SendTo(appt.ProviderID, AppointmentEvent{
		Type:        eventType,
		Timestamp:   d.now(),
		Appointment: appt,
	})
	if !delivered {
		log.Debug().
			Str("appointmentId", appt.ID).
			Str("providerId", appt.ProviderID).
			Msg("provider offline, decision notification dropped")
	}
}

// NoteAdded notifies the counterpart of the note author. When the appointment
// has no assigned doctor yet, it falls back to a broadcast to all doctors.
func (d *Dispatcher) NoteAdded(ctx context.Context, appt *model.Appointment, note *model.Note) {
	event := NoteEvent{
		Type:          EventNoteAdded,
		Timestamp:     d.now(),
		AppointmentID: appt.ID,
		Note:          note,
	}

	counterpart := appt.Counterpart(note.AuthorID)
	if counterpart != "" {
		d.registry.SendTo(counterpart, event)
		return
	}

	doctorIDs, err := d.users.FindIDsByRole(ctx, model.RoleDoctor)
	if err != nil {
		log.Error().Err(err).Str("appointmentId", appt.ID).Msg("failed to resolve doctors for note broadcast")
		return
	}

	sent := d.registry.BroadcastTo(doctorIDs, event)
	log.Debug().
		Str("appointmentId", appt.ID).
		Int("sent", sent).
		Msg("note broadcast to doctors, no doctor assigned")
}

// IncomingVideoCall notifies the counterpart that a call has started.
func (d *Dispatcher) IncomingVideoCall(appointmentID, callerID, counterpartID, roomID string, attempt int, autoAnswer bool) {
	delivered := d.registry.SendTo(counterpartID, CallEvent{
		Type:          EventIncomingVideoCall,
		Timestamp:     d.now(),
		AppointmentID: appointmentID,
		RoomID:        roomID,
		CallURL:       d.roomURL(roomID),
		CallerID:      callerID,
		Attempt:       attempt,
		AutoAnswer:    autoAnswer,
	})
	if !delivered {
		log.Debug().
			Str("appointmentId", appointmentID).
			Str("counterpartId", counterpartID).
			Msg("counterpart offline, call invitation dropped")
	}
}

// CallRedial notifies the counterpart that a short-lived call is being retried.
func (d *Dispatcher) CallRedial(appointmentID, counterpartID, roomID string, attempt, maxRetries int) {
	delivered := d.registry.SendTo(counterpartID, CallEvent{
		Type:          EventCallRedial,
		Timestamp:     d.now(),
		AppointmentID: appointmentID,
		RoomID:        roomID,
		CallURL:       d.roomURL(roomID),
		Attempt:       attempt,
		MaxRetries:    maxRetries,
		AutoAnswer:    true,
	})
	if !delivered {
		log.Debug().
			Str("appointmentId", appointmentID).
			Str("counterpartId", counterpartID).
			Int("attempt", attempt).
			Msg("counterpart offline, redial notification dropped")
	}
}

// notifyOthers unicasts the event to the provider and assigned doctor,
// skipping the actor.
func (d *Dispatcher) notifyOthers(appt *model.Appointment, actorID string, event AppointmentEvent) {
	if appt.ProviderID != actorID {
		d.registry.SendTo(appt.ProviderID, event)
	}
	if appt.DoctorID != nil && *appt.DoctorID != actorID {
		d.registry.SendTo(*appt.DoctorID, event)
	}
}

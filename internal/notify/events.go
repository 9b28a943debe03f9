// Package notify implements the real-time notification layer: the WebSocket
// connection registry and the dispatcher that composes typed events and routes
// them to the right recipients.
package notify

import (
	"time"

	"github.com/carelink/telehealth-go/internal/model"
)

// Event type names pushed to clients as {"type": <name>, ...fields}.
const (
	EventAppointmentCreated  = "appointment_created"
	EventAppointmentUpdated  = "appointment_updated"
	EventAppointmentAccepted = "appointment_accepted"
	EventAppointmentRejected = "appointment_rejected"
	EventAppointmentDeleted  = "appointment_deleted"
	EventNoteAdded           = "note_added"
	EventIncomingVideoCall   = "incoming_video_call"
	EventCallRedial          = "call_redial"
	EventHeartbeat           = "heartbeat"
	EventConnected           = "connected"
	EventPong                = "pong"
	EventTestMessage         = "test_message"
)

type AppointmentEvent struct {
	Type        string             `json:"type"`
	Timestamp   time.Time          `json:"timestamp"`
	Appointment *model.Appointment `json:"appointment"`
}

type NoteEvent struct {
	Type          string      `json:"type"`
	Timestamp     time.Time   `json:"timestamp"`
	AppointmentID string      `json:"appointmentId"`
	Note          *model.Note `json:"note"`
}

type CallEvent struct {
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AppointmentID string    `json:"appointmentId"`
	RoomID        string    `json:"roomId"`
	CallURL       string    `json:"callUrl"`
	CallerID      string    `json:"callerId,omitempty"`
	Attempt       int       `json:"attempt"`
	MaxRetries    int       `json:"maxRetries,omitempty"`
	AutoAnswer    bool      `json:"autoAnswer"`
}

type HeartbeatEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Alive     bool      `json:"alive"`
}

type ConnectedEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
}

type TestMessageEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

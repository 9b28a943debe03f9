package model

import "time"

type CallAttemptStatus string

const (
	CallAttemptStatusStarted   CallAttemptStatus = "started"
	CallAttemptStatusEnded     CallAttemptStatus = "ended"
	CallAttemptStatusRedialed  CallAttemptStatus = "redialed"
	CallAttemptStatusAbandoned CallAttemptStatus = "abandoned"
)

// CallAttempt is an append-only record of a single call start, kept for
// operational history. Only its status changes after creation.
type CallAttempt struct {
	ID            string            `db:"id" json:"id"`
	AppointmentID string            `db:"appointment_id" json:"appointmentId"`
	AttemptNumber int               `db:"attempt_number" json:"attemptNumber"`
	RoomID        string            `db:"room_id" json:"roomId"`
	Status        CallAttemptStatus `db:"status" json:"status"`
	CreatedAt     time.Time         `db:"created_at" json:"createdAt"`
}

type CreateCallAttemptParams struct {
	AppointmentID string
	AttemptNumber int
	RoomID        string
}

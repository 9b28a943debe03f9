package model

import "time"

type Note struct {
	ID            string    `db:"id" json:"id"`
	AppointmentID string    `db:"appointment_id" json:"appointmentId"`
	AuthorID      string    `db:"author_id" json:"authorId"`
	Body          string    `db:"body" json:"body"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

type CreateNoteParams struct {
	AppointmentID string
	AuthorID      string
	Body          string
}

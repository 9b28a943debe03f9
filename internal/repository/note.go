package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/carelink/telehealth-go/internal/model"
)

type NoteRepository interface {
	FindByAppointmentID(ctx context.Context, appointmentID string) ([]model.Note, error)
	Create(ctx context.Context, params model.CreateNoteParams) (*model.Note, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) NoteRepository
}

type noteDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type noteRepo struct {
	db noteDB
}

func NewNoteRepository(db *sqlx.DB) NoteRepository {
	return &noteRepo{db: db}
}

func (r *noteRepo) WithTx(tx *sqlx.Tx) NoteRepository {
	return &noteRepo{db: tx}
}

func (r *noteRepo) FindByAppointmentID(ctx context.Context, appointmentID string) ([]model.Note, error) {
	notes := []model.Note{}
	err := r.db.SelectContext(ctx, &notes, `
		SELECT * FROM notes
		WHERE appointment_id = $1
		ORDER BY created_at ASC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *noteRepo) Create(ctx context.Context, params model.CreateNoteParams) (*model.Note, error) {
	var note model.Note
	err := r.db.GetContext(ctx, &note, `
		INSERT INTO notes (appointment_id, author_id, body)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.AppointmentID, params.AuthorID, params.Body)
	if err != nil {
		return nil, err
	}
	return &note, nil
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carelink/telehealth-go/internal/model"
)

type CallAttemptRepository interface {
	Create(ctx context.Context, params model.CreateCallAttemptParams) (*model.CallAttempt, error)
	UpdateStatus(ctx context.Context, id string, status model.CallAttemptStatus) error
	FindByAppointmentID(ctx context.Context, appointmentID string) ([]model.CallAttempt, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) CallAttemptRepository
}

type callAttemptDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type callAttemptRepo struct {
	db callAttemptDB
}

func NewCallAttemptRepository(db *sqlx.DB) CallAttemptRepository {
	return &callAttemptRepo{db: db}
}

func (r *callAttemptRepo) WithTx(tx *sqlx.Tx) CallAttemptRepository {
	return &callAttemptRepo{db: tx}
}

func (r *callAttemptRepo) Create(ctx context.Context, params model.CreateCallAttemptParams) (*model.CallAttempt, error) {
	var attempt model.CallAttempt
	err := r.db.GetContext(ctx, &attempt, `
		INSERT INTO call_attempts (appointment_id, attempt_number, room_id, status)
		VALUES ($1, $2, $3, 'started')
		RETURNING *
	`, params.AppointmentID, params.AttemptNumber, params.RoomID)
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *callAttemptRepo) UpdateStatus(ctx context.Context, id string, status model.CallAttemptStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE call_attempts SET status = $2 WHERE id = $1
	`, id, status)
	return err
}

func (r *callAttemptRepo) FindByAppointmentID(ctx context.Context, appointmentID string) ([]model.CallAttempt, error) {
	attempts := []model.CallAttempt{}
	err := r.db.SelectContext(ctx, &attempts, `
		SELECT * FROM call_attempts
		WHERE appointment_id = $1
		ORDER BY created_at ASC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *callAttemptRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM call_attempts WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carelink/telehealth-go/internal/model"
)

type AppointmentRepository interface {
	FindByID(ctx context.Context, id string) (*model.Appointment, error)
	FindAllForUser(ctx context.Context, user *model.User, limit, offset int) ([]model.Appointment, error)
	Create(ctx context.Context, params model.CreateAppointmentParams) (*model.Appointment, error)
	Update(ctx context.Context, id string, params model.UpdateAppointmentParams) (*model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status model.AppointmentStatus, doctorID string) (*model.Appointment, error)
	Delete(ctx context.Context, id string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) AppointmentRepository
}

type appointmentDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type appointmentRepo struct {
	db appointmentDB
}

func NewAppointmentRepository(db *sqlx.DB) AppointmentRepository {
	return &appointmentRepo{db: db}
}

func (r *appointmentRepo) WithTx(tx *sqlx.Tx) AppointmentRepository {
	return &appointmentRepo{db: tx}
}

func (r *appointmentRepo) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	var appt model.Appointment
	err := r.db.GetContext(ctx, &appt, `
		SELECT * FROM appointments WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// FindAllForUser scopes the listing by role: providers see their own
// appointments, doctors see assigned plus unassigned ones, admins see all.
func (r *appointmentRepo) FindAllForUser(ctx context.Context, user *model.User, limit, offset int) ([]model.Appointment, error) {
	appts := []model.Appointment{}

	var err error
	switch user.Role {
	case model.RoleProvider:
		err = r.db.SelectContext(ctx, &appts, `
			SELECT * FROM appointments
			WHERE provider_id = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`, user.ID, limit, offset)
	case model.RoleDoctor:
		err = r.db.SelectContext(ctx, &appts, `
			SELECT * FROM appointments
			WHERE doctor_id = $1 OR doctor_id IS NULL
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`, user.ID, limit, offset)
	default:
		err = r.db.SelectContext(ctx, &appts, `
			SELECT * FROM appointments
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	return appts, nil
}

func (r *appointmentRepo) Create(ctx context.Context, params model.CreateAppointmentParams) (*model.Appointment, error) {
	var appt model.Appointment
	err := r.db.GetContext(ctx, &appt, `
		INSERT INTO appointments (provider_id, doctor_id, patient_name, complaint, status, scheduled_at)
		VALUES ($1, $2, $3, $4, 'pending', $5)
		RETURNING *
	`, params.ProviderID, params.DoctorID, params.PatientName, params.Complaint, params.ScheduledAt)
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepo) Update(ctx context.Context, id string, params model.UpdateAppointmentParams) (*model.Appointment, error) {
	var appt model.Appointment
	err := r.db.GetContext(ctx, &appt, `
		UPDATE appointments SET
			doctor_id = COALESCE($2, doctor_id),
			patient_name = COALESCE($3, patient_name),
			complaint = COALESCE($4, complaint),
			scheduled_at = COALESCE($5, scheduled_at),
			updated_at = $6
		WHERE id = $1
		RETURNING *
	`, id, params.DoctorID, params.PatientName, params.Complaint, params.ScheduledAt, time.Now())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepo) UpdateStatus(ctx context.Context, id string, status model.AppointmentStatus, doctorID string) (*model.Appointment, error) {
	var appt model.Appointment
	err := r.db.GetContext(ctx, &appt, `
		UPDATE appointments SET
			status = $2,
			doctor_id = $3,
			updated_at = $4
		WHERE id = $1
		RETURNING *
	`, id, status, doctorID, time.Now())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM appointments WHERE id = $1
	`, id)
	return err
}

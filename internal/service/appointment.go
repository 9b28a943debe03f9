package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/carelink/telehealth-go/internal/errors"
	"github.com/carelink/telehealth-go/internal/model"
	"github.com/carelink/telehealth-go/internal/notify"
	"github.com/carelink/telehealth-go/internal/repository"
)

// AppointmentService performs appointment mutations and hands the resulting
// events to the dispatcher. Dispatch is fire-and-forget: the caller's
// response never waits on notification delivery.
type AppointmentService struct {
	apptRepo   repository.AppointmentRepository
	dispatcher *notify.Dispatcher
}

func NewAppointmentService(apptRepo repository.AppointmentRepository, dispatcher *notify.Dispatcher) *AppointmentService {
	return &AppointmentService{
		apptRepo:   apptRepo,
		dispatcher: dispatcher,
	}
}

func (s *AppointmentService) Create(ctx context.Context, actor *model.User, params model.CreateAppointmentParams) (*model.Appointment, error) {
	if actor.Role != model.RoleProvider && actor.Role != model.RoleAdmin {
		return nil, apperrors.Forbidden("Only providers can create appointments")
	}
	if params.PatientName == "" {
		return nil, apperrors.MissingRequired("patientName")
	}
	params.ProviderID = actor.ID

	appt, err := s.apptRepo.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	log.Info().
		Str("appointmentId", appt.ID).
		Str("providerId", appt.ProviderID).
		Msg("appointment created")

	go s.dispatcher.AppointmentCreated(context.Background(), appt)
	return appt, nil
}

func (s *AppointmentService) Get(ctx context.Context, actor *model.User, id string) (*model.Appointment, error) {
	appt, err := s.apptRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	if appt == nil {
		return nil, apperrors.NotFound("Appointment")
	}
	if !canView(actor, appt) {
		return nil, apperrors.Forbidden("Not involved in this appointment")
	}
	return appt, nil
}

func (s *AppointmentService) List(ctx context.Context, actor *model.User, limit, offset int) ([]model.Appointment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := s.apptRepo.FindAllForUser(ctx, actor, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

func (s *AppointmentService) Update(ctx context.Context, actor *model.User, id string, params model.UpdateAppointmentParams) (*model.Appointment, error) {
	appt, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.apptRepo.Update(ctx, appt.ID, params)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	if updated == nil {
		return nil, apperrors.NotFound("Appointment")
	}

	log.Info().
		Str("appointmentId", updated.ID).
		Str("actorId", actor.ID).
		Msg("appointment updated")

	go s.dispatcher.AppointmentUpdated(context.Background(), updated, actor.ID)
	return updated, nil
}

// Decide records a doctor's accept or reject of a pending appointment and
// notifies the owning provider.
func (s *AppointmentService) Decide(ctx context.Context, actor *model.User, id string, accept bool) (*model.Appointment, error) {
	if actor.Role != model.RoleDoctor {
		return nil, apperrors.Forbidden("Only doctors can accept or reject appointments")
	}

	appt, err := s.apptRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	if appt == nil {
		return nil, apperrors.NotFound("Appointment")
	}
	if appt.Status != model.AppointmentStatusPending {
		return nil, apperrors.Conflict(fmt.Sprintf("Appointment is already %s", appt.Status))
	}
	if appt.DoctorID != nil && *appt.DoctorID != actor.ID {
		return nil, apperrors.Forbidden("Appointment is assigned to another doctor")
	}

	status := model.AppointmentStatusAccepted
	if !accept {
		status = model.AppointmentStatusRejected
	}

	updated, err := s.apptRepo.UpdateStatus(ctx, appt.ID, status, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	if updated == nil {
		return nil, apperrors.NotFound("Appointment")
	}

	log.Info().
		Str("appointmentId", updated.ID).
		Str("doctorId", actor.ID).
		Str("status", string(status)).
		Msg("appointment decision recorded")

	go s.dispatcher.AppointmentDecision(context.Background(), updated)
	return updated, nil
}

func (s *AppointmentService) Delete(ctx context.Context, actor *model.User, id string) error {
	appt, err := s.apptRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find appointment: %w", err)
	}
	if appt == nil {
		return apperrors.NotFound("Appointment")
	}
	if actor.Role != model.RoleAdmin && appt.ProviderID != actor.ID {
		return apperrors.Forbidden("Only the owning provider can delete an appointment")
	}

	if err := s.apptRepo.Delete(ctx, appt.ID); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}

	log.Info().
		Str("appointmentId", appt.ID).
		Str("actorId", actor.ID).
		Msg("appointment deleted")

	go s.dispatcher.AppointmentDeleted(context.Background(), appt, actor.ID)
	return nil
}

// canView allows the involved parties, admins, and doctors browsing
// unassigned appointments.
func canView(actor *model.User, appt *model.Appointment) bool {
	if actor.Role == model.RoleAdmin {
		return true
	}
	if appt.Involves(actor.ID) {
		return true
	}
	return actor.Role == model.RoleDoctor && appt.DoctorID == nil
}

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

const maxNoteBytes = 8192

// NoteService manages the free-text notes exchanged on an appointment.
type NoteService struct {
	noteRepo   repository.NoteRepository
	apptRepo   repository.AppointmentRepository
	dispatcher *notify.Dispatcher
}

func NewNoteService(noteRepo repository.NoteRepository, apptRepo repository.AppointmentRepository, dispatcher *notify.Dispatcher) *NoteService {
	return &NoteService{
		noteRepo:   noteRepo,
		apptRepo:   apptRepo,
		dispatcher: dispatcher,
	}
}

func (s *NoteService) Add(ctx context.Context, actor *model.User, appointmentID, body string) (*model.Note, error) {
	if body == "" {
		return nil, apperrors.MissingRequired("body")
	}
	if len(body) > maxNoteBytes {
		return nil, apperrors.InvalidInput("body", "note too long")
	}

	appt, err := s.findForActor(ctx, actor, appointmentID)
	if err != nil {
		return nil, err
	}

	note, err := s.noteRepo.Create(ctx, model.CreateNoteParams{
		AppointmentID: appt.ID,
		AuthorID:      actor.ID,
		Body:          body,
	})
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	log.Info().
		Str("noteId", note.ID).
		Str("appointmentId", appt.ID).
		Str("authorId", actor.ID).
		Msg("note added")

	go s.dispatcher.NoteAdded(context.Background(), appt, note)
	return note, nil
}

func (s *NoteService) List(ctx context.Context, actor *model.User, appointmentID string) ([]model.Note, error) {
	appt, err := s.findForActor(ctx, actor, appointmentID)
	if err != nil {
		return nil, err
	}

	notes, err := s.noteRepo.FindByAppointmentID(ctx, appt.ID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

func (s *NoteService) findForActor(ctx context.Context, actor *model.User, appointmentID string) (*model.Appointment, error) {
	appt, err := s.apptRepo.FindByID(ctx, appointmentID)
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

// Package calls tracks active video-call sessions per appointment and drives
// the short-call auto-redial state machine.
package calls

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carelink/telehealth-go/internal/config"
	"github.com/carelink/telehealth-go/internal/model"
	"github.com/carelink/telehealth-go/internal/repository"
)

type Status string

const (
	// StatusActive means a call is presumed in progress.
	StatusActive Status = "active"
	// StatusStable means the call outlived the stability delay. Informational.
	StatusStable Status = "stable"
	// StatusEnded means the call ended quickly and a redial is pending.
	StatusEnded Status = "ended"
)

// Notifier delivers call notifications to the counterpart. Satisfied by
// notify.Dispatcher.
type Notifier interface {
	IncomingVideoCall(appointmentID, callerID, counterpartID, roomID string, attempt int, autoAnswer bool)
	CallRedial(appointmentID, counterpartID, roomID string, attempt, maxRetries int)
}

// timerHandle lets tests replace time.AfterFunc with a manual scheduler.
type timerHandle interface {
	Stop() bool
}

type scheduleFunc func(d time.Duration, fn func()) timerHandle

type session struct {
	appointmentID string
	callerID      string
	counterpartID string
	roomID        string
	attemptID     string
	startedAt     time.Time
	endedAt       *time.Time
	status        Status
	retryCount    int

	stabilityTimer timerHandle
	redialTimer    timerHandle
}

// Snapshot is a read-only view of a call session. Active is false when no
// session exists for the appointment.
type Snapshot struct {
	Active        bool       `json:"active"`
	AppointmentID string     `json:"appointmentId,omitempty"`
	CallerID      string     `json:"callerId,omitempty"`
	CounterpartID string     `json:"counterpartId,omitempty"`
	RoomID        string     `json:"roomId,omitempty"`
	Status        Status     `json:"status,omitempty"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
	RetryCount    int        `json:"retryCount"`
	MaxRetries    int        `json:"maxRetries,omitempty"`
}

// EndResult reports the outcome of an end-of-call report.
type EndResult struct {
	Found           bool `json:"found"`
	DurationSeconds int  `json:"durationSeconds"`
	RedialScheduled bool `json:"redialScheduled"`
	RetryCount      int  `json:"retryCount"`
}

// Tracker owns the per-appointment call session map. At most one session
// exists per appointment at a time; a new StartCall supersedes any prior
// session for the same appointment.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*session
	notifier Notifier
	attempts repository.CallAttemptRepository
	now      func() time.Time
	schedule scheduleFunc
}

func NewTracker(notifier Notifier, attempts repository.CallAttemptRepository) *Tracker {
	return &Tracker{
		sessions: make(map[string]*session),
		notifier: notifier,
		attempts: attempts,
		now:      time.Now,
		schedule: func(d time.Duration, fn func()) timerHandle {
			return time.AfterFunc(d, fn)
		},
	}
}

// StartCall creates an active session for the appointment, records a call
// attempt, schedules the stability check, and notifies the counterpart.
func (t *Tracker) StartCall(ctx context.Context, appointmentID, callerID, counterpartID string) Snapshot {
	roomID := uuid.New().String()
	now := t.now()

	t.mu.Lock()
	if prev, ok := t.sessions[appointmentID]; ok {
		// Superseded: the new call wins, pending timers are cancelled.
		prev.stopTimers()
		log.Info().
			Str("appointmentId", appointmentID).
			Msg("existing call session superseded")
	}

	s := &session{
		appointmentID: appointmentID,
		callerID:      callerID,
		counterpartID: counterpartID,
		roomID:        roomID,
		startedAt:     now,
		status:        StatusActive,
	}
	t.sessions[appointmentID] = s
	s.stabilityTimer = t.schedule(config.CallStabilityDelay, func() {
		t.markStable(appointmentID)
	})
	snap := s.snapshot()
	t.mu.Unlock()

	t.recordAttempt(ctx, appointmentID, roomID, 1)

	log.Info().
		Str("appointmentId", appointmentID).
		Str("callerId", callerID).
		Str("roomId", roomID).
		Msg("call started")

	t.notifier.IncomingVideoCall(appointmentID, callerID, counterpartID, roomID, 1, false)
	return snap
}

// EndCall reports the end of the call for an appointment. A call that lasted
// less than the short-call threshold schedules an automatic redial, up to the
// retry cap; otherwise the session is removed. Ending an unknown session is a
// no-op, so concurrent end reports are idempotent.
func (t *Tracker) EndCall(ctx context.Context, appointmentID, reason string) EndResult {
	t.mu.Lock()
	s, ok := t.sessions[appointmentID]
	if !ok {
		t.mu.Unlock()
		log.Debug().
			Str("appointmentId", appointmentID).
			Msg("end reported for unknown call session")
		return EndResult{}
	}

	now := t.now()
	duration := now.Sub(s.startedAt)
	s.stopTimers()
	s.endedAt = &now
	attemptID := s.attemptID

	if duration < config.ShortCallThreshold && s.retryCount < config.MaxCallRetries {
		s.retryCount++
		s.status = StatusEnded
		s.redialTimer = t.schedule(config.CallRedialDelay, func() {
			t.fireRedial(appointmentID)
		})
		retry := s.retryCount
		t.mu.Unlock()

		t.updateAttempt(attemptID, model.CallAttemptStatusRedialed)
		log.Info().
			Str("appointmentId", appointmentID).
			Str("reason", reason).
			Dur("duration", duration).
			Int("retryCount", retry).
			Msg("short call ended, redial scheduled")

		return EndResult{
			Found:           true,
			DurationSeconds: int(duration.Seconds()),
			RedialScheduled: true,
			RetryCount:      retry,
		}
	}

	delete(t.sessions, appointmentID)
	exhausted := duration < config.ShortCallThreshold
	retry := s.retryCount
	t.mu.Unlock()

	if exhausted {
		t.updateAttempt(attemptID, model.CallAttemptStatusAbandoned)
		log.Warn().
			Str("appointmentId", appointmentID).
			Int("retryCount", retry).
			Msg("short call ended with retries exhausted, session removed")
	} else {
		t.updateAttempt(attemptID, model.CallAttemptStatusEnded)
		log.Info().
			Str("appointmentId", appointmentID).
			Str("reason", reason).
			Dur("duration", duration).
			Msg("call ended")
	}

	return EndResult{
		Found:           true,
		DurationSeconds: int(duration.Seconds()),
		RetryCount:      retry,
	}
}

// Status returns a snapshot of the session for the appointment, or
// {active:false} when none exists.
func (t *Tracker) Status(appointmentID string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[appointmentID]
	if !ok {
		return Snapshot{Active: false}
	}
	return s.snapshot()
}

// fireRedial runs when the redial delay elapses. The session may have been
// removed or superseded in the meantime, in which case it aborts silently.
func (t *Tracker) fireRedial(appointmentID string) {
	roomID := uuid.New().String()

	t.mu.Lock()
	s, ok := t.sessions[appointmentID]
	if !ok || s.status != StatusEnded {
		t.mu.Unlock()
		log.Debug().
			Str("appointmentId", appointmentID).
			Msg("redial fired for missing or superseded session")
		return
	}

	s.redialTimer = nil
	s.roomID = roomID
	s.startedAt = t.now()
	s.endedAt = nil
	s.status = StatusActive
	s.stabilityTimer = t.schedule(config.CallStabilityDelay, func() {
		t.markStable(appointmentID)
	})
	retry := s.retryCount
	counterpartID := s.counterpartID
	t.mu.Unlock()

	t.recordAttempt(context.Background(), appointmentID, roomID, retry+1)

	log.Info().
		Str("appointmentId", appointmentID).
		Str("roomId", roomID).
		Int("retryAttempt", retry).
		Int("maxRetries", config.MaxCallRetries).
		Msg("redialing call")

	t.notifier.CallRedial(appointmentID, counterpartID, roomID, retry, config.MaxCallRetries)
}

// markStable flips a still-active session to stable once the stability delay
// passes. The state is informational: a stable call is presumed legitimate.
func (t *Tracker) markStable(appointmentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[appointmentID]
	if !ok || s.status != StatusActive {
		return
	}

	s.status = StatusStable
	s.stabilityTimer = nil
	log.Info().
		Str("appointmentId", appointmentID).
		Msg("call session stable")
}

// recordAttempt appends a call_attempts row and remembers its ID on the
// session so the end report can stamp the final status. Persistence is
// informational; failures are logged and do not affect the call.
func (t *Tracker) recordAttempt(ctx context.Context, appointmentID, roomID string, attemptNumber int) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	attempt, err := t.attempts.Create(ctx, model.CreateCallAttemptParams{
		AppointmentID: appointmentID,
		AttemptNumber: attemptNumber,
		RoomID:        roomID,
	})
	if err != nil {
		log.Error().Err(err).
			Str("appointmentId", appointmentID).
			Msg("failed to record call attempt")
		return
	}

	t.mu.Lock()
	if s, ok := t.sessions[appointmentID]; ok && s.roomID == roomID {
		s.attemptID = attempt.ID
	}
	t.mu.Unlock()
}

func (t *Tracker) updateAttempt(attemptID string, status model.CallAttemptStatus) {
	if attemptID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.attempts.UpdateStatus(ctx, attemptID, status); err != nil {
		log.Error().Err(err).
			Str("attemptId", attemptID).
			Msg("failed to update call attempt status")
	}
}

func (s *session) stopTimers() {
	if s.stabilityTimer != nil {
		s.stabilityTimer.Stop()
		s.stabilityTimer = nil
	}
	if s.redialTimer != nil {
		s.redialTimer.Stop()
		s.redialTimer = nil
	}
}

func (s *session) snapshot() Snapshot {
	started := s.startedAt
	return Snapshot{
		Active:        true,
		AppointmentID: s.appointmentID,
		CallerID:      s.callerID,
		CounterpartID: s.counterpartID,
		RoomID:        s.roomID,
		Status:        s.status,
		StartedAt:     &started,
		EndedAt:       s.endedAt,
		RetryCount:    s.retryCount,
		MaxRetries:    config.MaxCallRetries,
	}
}

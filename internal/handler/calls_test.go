package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/telehealth-go/internal/calls"
	"github.com/carelink/telehealth-go/internal/middleware"
	"github.com/carelink/telehealth-go/internal/model"
	"github.com/carelink/telehealth-go/internal/repository"
)

type noopNotifier struct{}

func (noopNotifier) IncomingVideoCall(appointmentID, callerID, counterpartID, roomID string, attempt int, autoAnswer bool) {
}

func (noopNotifier) CallRedial(appointmentID, counterpartID, roomID string, attempt, maxRetries int) {
}

type noopAttemptRepo struct{}

func (noopAttemptRepo) Create(ctx context.Context, params model.CreateCallAttemptParams) (*model.CallAttempt, error) {
	return &model.CallAttempt{ID: "attempt-1"}, nil
}

func (noopAttemptRepo) UpdateStatus(ctx context.Context, id string, status model.CallAttemptStatus) error {
	return nil
}

func (noopAttemptRepo) FindByAppointmentID(ctx context.Context, appointmentID string) ([]model.CallAttempt, error) {
	return nil, nil
}

func (noopAttemptRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (n noopAttemptRepo) WithTx(tx *sqlx.Tx) repository.CallAttemptRepository {
	return n
}

type stubApptRepo struct {
	appt *model.Appointment
}

func (s *stubApptRepo) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	if s.appt != nil && s.appt.ID == id {
		return s.appt, nil
	}
	return nil, nil
}

func (s *stubApptRepo) FindAllForUser(ctx context.Context, user *model.User, limit, offset int) ([]model.Appointment, error) {
	return nil, nil
}

func (s *stubApptRepo) Create(ctx context.Context, params model.CreateAppointmentParams) (*model.Appointment, error) {
	return nil, nil
}

func (s *stubApptRepo) Update(ctx context.Context, id string, params model.UpdateAppointmentParams) (*model.Appointment, error) {
	return nil, nil
}

func (s *stubApptRepo) UpdateStatus(ctx context.Context, id string, status model.AppointmentStatus, doctorID string) (*model.Appointment, error) {
	return nil, nil
}

func (s *stubApptRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (s *stubApptRepo) WithTx(tx *sqlx.Tx) repository.AppointmentRepository {
	return s
}

func callRequest(t *testing.T, handler chi.Router, user *model.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if user != nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, user))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCallHandler(t *testing.T) {
	doctorID := "doctor-1"
	appt := &model.Appointment{
		ID:         "appt-1",
		ProviderID: "provider-1",
		DoctorID:   &doctorID,
		Status:     model.AppointmentStatusAccepted,
	}
	provider := &model.User{ID: "provider-1", Role: model.RoleProvider}

	newHandler := func(appt *model.Appointment) chi.Router {
		tracker := calls.NewTracker(noopNotifier{}, noopAttemptRepo{})
		return NewCallHandler(tracker, &stubApptRepo{appt: appt}).Routes()
	}

	t.Run("start returns an active session snapshot", func(t *testing.T) {
		h := newHandler(appt)

		rec := callRequest(t, h, provider, "POST", "/appt-1/start", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var snap calls.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.True(t, snap.Active)
		assert.NotEmpty(t, snap.RoomID)
		assert.Equal(t, calls.StatusActive, snap.Status)
	})

	t.Run("start without an assigned doctor conflicts", func(t *testing.T) {
		unassigned := &model.Appointment{ID: "appt-1", ProviderID: "provider-1"}
		h := newHandler(unassigned)

		rec := callRequest(t, h, provider, "POST", "/appt-1/start", nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("uninvolved user is forbidden", func(t *testing.T) {
		h := newHandler(appt)
		outsider := &model.User{ID: "provider-2", Role: model.RoleProvider}

		for _, probe := range []struct{ method, path string }{
			{"POST", "/appt-1/start"},
			{"POST", "/appt-1/end"},
			{"GET", "/appt-1/status"},
		} {
			rec := callRequest(t, h, outsider, probe.method, probe.path, nil)
			assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", probe.method, probe.path)
		}
	})

	t.Run("unknown appointment is not found", func(t *testing.T) {
		h := newHandler(appt)

		rec := callRequest(t, h, provider, "GET", "/appt-nope/status", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("end without active call still returns 200", func(t *testing.T) {
		h := newHandler(appt)

		rec := callRequest(t, h, provider, "POST", "/appt-1/end", map[string]string{"reason": "hangup"})

		require.Equal(t, http.StatusOK, rec.Code)
		var result calls.EndResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.False(t, result.Found)
	})

	t.Run("start then end reports the duration", func(t *testing.T) {
		h := newHandler(appt)

		rec := callRequest(t, h, provider, "POST", "/appt-1/start", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = callRequest(t, h, provider, "POST", "/appt-1/end", map[string]string{"reason": "hangup"})
		require.Equal(t, http.StatusOK, rec.Code)

		var result calls.EndResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.Found)
		assert.True(t, result.RedialScheduled, "an immediate hangup is a short call")
	})

	t.Run("status reflects the tracker state", func(t *testing.T) {
		tracker := calls.NewTracker(noopNotifier{}, noopAttemptRepo{})
		h := NewCallHandler(tracker, &stubApptRepo{appt: appt}).Routes()

		rec := callRequest(t, h, provider, "GET", "/appt-1/status", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var snap calls.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.False(t, snap.Active)

		tracker.StartCall(context.Background(), "appt-1", "provider-1", "doctor-1")

		rec = callRequest(t, h, provider, "GET", "/appt-1/status", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.True(t, snap.Active)
	})

	t.Run("anonymous request is unauthorized", func(t *testing.T) {
		h := newHandler(appt)

		rec := callRequest(t, h, nil, "GET", "/appt-1/status", nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestWSStatusEndpoint(t *testing.T) {
	t.Run("reports connected users", func(t *testing.T) {
		registry := newRegistryWithUsers(t, "alice", "bob")
		h := NewWSHandler(registry, "")

		req := httptest.NewRequest("GET", "/v1/ws/status", nil)
		rec := httptest.NewRecorder()
		h.Status(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var status struct {
			TotalConnections int      `json:"total_connections"`
			ConnectedUsers   []string `json:"connected_users"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, 2, status.TotalConnections)
		assert.Equal(t, []string{"alice", "bob"}, status.ConnectedUsers)
	})
}

func TestWSTestMessageEndpoint(t *testing.T) {
	t.Run("reports delivery to the caller's channel", func(t *testing.T) {
		registry := newRegistryWithUsers(t, "provider-1")
		h := NewWSHandler(registry, "")

		user := &model.User{ID: "provider-1", Role: model.RoleProvider}
		req := httptest.NewRequest("POST", "/v1/ws/test", nil)
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, user))
		rec := httptest.NewRecorder()
		h.TestMessage(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var result map[string]bool
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result["connected"])
		assert.True(t, result["delivered"])
	})

	t.Run("offline caller gets connected false", func(t *testing.T) {
		h := NewWSHandler(newRegistryWithUsers(t), "")

		user := &model.User{ID: "offline", Role: model.RoleProvider}
		req := httptest.NewRequest("POST", "/v1/ws/test", nil)
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, user))
		rec := httptest.NewRecorder()
		h.TestMessage(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var result map[string]bool
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.False(t, result["connected"])
		assert.False(t, result["delivered"])
	})
}

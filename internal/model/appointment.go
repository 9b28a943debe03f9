package model

import "time"

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusAccepted  AppointmentStatus = "accepted"
	AppointmentStatusRejected  AppointmentStatus = "rejected"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

type Appointment struct {
	ID          string            `db:"id" json:"id"`
	ProviderID  string            `db:"provider_id" json:"providerId"`
	DoctorID    *string           `db:"doctor_id" json:"doctorId,omitempty"`
	PatientName string            `db:"patient_name" json:"patientName"`
	Complaint   string            `db:"complaint" json:"complaint"`
	Status      AppointmentStatus `db:"status" json:"status"`
	ScheduledAt *time.Time        `db:"scheduled_at" json:"scheduledAt,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updatedAt"`
}

type CreateAppointmentParams struct {
	ProviderID  string
	DoctorID    *string
	PatientName string
	Complaint   string
	ScheduledAt *time.Time
}

type UpdateAppointmentParams struct {
	DoctorID    *string
	PatientName *string
	Complaint   *string
	ScheduledAt *time.Time
}

// Counterpart returns the user on the other side of the appointment from
// actorID: the assigned doctor for the provider, the provider for the doctor.
// Returns empty when the other side is not assigned yet.
func (a *Appointment) Counterpart(actorID string) string {
	if actorID == a.ProviderID {
		if a.DoctorID != nil {
			return *a.DoctorID
		}
		return ""
	}
	return a.ProviderID
}

// Involves reports whether userID is the provider or the assigned doctor.
func (a *Appointment) Involves(userID string) bool {
	if userID == a.ProviderID {
		return true
	}
	return a.DoctorID != nil && *a.DoctorID == userID
}

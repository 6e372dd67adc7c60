package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Terminal reports whether no further transition may leave this status.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilitySlot is one contiguous bookable window for a doctor on a date.
// Clock values are zero-padded "HH:MM" strings covering [StartTime, EndTime).
type AvailabilitySlot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	StartTime string
	EndTime   string
	IsBooked  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Covers reports whether clock falls inside the slot window.
func (s AvailabilitySlot) Covers(clock string) bool {
	return s.StartTime <= clock && clock < s.EndTime
}

type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	Time      string
	Status    AppointmentStatus
	Reason    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Treatment struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Diagnosis     string
	Prescription  *string
	Notes         *string
	NextVisitDate *time.Time
	CreatedAt     time.Time
}

// TreatmentRecord is one row of a patient's treatment history.
type TreatmentRecord struct {
	AppointmentID uuid.UUID
	DoctorName    string
	Date          time.Time
	Time          string
	Diagnosis     string
	Prescription  *string
	Notes         *string
	NextVisitDate *time.Time
}

// BookedVisit is the reminder-batch view of an active appointment.
type BookedVisit struct {
	AppointmentID uuid.UUID
	Date          time.Time
	Time          string
	DoctorName    string
	PatientName   string
	PatientEmail  *string
}

// MonthlyActivity aggregates one doctor's appointments over a month.
type MonthlyActivity struct {
	DoctorID    uuid.UUID
	DoctorName  string
	DoctorEmail *string
	Total       int
	Completed   int
	Cancelled   int
}

type DoctorStats struct {
	BookedToday      int `json:"upcoming_appointments_today"`
	BookedThisWeek   int `json:"upcoming_appointments_week"`
	DistinctPatients int `json:"total_patients"`
	Completed        int `json:"completed_appointments"`
}

type PatientStats struct {
	Upcoming  int `json:"upcoming_appointments"`
	Total     int `json:"total_appointments"`
	Completed int `json:"completed_appointments"`
}

// StatusCounts is the global appointment breakdown.
type StatusCounts struct {
	Booked    int `json:"booked"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

const (
	clockLayout = "15:04"
	dateLayout  = "2006-01-02"
)

// ParseClock validates and normalizes an "HH:MM" time of day.
func ParseClock(s string) (string, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: time %q must be HH:MM", ErrValidation, s)
	}
	return t.Format(clockLayout), nil
}

// ParseDate validates a "YYYY-MM-DD" calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrValidation, s)
	}
	return d, nil
}

// FormatDate renders a date the way ParseDate accepts it.
func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}

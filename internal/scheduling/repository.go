package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the booking engine.
// Multi-write sequences run through InTx so that partial application of a
// booking or completion is never observable.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*AvailabilitySlot, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetTreatmentByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Treatment, error)

	InsertSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, start, end string) (*AvailabilitySlot, error)
	SetSlotBooked(ctx context.Context, slotID uuid.UUID, booked bool) error

	// ListOpenSlots returns one keyset page of free slots ordered by
	// (date, start_time). A nil cursor starts from the beginning.
	ListOpenSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, cursor *SlotCursor, limit int) ([]AvailabilitySlot, error)

	// Dashboard reads
	DoctorStats(ctx context.Context, doctorID uuid.UUID, today time.Time) (*DoctorStats, error)
	PatientStats(ctx context.Context, patientID uuid.UUID, today time.Time) (*PatientStats, error)
	CountByStatus(ctx context.Context) (*StatusCounts, error)
	TreatmentHistory(ctx context.Context, patientID uuid.UUID) ([]TreatmentRecord, error)

	// Job reads
	ListBookedOn(ctx context.Context, date time.Time) ([]BookedVisit, error)
	MonthlyActivity(ctx context.Context, from, to time.Time) ([]MonthlyActivity, error)

	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional surface available inside InTx. Reads here take
// row locks so concurrent transitions on the same rows serialize.
type Tx interface {
	GetBookedAppointment(ctx context.Context, doctorID uuid.UUID, date time.Time, clock string) (*Appointment, error)
	GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	InsertAppointment(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, clock string, reason *string) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	FindCoveringSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, clock string) (*AvailabilitySlot, error)
	SetSlotBooked(ctx context.Context, slotID uuid.UUID, booked bool) error
	GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*AvailabilitySlot, error)
	DeleteSlot(ctx context.Context, id uuid.UUID) error

	InsertTreatment(ctx context.Context, appointmentID uuid.UUID, diagnosis string, prescription, notes *string, nextVisit *time.Time) (*Treatment, error)
}

// SlotCursor marks the last slot of a page for restartable iteration.
type SlotCursor struct {
	Date      time.Time
	StartTime string
}

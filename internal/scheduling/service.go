package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chartgpt66/hospital-management-system-v2/internal/cache"
	redisclient "github.com/chartgpt66/hospital-management-system-v2/internal/redis"
)

// Service is the booking coordinator: the only component allowed to mutate
// the slot registry and the appointment ledger together. Every multi-write
// path runs inside one transaction, and the conflict-check-then-insert
// sequence of Book additionally serializes behind a per-triple lock.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	cache  cache.Invalidator
}

func NewService(repo Repository, locker redisclient.Locker, invalidator cache.Invalidator) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cache:  invalidator,
	}
}

// bookingKey identifies the contended resource for the lock: one doctor's
// calendar cell, independent of which patient asks for it.
func bookingKey(doctorID uuid.UUID, date time.Time, clock string) string {
	return fmt.Sprintf("%s:%s:%s", doctorID, FormatDate(date), clock)
}

// Book reserves (doctorID, date, clock) for the patient. Two concurrent
// calls for the same triple produce exactly one appointment: the loser gets
// ErrSlotTaken, or ErrSlotBeingBooked if it could not even enter the
// critical section.
func (s *Service) Book(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, clock string, reason *string) (*Appointment, error) {
	clock, err := ParseClock(clock)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	var created *Appointment

	err = s.locker.WithBookingLock(ctx, bookingKey(doctorID, date, clock), func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(tx Tx) error {
			// Re-check inside the critical section so a racing booking
			// committed moments ago is seen.
			existing, err := tx.GetBookedAppointment(lockCtx, doctorID, date, clock)
			if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
				return fmt.Errorf("check booked appointment: %w", err)
			}
			if existing != nil {
				return ErrSlotTaken
			}

			appt, err := tx.InsertAppointment(lockCtx, patientID, doctorID, date, clock, reason)
			if err != nil {
				return fmt.Errorf("insert appointment: %w", err)
			}

			// Slot bookkeeping is best effort: the appointment uniqueness
			// check above is the source of truth for conflicts.
			slot, err := tx.FindCoveringSlot(lockCtx, doctorID, date, clock)
			if err != nil && !errors.Is(err, ErrSlotNotFound) {
				return fmt.Errorf("find covering slot: %w", err)
			}
			if slot != nil {
				if err := tx.SetSlotBooked(lockCtx, slot.ID, true); err != nil {
					return fmt.Errorf("mark slot booked: %w", err)
				}
			}

			created = appt
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.invalidateAvailability(ctx, doctorID)
	return created, nil
}

// Cancel transitions a booked appointment to cancelled and frees the
// covering slot. The requester must be the booking patient or the assigned
// doctor; role authorization beyond that lives upstream.
func (s *Service) Cancel(ctx context.Context, appointmentID, requesterID uuid.UUID) (*Appointment, error) {
	var cancelled *Appointment
	var doctorID uuid.UUID

	err := s.repo.InTx(ctx, func(tx Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if requesterID != appt.PatientID && requesterID != appt.DoctorID {
			return ErrNotParticipant
		}
		if appt.Status != StatusBooked {
			return ErrNotBooked
		}

		updated, err := tx.UpdateAppointmentStatus(ctx, appointmentID, StatusBooked, StatusCancelled)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Lost a race against another transition.
				return ErrNotBooked
			}
			return fmt.Errorf("cancel appointment: %w", err)
		}

		slot, err := tx.FindCoveringSlot(ctx, appt.DoctorID, appt.Date, appt.Time)
		if err != nil && !errors.Is(err, ErrSlotNotFound) {
			return fmt.Errorf("find covering slot: %w", err)
		}
		if slot != nil {
			if err := tx.SetSlotBooked(ctx, slot.ID, false); err != nil {
				return fmt.Errorf("free slot: %w", err)
			}
		}

		cancelled = updated
		doctorID = appt.DoctorID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAvailability(ctx, doctorID)
	return cancelled, nil
}

// Complete closes a booked appointment and records its treatment. The
// status transition and the treatment insert commit or roll back together.
func (s *Service) Complete(ctx context.Context, appointmentID uuid.UUID, diagnosis string, prescription, notes *string, nextVisit *time.Time) (*Appointment, *Treatment, error) {
	diagnosis = strings.TrimSpace(diagnosis)
	if diagnosis == "" {
		return nil, nil, fmt.Errorf("%w: diagnosis is required", ErrValidation)
	}

	var completed *Appointment
	var treatment *Treatment

	err := s.repo.InTx(ctx, func(tx Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if appt.Status != StatusBooked {
			return ErrNotBooked
		}

		updated, err := tx.UpdateAppointmentStatus(ctx, appointmentID, StatusBooked, StatusCompleted)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return ErrNotBooked
			}
			return fmt.Errorf("complete appointment: %w", err)
		}

		tr, err := tx.InsertTreatment(ctx, appointmentID, diagnosis, prescription, notes, nextVisit)
		if err != nil {
			return fmt.Errorf("insert treatment: %w", err)
		}

		completed = updated
		treatment = tr
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return completed, treatment, nil
}

// GetAppointment fetches one appointment with its treatment, if completed.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, *Treatment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if appt.Status != StatusCompleted {
		return appt, nil, nil
	}

	treatment, err := s.repo.GetTreatmentByAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return appt, nil, nil
		}
		return nil, nil, err
	}
	return appt, treatment, nil
}

func (s *Service) invalidateAvailability(ctx context.Context, doctorID uuid.UUID) {
	s.cache.Invalidate(ctx, availabilityPattern(doctorID))
}

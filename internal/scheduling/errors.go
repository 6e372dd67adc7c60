package scheduling

import (
	"errors"
	"fmt"
)

// Taxonomy sentinels. Every operational error wraps exactly one of these so
// transport layers can map categories without knowing each condition.
var (
	ErrValidation   = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state transition")
	ErrNotFound     = errors.New("not found")
	ErrNotAllowed   = errors.New("not allowed")
)

var (
	ErrDoctorNotFound      = fmt.Errorf("doctor: %w", ErrNotFound)
	ErrPatientNotFound     = fmt.Errorf("patient: %w", ErrNotFound)
	ErrSlotNotFound        = fmt.Errorf("slot: %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment: %w", ErrNotFound)

	// ErrSlotTaken means another booked appointment already holds the
	// requested (doctor, date, time) triple.
	ErrSlotTaken = fmt.Errorf("time slot already booked: %w", ErrConflict)

	// ErrSlotBeingBooked means another request holds the booking lock for
	// the triple right now; the caller may retry against fresh state.
	ErrSlotBeingBooked = fmt.Errorf("time slot is being booked, retry shortly: %w", ErrConflict)

	// ErrSlotBooked rejects removing a slot that still backs a booking.
	ErrSlotBooked = fmt.Errorf("slot has an active booking: %w", ErrConflict)

	// ErrNotBooked rejects lifecycle transitions out of a terminal status.
	ErrNotBooked = fmt.Errorf("appointment is not booked: %w", ErrInvalidState)

	// ErrNotParticipant rejects a cancel by anyone other than the booking
	// patient or the assigned doctor.
	ErrNotParticipant = fmt.Errorf("requester is not part of this appointment: %w", ErrNotAllowed)
)

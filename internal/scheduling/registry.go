package scheduling

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/chartgpt66/hospital-management-system-v2/internal/cache"
)

const listPageSize = 50

// Registry owns the bookable time windows per doctor. It is the source of
// truth for "is this doctor free at time T on date D"; the slot flip itself
// happens inside the coordinator's booking transaction.
type Registry struct {
	repo  Repository
	cache cache.Invalidator
}

func NewRegistry(repo Repository, invalidator cache.Invalidator) *Registry {
	return &Registry{
		repo:  repo,
		cache: invalidator,
	}
}

// AddSlot inserts a free window for the doctor. Overlap with neighbouring
// slots is the admin tooling's responsibility and is not re-validated here.
func (r *Registry) AddSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, start, end string) (*AvailabilitySlot, error) {
	start, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	end, err = ParseClock(end)
	if err != nil {
		return nil, err
	}
	if start >= end {
		return nil, fmt.Errorf("%w: start_time %s must be before end_time %s", ErrValidation, start, end)
	}

	if _, err := r.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	slot, err := r.repo.InsertSlot(ctx, doctorID, date, start, end)
	if err != nil {
		return nil, fmt.Errorf("insert slot: %w", err)
	}

	r.cache.Invalidate(ctx, availabilityPattern(doctorID))
	return slot, nil
}

// RemoveSlot deletes a window, refusing while a booking still holds it.
func (r *Registry) RemoveSlot(ctx context.Context, slotID uuid.UUID) error {
	var doctorID uuid.UUID

	err := r.repo.InTx(ctx, func(tx Tx) error {
		slot, err := tx.GetSlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.IsBooked {
			return ErrSlotBooked
		}
		doctorID = slot.DoctorID
		return tx.DeleteSlot(ctx, slotID)
	})
	if err != nil {
		return err
	}

	r.cache.Invalidate(ctx, availabilityPattern(doctorID))
	return nil
}

// FindCoveringSlot locates the window containing clock, if any. A missing
// window is not an error: booking may proceed on appointment uniqueness alone.
func (r *Registry) FindCoveringSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, clock string) (*AvailabilitySlot, error) {
	var found *AvailabilitySlot
	err := r.repo.InTx(ctx, func(tx Tx) error {
		slot, err := tx.FindCoveringSlot(ctx, doctorID, date, clock)
		if err != nil {
			if errors.Is(err, ErrSlotNotFound) {
				return nil
			}
			return err
		}
		found = slot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// MarkBooked and MarkFree are idempotent bookkeeping flips.

func (r *Registry) MarkBooked(ctx context.Context, slotID uuid.UUID) error {
	return r.repo.SetSlotBooked(ctx, slotID, true)
}

func (r *Registry) MarkFree(ctx context.Context, slotID uuid.UUID) error {
	return r.repo.SetSlotBooked(ctx, slotID, false)
}

// ListOpen yields free slots for the doctor within [from, to], ordered by
// (date, start_time). The sequence pages through the repository lazily and
// can be ranged over more than once.
func (r *Registry) ListOpen(ctx context.Context, doctorID uuid.UUID, from, to time.Time) iter.Seq2[AvailabilitySlot, error] {
	return func(yield func(AvailabilitySlot, error) bool) {
		var cursor *SlotCursor
		for {
			page, err := r.repo.ListOpenSlots(ctx, doctorID, from, to, cursor, listPageSize)
			if err != nil {
				yield(AvailabilitySlot{}, err)
				return
			}
			for _, slot := range page {
				if !yield(slot, nil) {
					return
				}
			}
			if len(page) < listPageSize {
				return
			}
			last := page[len(page)-1]
			cursor = &SlotCursor{Date: last.Date, StartTime: last.StartTime}
		}
	}
}

func availabilityPattern(doctorID uuid.UUID) string {
	return fmt.Sprintf("availability:%s:*", doctorID)
}

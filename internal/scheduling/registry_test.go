package scheduling

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(repo *fakeRepo) (*Registry, *fakeInvalidator) {
	inv := &fakeInvalidator{}
	return NewRegistry(repo, inv), inv
}

func TestAddSlot(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	doctorID := repo.addDoctor()

	reg, inv := newTestRegistry(repo)

	slot, err := reg.AddSlot(ctx, doctorID, testDate(10), "9:00", "10:00")
	require.NoError(t, err)
	assert.Equal(t, "09:00", slot.StartTime, "start time should be normalized")
	assert.Equal(t, "10:00", slot.EndTime)
	assert.False(t, slot.IsBooked)

	assert.Contains(t, inv.patterns, availabilityPattern(doctorID))
}

func TestAddSlotValidation(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	doctorID := repo.addDoctor()

	reg, _ := newTestRegistry(repo)

	_, err := reg.AddSlot(ctx, doctorID, testDate(10), "ten", "11:00")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = reg.AddSlot(ctx, doctorID, testDate(10), "11:00", "10:00")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = reg.AddSlot(ctx, doctorID, testDate(10), "10:00", "10:00")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = reg.AddSlot(ctx, uuid.New(), testDate(10), "09:00", "10:00")
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestRemoveSlot(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	slotID := repo.addSlot(doctorID, testDate(10), "09:00", "10:00")

	reg, _ := newTestRegistry(repo)

	require.NoError(t, reg.RemoveSlot(ctx, slotID))

	_, err := repo.GetSlotByID(ctx, slotID)
	assert.ErrorIs(t, err, ErrSlotNotFound)

	assert.ErrorIs(t, reg.RemoveSlot(ctx, slotID), ErrSlotNotFound)
}

func TestRemoveSlotWhileBooked(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	patientID := repo.addPatient()
	slotID := repo.addSlot(doctorID, testDate(10), "09:00", "10:00")

	svc, _ := newTestService(repo)
	reg, _ := newTestRegistry(repo)

	appt, err := svc.Book(ctx, patientID, doctorID, testDate(10), "09:00", nil)
	require.NoError(t, err)

	err = reg.RemoveSlot(ctx, slotID)
	assert.ErrorIs(t, err, ErrSlotBooked)
	assert.ErrorIs(t, err, ErrConflict)

	// After cancelling, removal goes through.
	_, err = svc.Cancel(ctx, appt.ID, patientID)
	require.NoError(t, err)
	require.NoError(t, reg.RemoveSlot(ctx, slotID))
}

func TestCovers(t *testing.T) {
	slot := AvailabilitySlot{StartTime: "09:00", EndTime: "10:00"}

	assert.True(t, slot.Covers("09:00"), "start is inclusive")
	assert.True(t, slot.Covers("09:59"))
	assert.False(t, slot.Covers("10:00"), "end is exclusive")
	assert.False(t, slot.Covers("08:59"))
}

func TestFindCoveringSlot(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	slotID := repo.addSlot(doctorID, testDate(10), "09:00", "10:00")

	reg, _ := newTestRegistry(repo)

	slot, err := reg.FindCoveringSlot(ctx, doctorID, testDate(10), "09:30")
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, slotID, slot.ID)

	// A missing window is not an error.
	slot, err = reg.FindCoveringSlot(ctx, doctorID, testDate(10), "12:00")
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestListOpenOrderAndFiltering(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	otherDoc := repo.addDoctor()

	// Inserted out of order on purpose.
	repo.addSlot(doctorID, testDate(11), "09:00", "10:00")
	repo.addSlot(doctorID, testDate(10), "14:00", "15:00")
	repo.addSlot(doctorID, testDate(10), "09:00", "10:00")
	repo.addSlot(otherDoc, testDate(10), "09:00", "10:00")

	bookedID := repo.addSlot(doctorID, testDate(10), "11:00", "12:00")
	repo.slots[bookedID].IsBooked = true

	repo.addSlot(doctorID, testDate(25), "09:00", "10:00")

	reg, _ := newTestRegistry(repo)

	var got []AvailabilitySlot
	for slot, err := range reg.ListOpen(ctx, doctorID, testDate(10), testDate(12)) {
		require.NoError(t, err)
		got = append(got, slot)
	}

	require.Len(t, got, 3)
	assert.Equal(t, "09:00", got[0].StartTime)
	assert.Equal(t, testDate(10), got[0].Date)
	assert.Equal(t, "14:00", got[1].StartTime)
	assert.Equal(t, testDate(11), got[2].Date)
}

func TestListOpenPagesAndRestarts(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	doctorID := repo.addDoctor()

	// More slots than one page.
	total := listPageSize*2 + 7
	for i := 0; i < total; i++ {
		day := 1 + i/24
		hour := i % 24
		repo.addSlot(doctorID, testDate(day), fmt.Sprintf("%02d:00", hour), fmt.Sprintf("%02d:59", hour))
	}

	reg, _ := newTestRegistry(repo)
	seq := reg.ListOpen(ctx, doctorID, testDate(1), testDate(28))

	count := 0
	var prev *SlotCursor
	for slot, err := range seq {
		require.NoError(t, err)
		if prev != nil {
			after := slot.Date.After(prev.Date) ||
				(slot.Date.Equal(prev.Date) && slot.StartTime > prev.StartTime)
			assert.True(t, after, "slots must arrive in (date, start_time) order")
		}
		prev = &SlotCursor{Date: slot.Date, StartTime: slot.StartTime}
		count++
	}
	assert.Equal(t, total, count)

	// Early break, then a fresh full pass over the same sequence.
	seen := 0
	for _, err := range seq {
		require.NoError(t, err)
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)

	count = 0
	for _, err := range seq {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, total, count, "sequence should be restartable from the beginning")
}

func TestMarkBookedMarkFree(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	doctorID := repo.addDoctor()
	slotID := repo.addSlot(doctorID, testDate(10), "09:00", "10:00")

	reg, _ := newTestRegistry(repo)

	require.NoError(t, reg.MarkBooked(ctx, slotID))
	slot, err := repo.GetSlotByID(ctx, slotID)
	require.NoError(t, err)
	assert.True(t, slot.IsBooked)

	// Idempotent.
	require.NoError(t, reg.MarkBooked(ctx, slotID))

	require.NoError(t, reg.MarkFree(ctx, slotID))
	slot, err = repo.GetSlotByID(ctx, slotID)
	require.NoError(t, err)
	assert.False(t, slot.IsBooked)

	assert.ErrorIs(t, reg.MarkBooked(ctx, uuid.New()), ErrSlotNotFound)
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "09:00", want: "09:00"},
		{in: "9:00", want: "09:00"},
		{in: "23:59", want: "23:59"},
		{in: "00:00", want: "00:00"},
		{in: "24:00", wantErr: true},
		{in: "09:60", wantErr: true},
		{in: "0900", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrValidation, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-09-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.September, 10, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, "2026-09-10", FormatDate(d))

	_, err = ParseDate("10/09/2026")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseDate("2026-13-01")
	assert.ErrorIs(t, err, ErrValidation)
}

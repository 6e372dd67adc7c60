package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/chartgpt66/hospital-management-system-v2/internal/redis"
)

// fakeRepo is an in-memory Repository. InTx holds a mutex for the whole
// transaction and restores a snapshot on error, giving the same
// serialization and rollback guarantees the pg implementation provides.
type fakeRepo struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]*Doctor
	patients     map[uuid.UUID]*Patient
	slots        map[uuid.UUID]*AvailabilitySlot
	appointments map[uuid.UUID]*Appointment
	treatments   map[uuid.UUID]*Treatment // keyed by appointment id

	failTreatments bool // force InsertTreatment to fail
}

var (
	_ Repository = (*fakeRepo)(nil)
	_ Tx         = (*fakeTx)(nil)
)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		doctors:      make(map[uuid.UUID]*Doctor),
		patients:     make(map[uuid.UUID]*Patient),
		slots:        make(map[uuid.UUID]*AvailabilitySlot),
		appointments: make(map[uuid.UUID]*Appointment),
		treatments:   make(map[uuid.UUID]*Treatment),
	}
}

func (r *fakeRepo) addDoctor() uuid.UUID {
	id := uuid.New()
	r.doctors[id] = &Doctor{ID: id, Name: "Dr. " + id.String()[:8]}
	return id
}

func (r *fakeRepo) addPatient() uuid.UUID {
	id := uuid.New()
	r.patients[id] = &Patient{ID: id, Name: "Patient " + id.String()[:8]}
	return id
}

func (r *fakeRepo) addSlot(doctorID uuid.UUID, date time.Time, start, end string) uuid.UUID {
	return r.addSlotLocked(doctorID, date, start, end)
}

func (r *fakeRepo) snapshot() (map[uuid.UUID]AvailabilitySlot, map[uuid.UUID]Appointment, map[uuid.UUID]Treatment) {
	slots := make(map[uuid.UUID]AvailabilitySlot, len(r.slots))
	for k, v := range r.slots {
		slots[k] = *v
	}
	appts := make(map[uuid.UUID]Appointment, len(r.appointments))
	for k, v := range r.appointments {
		appts[k] = *v
	}
	treatments := make(map[uuid.UUID]Treatment, len(r.treatments))
	for k, v := range r.treatments {
		treatments[k] = *v
	}
	return slots, appts, treatments
}

func (r *fakeRepo) restore(slots map[uuid.UUID]AvailabilitySlot, appts map[uuid.UUID]Appointment, treatments map[uuid.UUID]Treatment) {
	r.slots = make(map[uuid.UUID]*AvailabilitySlot, len(slots))
	for k, v := range slots {
		s := v
		r.slots[k] = &s
	}
	r.appointments = make(map[uuid.UUID]*Appointment, len(appts))
	for k, v := range appts {
		a := v
		r.appointments[k] = &a
	}
	r.treatments = make(map[uuid.UUID]*Treatment, len(treatments))
	for k, v := range treatments {
		t := v
		r.treatments[k] = &t
	}
}

func (r *fakeRepo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slots, appts, treatments := r.snapshot()
	if err := fn(&fakeTx{repo: r}); err != nil {
		r.restore(slots, appts, treatments)
		return err
	}
	return nil
}

func (r *fakeRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	out := *d
	return &out, nil
}

func (r *fakeRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	out := *p
	return &out, nil
}

func (r *fakeRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	out := *s
	return &out, nil
}

func (r *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (r *fakeRepo) GetTreatmentByAppointment(_ context.Context, appointmentID uuid.UUID) (*Treatment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.treatments[appointmentID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *t
	return &out, nil
}

func (r *fakeRepo) InsertSlot(_ context.Context, doctorID uuid.UUID, date time.Time, start, end string) (*AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.addSlotLocked(doctorID, date, start, end)
	out := *r.slots[id]
	return &out, nil
}

func (r *fakeRepo) addSlotLocked(doctorID uuid.UUID, date time.Time, start, end string) uuid.UUID {
	id := uuid.New()
	r.slots[id] = &AvailabilitySlot{
		ID:        id,
		DoctorID:  doctorID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
	}
	return id
}

func (r *fakeRepo) SetSlotBooked(_ context.Context, slotID uuid.UUID, booked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	s.IsBooked = booked
	return nil
}

func (r *fakeRepo) ListOpenSlots(_ context.Context, doctorID uuid.UUID, from, to time.Time, cursor *SlotCursor, limit int) ([]AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []AvailabilitySlot
	for _, s := range r.slots {
		if s.DoctorID != doctorID || s.IsBooked {
			continue
		}
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		all = append(all, *s)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.Before(all[j].Date)
		}
		return all[i].StartTime < all[j].StartTime
	})

	var page []AvailabilitySlot
	for _, s := range all {
		if cursor != nil {
			if s.Date.Before(cursor.Date) {
				continue
			}
			if s.Date.Equal(cursor.Date) && s.StartTime <= cursor.StartTime {
				continue
			}
		}
		page = append(page, s)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (r *fakeRepo) DoctorStats(_ context.Context, doctorID uuid.UUID, today time.Time) (*DoctorStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	weekEnd := today.AddDate(0, 0, 7)
	stats := &DoctorStats{}
	patients := make(map[uuid.UUID]struct{})
	for _, a := range r.appointments {
		if a.DoctorID != doctorID {
			continue
		}
		patients[a.PatientID] = struct{}{}
		if a.Status == StatusBooked && a.Date.Equal(today) {
			stats.BookedToday++
		}
		if a.Status == StatusBooked && !a.Date.Before(today) && !a.Date.After(weekEnd) {
			stats.BookedThisWeek++
		}
		if a.Status == StatusCompleted {
			stats.Completed++
		}
	}
	stats.DistinctPatients = len(patients)
	return stats, nil
}

func (r *fakeRepo) PatientStats(_ context.Context, patientID uuid.UUID, today time.Time) (*PatientStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &PatientStats{}
	for _, a := range r.appointments {
		if a.PatientID != patientID {
			continue
		}
		stats.Total++
		if a.Status == StatusBooked && !a.Date.Before(today) {
			stats.Upcoming++
		}
		if a.Status == StatusCompleted {
			stats.Completed++
		}
	}
	return stats, nil
}

func (r *fakeRepo) CountByStatus(_ context.Context) (*StatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := &StatusCounts{}
	for _, a := range r.appointments {
		switch a.Status {
		case StatusBooked:
			counts.Booked++
		case StatusCompleted:
			counts.Completed++
		case StatusCancelled:
			counts.Cancelled++
		}
	}
	return counts, nil
}

func (r *fakeRepo) TreatmentHistory(_ context.Context, patientID uuid.UUID) ([]TreatmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []TreatmentRecord
	for _, a := range r.appointments {
		if a.PatientID != patientID || a.Status != StatusCompleted {
			continue
		}
		t, ok := r.treatments[a.ID]
		if !ok {
			continue
		}
		doctorName := ""
		if d, ok := r.doctors[a.DoctorID]; ok {
			doctorName = d.Name
		}
		records = append(records, TreatmentRecord{
			AppointmentID: a.ID,
			DoctorName:    doctorName,
			Date:          a.Date,
			Time:          a.Time,
			Diagnosis:     t.Diagnosis,
			Prescription:  t.Prescription,
			Notes:         t.Notes,
			NextVisitDate: t.NextVisitDate,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.After(records[j].Date)
		}
		return records[i].Time > records[j].Time
	})
	return records, nil
}

func (r *fakeRepo) ListBookedOn(_ context.Context, date time.Time) ([]BookedVisit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var visits []BookedVisit
	for _, a := range r.appointments {
		if a.Status != StatusBooked || !a.Date.Equal(date) {
			continue
		}
		v := BookedVisit{
			AppointmentID: a.ID,
			Date:          a.Date,
			Time:          a.Time,
		}
		if d, ok := r.doctors[a.DoctorID]; ok {
			v.DoctorName = d.Name
		}
		if p, ok := r.patients[a.PatientID]; ok {
			v.PatientName = p.Name
			v.PatientEmail = p.Email
		}
		visits = append(visits, v)
	}
	sort.Slice(visits, func(i, j int) bool { return visits[i].Time < visits[j].Time })
	return visits, nil
}

func (r *fakeRepo) MonthlyActivity(_ context.Context, from, to time.Time) ([]MonthlyActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byDoctor := make(map[uuid.UUID]*MonthlyActivity)
	for _, a := range r.appointments {
		if a.Date.Before(from) || a.Date.After(to) {
			continue
		}
		m, ok := byDoctor[a.DoctorID]
		if !ok {
			m = &MonthlyActivity{DoctorID: a.DoctorID}
			if d, found := r.doctors[a.DoctorID]; found {
				m.DoctorName = d.Name
				m.DoctorEmail = d.Email
			}
			byDoctor[a.DoctorID] = m
		}
		m.Total++
		switch a.Status {
		case StatusCompleted:
			m.Completed++
		case StatusCancelled:
			m.Cancelled++
		}
	}

	var out []MonthlyActivity
	for _, m := range byDoctor {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DoctorName < out[j].DoctorName })
	return out, nil
}

// fakeTx operates on the repo maps directly; the repo mutex is already
// held for the duration of InTx.
type fakeTx struct {
	repo *fakeRepo
}

func (t *fakeTx) GetBookedAppointment(_ context.Context, doctorID uuid.UUID, date time.Time, clock string) (*Appointment, error) {
	for _, a := range t.repo.appointments {
		if a.DoctorID == doctorID && a.Date.Equal(date) && a.Time == clock && a.Status == StatusBooked {
			out := *a
			return &out, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (t *fakeTx) GetAppointmentForUpdate(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := t.repo.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (t *fakeTx) InsertAppointment(_ context.Context, patientID, doctorID uuid.UUID, date time.Time, clock string, reason *string) (*Appointment, error) {
	id := uuid.New()
	now := time.Now()
	a := &Appointment{
		ID:        id,
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      date,
		Time:      clock,
		Status:    StatusBooked,
		Reason:    reason,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.repo.appointments[id] = a
	out := *a
	return &out, nil
}

func (t *fakeTx) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	a, ok := t.repo.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	out := *a
	return &out, nil
}

func (t *fakeTx) FindCoveringSlot(_ context.Context, doctorID uuid.UUID, date time.Time, clock string) (*AvailabilitySlot, error) {
	var found *AvailabilitySlot
	for _, s := range t.repo.slots {
		if s.DoctorID == doctorID && s.Date.Equal(date) && s.Covers(clock) {
			if found == nil || s.StartTime < found.StartTime {
				found = s
			}
		}
	}
	if found == nil {
		return nil, ErrSlotNotFound
	}
	out := *found
	return &out, nil
}

func (t *fakeTx) SetSlotBooked(_ context.Context, slotID uuid.UUID, booked bool) error {
	s, ok := t.repo.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	s.IsBooked = booked
	return nil
}

func (t *fakeTx) GetSlotForUpdate(_ context.Context, id uuid.UUID) (*AvailabilitySlot, error) {
	s, ok := t.repo.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	out := *s
	return &out, nil
}

func (t *fakeTx) DeleteSlot(_ context.Context, id uuid.UUID) error {
	if _, ok := t.repo.slots[id]; !ok {
		return ErrSlotNotFound
	}
	delete(t.repo.slots, id)
	return nil
}

func (t *fakeTx) InsertTreatment(_ context.Context, appointmentID uuid.UUID, diagnosis string, prescription, notes *string, nextVisit *time.Time) (*Treatment, error) {
	if t.repo.failTreatments {
		return nil, ErrConflict
	}
	if _, exists := t.repo.treatments[appointmentID]; exists {
		return nil, ErrConflict
	}
	tr := &Treatment{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		Diagnosis:     diagnosis,
		Prescription:  prescription,
		Notes:         notes,
		NextVisitDate: nextVisit,
		CreatedAt:     time.Now(),
	}
	t.repo.treatments[appointmentID] = tr
	out := *tr
	return &out, nil
}

// fakeLocker serializes callers per key with local mutexes.
type fakeLocker struct {
	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{keys: make(map[string]*sync.Mutex)}
}

func (l *fakeLocker) WithBookingLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.keys[key]
	if !ok {
		m = &sync.Mutex{}
		l.keys[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

var _ redisclient.Locker = (*fakeLocker)(nil)

// fakeInvalidator records invalidated patterns.
type fakeInvalidator struct {
	mu       sync.Mutex
	patterns []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, pattern string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = append(f.patterns, pattern)
}

package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// execer is the slice of pgxpool.Pool and pgx.Tx needed by shared writes.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty, email *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&email,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	d.Email = email
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanSlot(row pgx.Row) (*AvailabilitySlot, error) {
	var s AvailabilitySlot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.IsBooked,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var reason *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&a.Time,
		&a.Status,
		&reason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Reason = reason
	return &a, nil
}

func scanTreatment(row pgx.Row) (*Treatment, error) {
	var t Treatment
	var prescription, notes *string
	var nextVisit *time.Time

	err := row.Scan(
		&t.ID,
		&t.AppointmentID,
		&t.Diagnosis,
		&prescription,
		&notes,
		&nextVisit,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("treatment: %w", ErrNotFound)
		}
		return nil, err
	}

	t.Prescription = prescription
	t.Notes = notes
	t.NextVisitDate = nextVisit
	return &t, nil
}

const slotColumns = `id, doctor_id, date, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), is_booked, created_at, updated_at`

const appointmentColumns = `id, patient_id, doctor_id, appointment_date, to_char(appointment_time, 'HH24:MI'), status, reason, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, email, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*AvailabilitySlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetTreatmentByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Treatment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, diagnosis, prescription, notes, next_visit_date, created_at
		FROM treatments
		WHERE appointment_id = $1
	`, appointmentID)
	return scanTreatment(row)
}

func (r *PgRepository) InsertSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, start, end string) (*AvailabilitySlot, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_slots (id, doctor_id, date, start_time, end_time, is_booked, created_at, updated_at)
		VALUES ($1, $2, $3, $4::time, $5::time, false, now(), now())
		RETURNING `+slotColumns+`
	`, id, doctorID, date, start, end)

	return scanSlot(row)
}

func (r *PgRepository) SetSlotBooked(ctx context.Context, slotID uuid.UUID, booked bool) error {
	return setSlotBooked(ctx, r.pool, slotID, booked)
}

func (r *PgRepository) ListOpenSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, cursor *SlotCursor, limit int) ([]AvailabilitySlot, error) {
	var cursorDate *time.Time
	var cursorStart *string
	if cursor != nil {
		cursorDate = &cursor.Date
		cursorStart = &cursor.StartTime
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE doctor_id = $1
		  AND is_booked = false
		  AND date BETWEEN $2 AND $3
		  AND ($4::date IS NULL OR (date, start_time) > ($4::date, $5::time))
		ORDER BY date, start_time
		LIMIT $6
	`, doctorID, from, to, cursorDate, cursorStart, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilitySlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) DoctorStats(ctx context.Context, doctorID uuid.UUID, today time.Time) (*DoctorStats, error) {
	weekEnd := today.AddDate(0, 0, 7)

	var stats DoctorStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'booked' AND appointment_date = $2),
			COUNT(*) FILTER (WHERE status = 'booked' AND appointment_date BETWEEN $2 AND $3),
			COUNT(DISTINCT patient_id),
			COUNT(*) FILTER (WHERE status = 'completed')
		FROM appointments
		WHERE doctor_id = $1
	`, doctorID, today, weekEnd).Scan(
		&stats.BookedToday,
		&stats.BookedThisWeek,
		&stats.DistinctPatients,
		&stats.Completed,
	)
	if err != nil {
		return nil, fmt.Errorf("doctor stats: %w", err)
	}

	return &stats, nil
}

func (r *PgRepository) PatientStats(ctx context.Context, patientID uuid.UUID, today time.Time) (*PatientStats, error) {
	var stats PatientStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'booked' AND appointment_date >= $2),
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed')
		FROM appointments
		WHERE patient_id = $1
	`, patientID, today).Scan(
		&stats.Upcoming,
		&stats.Total,
		&stats.Completed,
	)
	if err != nil {
		return nil, fmt.Errorf("patient stats: %w", err)
	}

	return &stats, nil
}

func (r *PgRepository) CountByStatus(ctx context.Context) (*StatusCounts, error) {
	var counts StatusCounts
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'booked'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM appointments
	`).Scan(&counts.Booked, &counts.Completed, &counts.Cancelled)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}

	return &counts, nil
}

func (r *PgRepository) TreatmentHistory(ctx context.Context, patientID uuid.UUID) ([]TreatmentRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, d.name, a.appointment_date, to_char(a.appointment_time, 'HH24:MI'),
		       t.diagnosis, t.prescription, t.notes, t.next_visit_date
		FROM appointments a
		JOIN treatments t ON t.appointment_id = a.id
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.patient_id = $1
		  AND a.status = 'completed'
		ORDER BY a.appointment_date DESC, a.appointment_time DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TreatmentRecord
	for rows.Next() {
		var rec TreatmentRecord
		err := rows.Scan(
			&rec.AppointmentID,
			&rec.DoctorName,
			&rec.Date,
			&rec.Time,
			&rec.Diagnosis,
			&rec.Prescription,
			&rec.Notes,
			&rec.NextVisitDate,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListBookedOn(ctx context.Context, date time.Time) ([]BookedVisit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.appointment_date, to_char(a.appointment_time, 'HH24:MI'),
		       d.name, p.name, p.email
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		JOIN patients p ON p.id = a.patient_id
		WHERE a.appointment_date = $1
		  AND a.status = 'booked'
		ORDER BY a.appointment_time
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BookedVisit
	for rows.Next() {
		var v BookedVisit
		err := rows.Scan(
			&v.AppointmentID,
			&v.Date,
			&v.Time,
			&v.DoctorName,
			&v.PatientName,
			&v.PatientEmail,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) MonthlyActivity(ctx context.Context, from, to time.Time) ([]MonthlyActivity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.id, d.name, d.email,
		       COUNT(a.id),
		       COUNT(a.id) FILTER (WHERE a.status = 'completed'),
		       COUNT(a.id) FILTER (WHERE a.status = 'cancelled')
		FROM doctors d
		JOIN appointments a ON a.doctor_id = d.id
		WHERE a.appointment_date BETWEEN $1 AND $2
		GROUP BY d.id, d.name, d.email
		ORDER BY d.name
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MonthlyActivity
	for rows.Next() {
		var m MonthlyActivity
		err := rows.Scan(
			&m.DoctorID,
			&m.DoctorName,
			&m.DoctorEmail,
			&m.Total,
			&m.Completed,
			&m.Cancelled,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	pgtx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = pgtx.Rollback(ctx)
	}()

	if err := fn(&pgTx{tx: pgtx}); err != nil {
		return err
	}

	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// pgTx implements Tx on top of a live pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetBookedAppointment(ctx context.Context, doctorID uuid.UUID, date time.Time, clock string) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND appointment_time = $3::time
		  AND status = 'booked'
		FOR UPDATE
	`, doctorID, date, clock)
	return scanAppointment(row)
}

func (t *pgTx) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

func (t *pgTx) InsertAppointment(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, clock string, reason *string) (*Appointment, error) {
	id := uuid.New()

	row := t.tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, appointment_time, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::time, 'booked', $6, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, patientID, doctorID, date, clock, reason)

	return scanAppointment(row)
}

func (t *pgTx) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (t *pgTx) FindCoveringSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, clock string) (*AvailabilitySlot, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE doctor_id = $1
		  AND date = $2
		  AND start_time <= $3::time
		  AND end_time > $3::time
		ORDER BY start_time
		LIMIT 1
		FOR UPDATE
	`, doctorID, date, clock)
	return scanSlot(row)
}

func (t *pgTx) SetSlotBooked(ctx context.Context, slotID uuid.UUID, booked bool) error {
	return setSlotBooked(ctx, t.tx, slotID, booked)
}

func (t *pgTx) GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*AvailabilitySlot, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanSlot(row)
}

func (t *pgTx) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `
		DELETE FROM availability_slots
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (t *pgTx) InsertTreatment(ctx context.Context, appointmentID uuid.UUID, diagnosis string, prescription, notes *string, nextVisit *time.Time) (*Treatment, error) {
	id := uuid.New()

	row := t.tx.QueryRow(ctx, `
		INSERT INTO treatments (id, appointment_id, diagnosis, prescription, notes, next_visit_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, appointment_id, diagnosis, prescription, notes, next_visit_date, created_at
	`, id, appointmentID, diagnosis, prescription, notes, nextVisit)

	return scanTreatment(row)
}

func setSlotBooked(ctx context.Context, q execer, slotID uuid.UUID, booked bool) error {
	tag, err := q.Exec(ctx, `
		UPDATE availability_slots
		SET is_booked = $2,
		    updated_at = now()
		WHERE id = $1
	`, slotID, booked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

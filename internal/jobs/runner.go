package jobs

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/chartgpt66/hospital-management-system-v2/internal/scheduling"
)

// Ledger is the read-only slice of the scheduling repository the job
// handlers need.
type Ledger interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*scheduling.Patient, error)
	ListBookedOn(ctx context.Context, date time.Time) ([]scheduling.BookedVisit, error)
	MonthlyActivity(ctx context.Context, from, to time.Time) ([]scheduling.MonthlyActivity, error)
	TreatmentHistory(ctx context.Context, patientID uuid.UUID) ([]scheduling.TreatmentRecord, error)
}

// workQueue is the consumer side of the queue.
type workQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*JobStatus, error)
	MarkRunning(ctx context.Context, jobID string) error
	MarkDone(ctx context.Context, jobID, result string) error
	MarkFailed(ctx context.Context, jobID, reason string) error
}

// Runner consumes submitted jobs and executes them. A job failure never
// touches booking state; it is recorded on the job and surfaced via Poll.
type Runner struct {
	queue       workQueue
	ledger      Ledger
	sender      Sender
	pollTimeout time.Duration
}

func NewRunner(queue workQueue, ledger Ledger, sender Sender) *Runner {
	return &Runner{
		queue:       queue,
		ledger:      ledger,
		sender:      sender,
		pollTimeout: 5 * time.Second,
	}
}

func (r *Runner) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := r.queue.Dequeue(ctx, r.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("dequeue error: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		r.RunOne(ctx, job)
	}
}

// RunOne executes a single dequeued job and records its outcome.
func (r *Runner) RunOne(ctx context.Context, job *JobStatus) {
	if err := r.queue.MarkRunning(ctx, job.ID); err != nil {
		log.Printf("mark running job=%s: %v", job.ID, err)
	}

	start := time.Now()
	result, err := r.execute(ctx, job)
	if err != nil {
		log.Printf("job failed id=%s type=%s err=%v", job.ID, job.Type, err)
		if markErr := r.queue.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			log.Printf("mark failed job=%s: %v", job.ID, markErr)
		}
		return
	}

	log.Printf("job done id=%s type=%s duration=%s", job.ID, job.Type, time.Since(start))
	if markErr := r.queue.MarkDone(ctx, job.ID, result); markErr != nil {
		log.Printf("mark done job=%s: %v", job.ID, markErr)
	}
}

func (r *Runner) execute(ctx context.Context, job *JobStatus) (string, error) {
	switch job.Type {
	case JobReminderBatch:
		return r.reminderBatch(ctx, job.Payload)
	case JobMonthlyReport:
		return r.monthlyReport(ctx, job.Payload)
	case JobTreatmentExport:
		return r.treatmentExport(ctx, job.Payload)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownJobType, job.Type)
	}
}

// reminderBatch notifies every patient with a booked appointment on the
// payload date (today when absent).
func (r *Runner) reminderBatch(ctx context.Context, payload map[string]any) (string, error) {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if raw, ok := payload["date"].(string); ok && raw != "" {
		parsed, err := scheduling.ParseDate(raw)
		if err != nil {
			return "", err
		}
		date = parsed
	}

	visits, err := r.ledger.ListBookedOn(ctx, date)
	if err != nil {
		return "", fmt.Errorf("list booked appointments: %w", err)
	}

	sent := 0
	for _, v := range visits {
		recipient := v.PatientName
		if v.PatientEmail != nil {
			recipient = *v.PatientEmail
		}

		body := fmt.Sprintf(
			"Dear %s,\n\nThis is a reminder for your appointment on %s at %s with %s.\nPlease arrive 10 minutes early for registration.\n",
			v.PatientName, scheduling.FormatDate(v.Date), v.Time, v.DoctorName,
		)
		if err := r.sender.Send(ctx, recipient, "Appointment Reminder", body); err != nil {
			log.Printf("reminder send failed appointment=%s err=%v", v.AppointmentID, err)
			continue
		}
		sent++
	}

	return fmt.Sprintf("sent %d of %d reminders", sent, len(visits)), nil
}

// monthlyReport mails each active doctor a summary of the payload month
// ("YYYY-MM", previous month when absent).
func (r *Runner) monthlyReport(ctx context.Context, payload map[string]any) (string, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	if raw, ok := payload["month"].(string); ok && raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			return "", fmt.Errorf("%w: month %q must be YYYY-MM", scheduling.ErrValidation, raw)
		}
		from = parsed
	}
	to := from.AddDate(0, 1, -1)

	activities, err := r.ledger.MonthlyActivity(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("monthly activity: %w", err)
	}

	sent := 0
	for _, a := range activities {
		recipient := a.DoctorName
		if a.DoctorEmail != nil {
			recipient = *a.DoctorEmail
		}

		body := fmt.Sprintf(
			"Monthly Activity Report %s\n\nDr. %s\nTotal appointments: %d\nCompleted: %d\nCancelled: %d\n",
			from.Format("January 2006"), a.DoctorName, a.Total, a.Completed, a.Cancelled,
		)
		subject := fmt.Sprintf("Monthly Activity Report - %s", from.Format("January 2006"))
		if err := r.sender.Send(ctx, recipient, subject, body); err != nil {
			log.Printf("report send failed doctor=%s err=%v", a.DoctorID, err)
			continue
		}
		sent++
	}

	return fmt.Sprintf("sent %d of %d monthly reports", sent, len(activities)), nil
}

// treatmentExport mails a CSV of the patient's completed treatments to the
// payload email address.
func (r *Runner) treatmentExport(ctx context.Context, payload map[string]any) (string, error) {
	rawID, _ := payload["patient_id"].(string)
	patientID, err := uuid.Parse(rawID)
	if err != nil {
		return "", fmt.Errorf("%w: patient_id must be a valid UUID", scheduling.ErrValidation)
	}

	email, _ := payload["email"].(string)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", scheduling.ErrValidation)
	}

	patient, err := r.ledger.GetPatientByID(ctx, patientID)
	if err != nil {
		return "", err
	}

	records, err := r.ledger.TreatmentHistory(ctx, patientID)
	if err != nil {
		return "", fmt.Errorf("treatment history: %w", err)
	}

	body, err := TreatmentCSV(patient, records)
	if err != nil {
		return "", err
	}

	if err := r.sender.Send(ctx, email, "Your Treatment History Export", body); err != nil {
		return "", fmt.Errorf("send export: %w", err)
	}

	return fmt.Sprintf("exported %d treatment records", len(records)), nil
}

// TreatmentCSV renders a patient's treatment history as CSV.
func TreatmentCSV(patient *scheduling.Patient, records []scheduling.TreatmentRecord) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"Patient ID", "Patient Name", "Doctor Name", "Appointment Date",
		"Appointment Time", "Diagnosis", "Prescription", "Notes", "Next Visit Date",
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}

	for _, rec := range records {
		row := []string{
			patient.ID.String(),
			patient.Name,
			rec.DoctorName,
			scheduling.FormatDate(rec.Date),
			rec.Time,
			rec.Diagnosis,
			strOrNA(rec.Prescription),
			strOrNA(rec.Notes),
			dateOrNA(rec.NextVisitDate),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	return buf.String(), nil
}

func strOrNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}

func dateOrNA(d *time.Time) string {
	if d == nil {
		return "N/A"
	}
	return scheduling.FormatDate(*d)
}

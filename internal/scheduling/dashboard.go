package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Dashboard computes read-only statistics over the ledgers. Counts reflect
// the ledger state at query time; concurrent writes are tolerated.
type Dashboard struct {
	repo Repository
}

func NewDashboard(repo Repository) *Dashboard {
	return &Dashboard{repo: repo}
}

func (d *Dashboard) DoctorStats(ctx context.Context, doctorID uuid.UUID, today time.Time) (*DoctorStats, error) {
	if _, err := d.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return d.repo.DoctorStats(ctx, doctorID, today)
}

func (d *Dashboard) PatientStats(ctx context.Context, patientID uuid.UUID, today time.Time) (*PatientStats, error) {
	if _, err := d.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}
	return d.repo.PatientStats(ctx, patientID, today)
}

func (d *Dashboard) GlobalStats(ctx context.Context) (*StatusCounts, error) {
	counts, err := d.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("global stats: %w", err)
	}
	return counts, nil
}

// TreatmentHistory lists the patient's completed visits, newest first.
func (d *Dashboard) TreatmentHistory(ctx context.Context, patientID uuid.UUID) ([]TreatmentRecord, error) {
	if _, err := d.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}
	return d.repo.TreatmentHistory(ctx, patientID)
}

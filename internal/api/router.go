package api

import (
	"context"
	"iter"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/chartgpt66/hospital-management-system-v2/internal/cache"
	"github.com/chartgpt66/hospital-management-system-v2/internal/jobs"
	"github.com/chartgpt66/hospital-management-system-v2/internal/scheduling"
)

// Booker is the coordinator surface the appointment handlers need.
type Booker interface {
	Book(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, clock string, reason *string) (*scheduling.Appointment, error)
	Cancel(ctx context.Context, appointmentID, requesterID uuid.UUID) (*scheduling.Appointment, error)
	Complete(ctx context.Context, appointmentID uuid.UUID, diagnosis string, prescription, notes *string, nextVisit *time.Time) (*scheduling.Appointment, *scheduling.Treatment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, *scheduling.Treatment, error)
}

type SlotRegistry interface {
	AddSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, start, end string) (*scheduling.AvailabilitySlot, error)
	RemoveSlot(ctx context.Context, slotID uuid.UUID) error
	ListOpen(ctx context.Context, doctorID uuid.UUID, from, to time.Time) iter.Seq2[scheduling.AvailabilitySlot, error]
}

type StatsReader interface {
	DoctorStats(ctx context.Context, doctorID uuid.UUID, today time.Time) (*scheduling.DoctorStats, error)
	PatientStats(ctx context.Context, patientID uuid.UUID, today time.Time) (*scheduling.PatientStats, error)
	GlobalStats(ctx context.Context) (*scheduling.StatusCounts, error)
	TreatmentHistory(ctx context.Context, patientID uuid.UUID) ([]scheduling.TreatmentRecord, error)
}

type RouterConfig struct {
	Service  Booker
	Registry SlotRegistry
	Stats    StatsReader
	Queue    jobs.Queue
	Cache    cache.Store
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	if cfg.PgPool != nil && cfg.Redis != nil {
		health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
		r.Get("/health/live", health.Liveness)
		r.Get("/health/ready", health.Readiness)
	}

	r.Post("/appointments", bookAppointmentHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Service))

	r.Get("/doctors/{id}/slots", listOpenSlotsHandler(cfg.Registry, cfg.Cache))
	r.Post("/doctors/{id}/slots", addSlotHandler(cfg.Registry))
	r.Delete("/slots/{id}", removeSlotHandler(cfg.Registry))

	r.Get("/doctors/{id}/stats", doctorStatsHandler(cfg.Stats))
	r.Get("/patients/{id}/stats", patientStatsHandler(cfg.Stats))
	r.Get("/patients/{id}/history", treatmentHistoryHandler(cfg.Stats))
	r.Get("/stats", globalStatsHandler(cfg.Stats))

	if cfg.Queue != nil {
		r.Post("/jobs", submitJobHandler(cfg.Queue))
		r.Get("/jobs/{id}", pollJobHandler(cfg.Queue))
	}

	return r
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chartgpt66/hospital-management-system-v2/internal/cache"
	"github.com/chartgpt66/hospital-management-system-v2/internal/jobs"
	redisclient "github.com/chartgpt66/hospital-management-system-v2/internal/redis"
	"github.com/chartgpt66/hospital-management-system-v2/internal/scheduling"
)

func bookAppointmentHandler(svc Booker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		date, err := scheduling.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}

		appt, err := svc.Book(r.Context(), patientID, doctorID, date, req.Time, req.Reason)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt, nil))
	}
}

func getAppointmentHandler(svc Booker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		appt, treatment, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, treatment))
	}
}

func cancelAppointmentHandler(svc Booker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		requesterID, err := uuid.Parse(r.Header.Get("X-Requester-ID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_requester", "X-Requester-ID header must be a valid UUID")
			return
		}

		appt, err := svc.Cancel(r.Context(), id, requesterID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, nil))
	}
}

func completeAppointmentHandler(svc Booker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req CompleteAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var nextVisit *time.Time
		if req.NextVisitDate != nil && *req.NextVisitDate != "" {
			parsed, err := scheduling.ParseDate(*req.NextVisitDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_next_visit_date", err.Error())
				return
			}
			nextVisit = &parsed
		}

		appt, treatment, err := svc.Complete(r.Context(), id, req.Diagnosis, req.Prescription, req.Notes, nextVisit)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, treatment))
	}
}

func addSlotHandler(reg SlotRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req AddSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		date, err := scheduling.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}

		slot, err := reg.AddSlot(r.Context(), doctorID, date, req.StartTime, req.EndTime)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(*slot))
	}
}

func removeSlotHandler(reg SlotRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		if err := reg.RemoveSlot(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func listOpenSlotsHandler(reg SlotRegistry, store cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		now := time.Now().UTC()
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 0, 7)

		var err error
		if raw := r.URL.Query().Get("from"); raw != "" {
			if from, err = scheduling.ParseDate(raw); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
				return
			}
		}
		if raw := r.URL.Query().Get("to"); raw != "" {
			if to, err = scheduling.ParseDate(raw); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", err.Error())
				return
			}
		}

		key := fmt.Sprintf("availability:%s:%s:%s",
			doctorID, scheduling.FormatDate(from), scheduling.FormatDate(to))

		var cached []SlotResponse
		if store.GetJSON(r.Context(), key, &cached) {
			writeJSON(w, http.StatusOK, cached)
			return
		}

		resp := []SlotResponse{}
		for slot, err := range reg.ListOpen(r.Context(), doctorID, from, to) {
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}
			resp = append(resp, toSlotResponse(slot))
		}

		store.SetJSON(r.Context(), key, resp)
		writeJSON(w, http.StatusOK, resp)
	}
}

func doctorStatsHandler(dash StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		stats, err := dash.DoctorStats(r.Context(), id, today())
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, stats)
	}
}

func patientStatsHandler(dash StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		stats, err := dash.PatientStats(r.Context(), id, today())
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, stats)
	}
}

func globalStatsHandler(dash StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := dash.GlobalStats(r.Context())
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, stats)
	}
}

func treatmentHistoryHandler(dash StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		records, err := dash.TreatmentHistory(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]TreatmentRecordResponse, 0, len(records))
		for _, rec := range records {
			resp = append(resp, toTreatmentRecordResponse(rec))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func submitJobHandler(queue jobs.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		jobID, err := queue.Submit(r.Context(), jobs.JobType(req.Type), req.Payload)
		if err != nil {
			if errors.Is(err, jobs.ErrUnknownJobType) {
				writeError(w, http.StatusBadRequest, "unknown_job_type", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusAccepted, SubmitJobResponse{JobID: jobID})
	}
}

func pollJobHandler(queue jobs.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := queue.Poll(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, jobs.ErrJobNotFound) {
				writeError(w, http.StatusNotFound, "job_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, status)
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, scheduling.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, scheduling.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, scheduling.ErrInvalidState):
		writeError(w, http.StatusBadRequest, "invalid_state", err.Error())
	case errors.Is(err, scheduling.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, scheduling.ErrNotAllowed):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, scheduling.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

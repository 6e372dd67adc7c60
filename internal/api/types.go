package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/chartgpt66/hospital-management-system-v2/internal/scheduling"
)

type BookAppointmentRequest struct {
	PatientID string  `json:"patient_id"`
	DoctorID  string  `json:"doctor_id"`
	Date      string  `json:"date"`
	Time      string  `json:"time"`
	Reason    *string `json:"reason,omitempty"`
}

type CompleteAppointmentRequest struct {
	Diagnosis     string  `json:"diagnosis"`
	Prescription  *string `json:"prescription,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	NextVisitDate *string `json:"next_visit_date,omitempty"`
}

type AddSlotRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type SubmitJobRequest struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

type AppointmentResponse struct {
	ID        uuid.UUID          `json:"id"`
	PatientID uuid.UUID          `json:"patient_id"`
	DoctorID  uuid.UUID          `json:"doctor_id"`
	Date      string             `json:"date"`
	Time      string             `json:"time"`
	Status    string             `json:"status"`
	Reason    *string            `json:"reason,omitempty"`
	Treatment *TreatmentResponse `json:"treatment,omitempty"`
}

type TreatmentResponse struct {
	ID            uuid.UUID `json:"id"`
	Diagnosis     string    `json:"diagnosis"`
	Prescription  *string   `json:"prescription,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	NextVisitDate *string   `json:"next_visit_date,omitempty"`
}

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	IsBooked  bool      `json:"is_booked"`
}

type TreatmentRecordResponse struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	DoctorName    string    `json:"doctor_name"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Diagnosis     string    `json:"diagnosis"`
	Prescription  *string   `json:"prescription,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	NextVisitDate *string   `json:"next_visit_date,omitempty"`
}

type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(appt *scheduling.Appointment, treatment *scheduling.Treatment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:        appt.ID,
		PatientID: appt.PatientID,
		DoctorID:  appt.DoctorID,
		Date:      scheduling.FormatDate(appt.Date),
		Time:      appt.Time,
		Status:    string(appt.Status),
		Reason:    appt.Reason,
	}
	if treatment != nil {
		resp.Treatment = &TreatmentResponse{
			ID:            treatment.ID,
			Diagnosis:     treatment.Diagnosis,
			Prescription:  treatment.Prescription,
			Notes:         treatment.Notes,
			NextVisitDate: formatDatePtr(treatment.NextVisitDate),
		}
	}
	return resp
}

func toSlotResponse(slot scheduling.AvailabilitySlot) SlotResponse {
	return SlotResponse{
		ID:        slot.ID,
		DoctorID:  slot.DoctorID,
		Date:      scheduling.FormatDate(slot.Date),
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		IsBooked:  slot.IsBooked,
	}
}

func toTreatmentRecordResponse(rec scheduling.TreatmentRecord) TreatmentRecordResponse {
	return TreatmentRecordResponse{
		AppointmentID: rec.AppointmentID,
		DoctorName:    rec.DoctorName,
		Date:          scheduling.FormatDate(rec.Date),
		Time:          rec.Time,
		Diagnosis:     rec.Diagnosis,
		Prescription:  rec.Prescription,
		Notes:         rec.Notes,
		NextVisitDate: formatDatePtr(rec.NextVisitDate),
	}
}

func formatDatePtr(d *time.Time) *string {
	if d == nil {
		return nil
	}
	s := scheduling.FormatDate(*d)
	return &s
}

package domain

import "time"

// Note is a clinical observation authored by a doctor for a patient.
// EncryptedNote holds codec output only; plaintext never reaches storage.
type Note struct {
	ID            int64     `json:"id"`
	DoctorID      string    `json:"doctor_id"`
	PatientID     string    `json:"patient_id"`
	EncryptedNote string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

type SubmitNoteRequest struct {
	DoctorID  string `json:"doctor_id" validate:"required"`
	PatientID string `json:"patient_id" validate:"required,nefield=DoctorID"`
	Note      string `json:"note" validate:"required"`
}

type SubmitNoteResponse struct {
	Checklist          []string `json:"checklist"`
	Plan               []string `json:"plan"`
	RemindersScheduled int      `json:"reminders_scheduled"`
}

type NoteResponse struct {
	ID        int64             `json:"id"`
	DoctorID  string            `json:"doctor_id"`
	PatientID string            `json:"patient_id"`
	Note      string            `json:"note"`
	Steps     []*ActionableStep `json:"steps"`
	CreatedAt time.Time         `json:"created_at"`
}

package domain

import "time"

// DoctorPatient links a doctor to a patient in their care.
type DoctorPatient struct {
	ID         int64     `json:"id"`
	DoctorID   string    `json:"doctor_id"`
	PatientID  string    `json:"patient_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

type AssignDoctorRequest struct {
	DoctorID  string `json:"doctor_id" validate:"required"`
	PatientID string `json:"patient_id" validate:"required,nefield=DoctorID"`
}

type PatientSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	AssignedAt time.Time `json:"assigned_at"`
}

type PatientPage struct {
	Items    []*PatientSummary `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	NextPage *int              `json:"next_page"`
}

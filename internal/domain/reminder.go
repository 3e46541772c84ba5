package domain

import "time"

type Reminder struct {
	ID           int64      `json:"id"`
	StepID       int64      `json:"step_id"`
	ScheduleTime time.Time  `json:"schedule_time"`
	Completed    bool       `json:"completed"`
	NotifiedAt   *time.Time `json:"notified_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ReminderView is a reminder joined with its step, as shown to patients.
type ReminderView struct {
	ID           int64     `json:"id"`
	StepID       int64     `json:"step_id"`
	StepType     StepType  `json:"step_type"`
	Description  string    `json:"description"`
	ScheduleTime time.Time `json:"schedule_time"`
	Completed    bool      `json:"completed"`
	CreatedAt    time.Time `json:"created_at"`
}

type ReminderPage struct {
	Items    []*ReminderView `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	NextPage *int            `json:"next_page"`
}

// DueReminder is a pending reminder leased by the dispatcher for delivery.
type DueReminder struct {
	ReminderID   int64     `json:"reminder_id"`
	PatientID    string    `json:"patient_id"`
	StepType     StepType  `json:"step_type"`
	Description  string    `json:"description"`
	ScheduleTime time.Time `json:"schedule_time"`
}

type CompleteReminderRequest struct {
	ReminderID int64  `json:"reminder_id" validate:"required,gt=0"`
	PatientID  string `json:"patient_id" validate:"required"`
}

type CompletionResult struct {
	OK               bool `json:"ok"`
	AlreadyCompleted bool `json:"already_completed"`
}

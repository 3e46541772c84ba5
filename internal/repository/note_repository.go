package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carenote-server/internal/domain"
)

type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) error
	FindByID(ctx context.Context, id int64) (*domain.Note, error)
	// FindPatientIDByReminder resolves reminder -> step -> note -> patient in one query.
	FindPatientIDByReminder(ctx context.Context, reminderID int64) (string, error)
}

const (
	insertNoteSQL = `
INSERT INTO doctor_notes (doctor_id, patient_id, encrypted_note)
VALUES ($1, $2, $3)
RETURNING id, created_at`

	selectNoteSQL = `
SELECT id, doctor_id, patient_id, encrypted_note, created_at
FROM doctor_notes
WHERE id = $1`

	selectReminderPatientSQL = `
SELECT n.patient_id
FROM reminders r
JOIN actionable_steps s ON s.id = r.step_id
JOIN doctor_notes n ON n.id = s.note_id
WHERE r.id = $1`
)

type noteRepository struct {
	db *sql.DB
}

func NewNoteRepository(db *sql.DB) NoteRepository {
	return &noteRepository{db: db}
}

func (r *noteRepository) Create(ctx context.Context, note *domain.Note) error {
	err := conn(ctx, r.db).
		QueryRowContext(ctx, insertNoteSQL, note.DoctorID, note.PatientID, note.EncryptedNote).
		Scan(&note.ID, &note.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

func (r *noteRepository) FindByID(ctx context.Context, id int64) (*domain.Note, error) {
	var note domain.Note
	err := conn(ctx, r.db).QueryRowContext(ctx, selectNoteSQL, id).
		Scan(&note.ID, &note.DoctorID, &note.PatientID, &note.EncryptedNote, &note.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	return &note, nil
}

func (r *noteRepository) FindPatientIDByReminder(ctx context.Context, reminderID int64) (string, error) {
	var patientID string
	err := conn(ctx, r.db).QueryRowContext(ctx, selectReminderPatientSQL, reminderID).Scan(&patientID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve reminder owner: %w", err)
	}
	return patientID, nil
}

package service

import (
	"context"
	"fmt"

	"carenote-server/internal/domain"
	"carenote-server/internal/repository"
	"carenote-server/pkg/cipher"
)

// NoteStore persists notes as ciphertext and resolves reminder ownership.
// Callers enforce participant existence and roles.
type NoteStore struct {
	notes repository.NoteRepository
	codec cipher.Codec
}

func NewNoteStore(notes repository.NoteRepository, codec cipher.Codec) *NoteStore {
	return &NoteStore{
		notes: notes,
		codec: codec,
	}
}

func (s *NoteStore) CreateNote(ctx context.Context, doctorID, patientID, text string) (*domain.Note, error) {
	sealed, err := s.codec.Encrypt(text)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt note: %w", err)
	}

	note := &domain.Note{
		DoctorID:      doctorID,
		PatientID:     patientID,
		EncryptedNote: sealed,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, storageError("note", err)
	}
	return note, nil
}

func (s *NoteStore) FindNote(ctx context.Context, id int64) (*domain.Note, error) {
	note, err := s.notes.FindByID(ctx, id)
	if err != nil {
		return nil, storageError("note", err)
	}
	return note, nil
}

func (s *NoteStore) Reveal(note *domain.Note) (string, error) {
	text, err := s.codec.Decrypt(note.EncryptedNote)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt note %d: %w", note.ID, err)
	}
	return text, nil
}

// FindStepOwnerPatient returns the patient owning the note behind reminderID.
func (s *NoteStore) FindStepOwnerPatient(ctx context.Context, reminderID int64) (string, error) {
	patientID, err := s.notes.FindPatientIDByReminder(ctx, reminderID)
	if err != nil {
		return "", storageError("reminder", err)
	}
	return patientID, nil
}

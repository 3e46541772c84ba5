package repository

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`DO $$ BEGIN
	CREATE TYPE step_type AS ENUM ('checklist', 'plan');
EXCEPTION WHEN duplicate_object THEN NULL;
END $$`,

	`CREATE TABLE IF NOT EXISTS doctor_notes (
	id             BIGSERIAL PRIMARY KEY,
	doctor_id      TEXT NOT NULL,
	patient_id     TEXT NOT NULL,
	encrypted_note TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT doctor_notes_distinct_owner CHECK (doctor_id <> patient_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_doctor_notes_created_at ON doctor_notes (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_doctor_notes_patient_id ON doctor_notes (patient_id)`,

	`CREATE TABLE IF NOT EXISTS actionable_steps (
	id          BIGSERIAL PRIMARY KEY,
	note_id     BIGINT NOT NULL REFERENCES doctor_notes (id),
	type        step_type NOT NULL,
	description TEXT NOT NULL,
	ordinal     INTEGER NOT NULL CHECK (ordinal >= 0),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_actionable_steps_note_id ON actionable_steps (note_id)`,

	`CREATE TABLE IF NOT EXISTS reminders (
	id            BIGSERIAL PRIMARY KEY,
	step_id       BIGINT NOT NULL REFERENCES actionable_steps (id),
	schedule_time TIMESTAMPTZ NOT NULL,
	completed     BOOLEAN NOT NULL DEFAULT FALSE,
	notified_at   TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_reminders_schedule_time ON reminders (schedule_time)`,
	`CREATE INDEX IF NOT EXISTS idx_reminders_completed ON reminders (completed)`,
	`CREATE INDEX IF NOT EXISTS idx_reminders_step_id ON reminders (step_id)`,

	`CREATE TABLE IF NOT EXISTS doctor_patient (
	id          BIGSERIAL PRIMARY KEY,
	doctor_id   TEXT NOT NULL,
	patient_id  TEXT NOT NULL,
	assigned_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT doctor_patient_unique UNIQUE (doctor_id, patient_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_doctor_patient_assigned_at ON doctor_patient (assigned_at)`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

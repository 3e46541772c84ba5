package repository

import (
	"context"
	"database/sql"
	"fmt"

	"carenote-server/internal/domain"
)

type StepRepository interface {
	// CreateBatch inserts steps in order and fills in their IDs.
	CreateBatch(ctx context.Context, steps []*domain.ActionableStep) error
	ListByNote(ctx context.Context, noteID int64) ([]*domain.ActionableStep, error)
}

const (
	insertStepSQL = `
INSERT INTO actionable_steps (note_id, type, description, ordinal)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`

	selectStepsByNoteSQL = `
SELECT id, note_id, type, description, ordinal, created_at
FROM actionable_steps
WHERE note_id = $1
ORDER BY id ASC`
)

type stepRepository struct {
	db *sql.DB
}

func NewStepRepository(db *sql.DB) StepRepository {
	return &stepRepository{db: db}
}

func (r *stepRepository) CreateBatch(ctx context.Context, steps []*domain.ActionableStep) error {
	q := conn(ctx, r.db)
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := q.QueryRowContext(ctx, insertStepSQL, step.NoteID, string(step.Type), step.Description, step.Ordinal).
			Scan(&step.ID, &step.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create actionable step: %w", err)
		}
	}
	return nil
}

func (r *stepRepository) ListByNote(ctx context.Context, noteID int64) ([]*domain.ActionableStep, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, selectStepsByNoteSQL, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list actionable steps: %w", err)
	}
	defer rows.Close()

	steps := []*domain.ActionableStep{}
	for rows.Next() {
		var (
			step     domain.ActionableStep
			stepType string
		)
		if err := rows.Scan(&step.ID, &step.NoteID, &stepType, &step.Description, &step.Ordinal, &step.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan actionable step: %w", err)
		}
		if step.Type, err = domain.ParseStepType(stepType); err != nil {
			return nil, err
		}
		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate actionable steps: %w", err)
	}
	return steps, nil
}

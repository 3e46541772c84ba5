package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"carenote-server/internal/domain"

	"github.com/lib/pq"
)

type ReminderRepository interface {
	// CreateBatch writes reminders in multi-row statements of at most
	// reminderInsertChunk rows and fills in their IDs. Run it inside a
	// transaction when the batch must land atomically.
	CreateBatch(ctx context.Context, reminders []*domain.Reminder) error
	FindByID(ctx context.Context, id int64) (*domain.Reminder, error)
	// MarkCompleted flips completed from false to true. It reports false
	// when the reminder was already completed.
	MarkCompleted(ctx context.Context, id int64) (bool, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*domain.ReminderView, int, error)
	// LeaseDue locks pending, un-notified reminders due at or before now.
	// It must run inside a transaction.
	LeaseDue(ctx context.Context, now time.Time, limit int) ([]*domain.DueReminder, error)
	MarkNotified(ctx context.Context, ids []int64, at time.Time) error
}

// reminderInsertChunk keeps one INSERT under the 65535 bind parameter limit
// at three parameters per row.
const reminderInsertChunk = 1000

const (
	selectReminderSQL = `
SELECT id, step_id, schedule_time, completed, notified_at, created_at
FROM reminders
WHERE id = $1`

	completeReminderSQL = `
UPDATE reminders
SET completed = TRUE
WHERE id = $1 AND completed = FALSE`

	countPatientRemindersSQL = `
SELECT COUNT(*)
FROM reminders r
JOIN actionable_steps s ON s.id = r.step_id
JOIN doctor_notes n ON n.id = s.note_id
WHERE n.patient_id = $1`

	listPatientRemindersSQL = `
SELECT r.id, r.step_id, s.type, s.description, r.schedule_time, r.completed, r.created_at
FROM reminders r
JOIN actionable_steps s ON s.id = r.step_id
JOIN doctor_notes n ON n.id = s.note_id
WHERE n.patient_id = $1
ORDER BY r.schedule_time ASC, r.id ASC
LIMIT $2 OFFSET $3`

	leaseDueRemindersSQL = `
SELECT r.id, n.patient_id, s.type, s.description, r.schedule_time
FROM reminders r
JOIN actionable_steps s ON s.id = r.step_id
JOIN doctor_notes n ON n.id = s.note_id
WHERE r.completed = FALSE
  AND r.notified_at IS NULL
  AND r.schedule_time <= $1
ORDER BY r.schedule_time ASC, r.id ASC
LIMIT $2
FOR UPDATE OF r SKIP LOCKED`

	markNotifiedSQL = `
UPDATE reminders
SET notified_at = $1
WHERE id = ANY($2)`
)

type reminderRepository struct {
	db *sql.DB
}

func NewReminderRepository(db *sql.DB) ReminderRepository {
	return &reminderRepository{db: db}
}

func (r *reminderRepository) CreateBatch(ctx context.Context, reminders []*domain.Reminder) error {
	for start := 0; start < len(reminders); start += reminderInsertChunk {
		end := start + reminderInsertChunk
		if end > len(reminders) {
			end = len(reminders)
		}
		if err := r.insertChunk(ctx, reminders[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// reminderKey identifies an inserted row by its own columns. Postgres does
// not promise RETURNING rows in VALUES order. Reminders sharing a key are
// interchangeable, so any of their IDs may go to any of them.
type reminderKey struct {
	stepID    int64
	at        int64
	completed bool
}

func keyOf(stepID int64, at time.Time, completed bool) reminderKey {
	return reminderKey{stepID: stepID, at: at.UnixMicro(), completed: completed}
}

func (r *reminderRepository) insertChunk(ctx context.Context, reminders []*domain.Reminder) error {
	var (
		sb      strings.Builder
		args    = make([]interface{}, 0, len(reminders)*3)
		pending = make(map[reminderKey][]*domain.Reminder, len(reminders))
	)
	sb.WriteString("INSERT INTO reminders (step_id, schedule_time, completed) VALUES ")
	for i, rem := range reminders {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3)
		args = append(args, rem.StepID, rem.ScheduleTime, rem.Completed)
		k := keyOf(rem.StepID, rem.ScheduleTime, rem.Completed)
		pending[k] = append(pending[k], rem)
	}
	sb.WriteString(" RETURNING id, step_id, schedule_time, completed, created_at")

	rows, err := conn(ctx, r.db).QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("failed to create reminders: %w", err)
	}
	defer rows.Close()

	matched := 0
	for rows.Next() {
		var (
			id, stepID int64
			at         time.Time
			completed  bool
			createdAt  time.Time
		)
		if err := rows.Scan(&id, &stepID, &at, &completed, &createdAt); err != nil {
			return fmt.Errorf("failed to scan reminder: %w", err)
		}
		k := keyOf(stepID, at, completed)
		queue := pending[k]
		if len(queue) == 0 {
			return fmt.Errorf("failed to create reminders: unexpected row for step %d", stepID)
		}
		queue[0].ID, queue[0].CreatedAt = id, createdAt
		pending[k] = queue[1:]
		matched++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to create reminders: %w", err)
	}
	if matched != len(reminders) {
		return fmt.Errorf("failed to create reminders: inserted %d of %d", matched, len(reminders))
	}
	return nil
}

func (r *reminderRepository) FindByID(ctx context.Context, id int64) (*domain.Reminder, error) {
	var (
		rem        domain.Reminder
		notifiedAt sql.NullTime
	)
	err := conn(ctx, r.db).QueryRowContext(ctx, selectReminderSQL, id).
		Scan(&rem.ID, &rem.StepID, &rem.ScheduleTime, &rem.Completed, &notifiedAt, &rem.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reminder: %w", err)
	}
	if notifiedAt.Valid {
		rem.NotifiedAt = &notifiedAt.Time
	}
	return &rem, nil
}

func (r *reminderRepository) MarkCompleted(ctx context.Context, id int64) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, completeReminderSQL, id)
	if err != nil {
		return false, fmt.Errorf("failed to complete reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to complete reminder: %w", err)
	}
	return n == 1, nil
}

func (r *reminderRepository) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*domain.ReminderView, int, error) {
	q := conn(ctx, r.db)

	var total int
	if err := q.QueryRowContext(ctx, countPatientRemindersSQL, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reminders: %w", err)
	}

	rows, err := q.QueryContext(ctx, listPatientRemindersSQL, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	items := []*domain.ReminderView{}
	for rows.Next() {
		var (
			view     domain.ReminderView
			stepType string
		)
		if err := rows.Scan(&view.ID, &view.StepID, &stepType, &view.Description, &view.ScheduleTime, &view.Completed, &view.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan reminder: %w", err)
		}
		if view.StepType, err = domain.ParseStepType(stepType); err != nil {
			return nil, 0, err
		}
		items = append(items, &view)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate reminders: %w", err)
	}

	return items, total, nil
}

func (r *reminderRepository) LeaseDue(ctx context.Context, now time.Time, limit int) ([]*domain.DueReminder, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, leaseDueRemindersSQL, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to lease due reminders: %w", err)
	}
	defer rows.Close()

	due := []*domain.DueReminder{}
	for rows.Next() {
		var (
			d        domain.DueReminder
			stepType string
		)
		if err := rows.Scan(&d.ReminderID, &d.PatientID, &stepType, &d.Description, &d.ScheduleTime); err != nil {
			return nil, fmt.Errorf("failed to scan due reminder: %w", err)
		}
		if d.StepType, err = domain.ParseStepType(stepType); err != nil {
			return nil, err
		}
		due = append(due, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due reminders: %w", err)
	}
	return due, nil
}

func (r *reminderRepository) MarkNotified(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := conn(ctx, r.db).ExecContext(ctx, markNotifiedSQL, at, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to mark reminders notified: %w", err)
	}
	return nil
}

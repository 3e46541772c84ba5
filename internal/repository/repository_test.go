package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"carenote-server/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	db, mock := setupMockDB(t)
	notes := NewNoteRepository(db)
	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(insertNoteSQL)).
		WithArgs("doc-1", "pat-1", "sealed").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, created))
	mock.ExpectCommit()

	note := &domain.Note{DoctorID: "doc-1", PatientID: "pat-1", EncryptedNote: "sealed"}
	err := NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context) error {
		return notes.Create(ctx, note)
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), note.ID)
	assert.Equal(t, created, note.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	db, mock := setupMockDB(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_NestedJoinsOuter(t *testing.T) {
	db, mock := setupMockDB(t)
	tx := NewTransactor(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		return tx.WithinTx(ctx, func(ctx context.Context) error {
			calls++
			return nil
		})
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteRepository_FindByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNoteRepository(db)
	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(selectNoteSQL)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doctor_id", "patient_id", "encrypted_note", "created_at"}).
			AddRow(3, "doc-1", "pat-1", "sealed", created))

	note, err := repo.FindByID(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, "doc-1", note.DoctorID)
	assert.Equal(t, "pat-1", note.PatientID)
	assert.Equal(t, "sealed", note.EncryptedNote)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoteRepository_FindByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNoteRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectNoteSQL)).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 99)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNoteRepository_FindPatientIDByReminder(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNoteRepository(db)

	mock.ExpectQuery(`JOIN actionable_steps s ON s.id = r.step_id`).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"patient_id"}).AddRow("pat-1"))
	mock.ExpectQuery(`JOIN doctor_notes n ON n.id = s.note_id`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"patient_id"}))

	patientID, err := repo.FindPatientIDByReminder(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, "pat-1", patientID)

	_, err = repo.FindPatientIDByReminder(context.Background(), 12)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStepRepository_CreateBatch(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStepRepository(db)
	now := time.Now()

	steps := []*domain.ActionableStep{
		{NoteID: 1, Type: domain.StepTypeChecklist, Description: "Buy ibuprofen", Ordinal: 0},
		{NoteID: 1, Type: domain.StepTypePlan, Description: "Walk 20 minutes", Ordinal: 0},
	}

	mock.ExpectQuery(regexp.QuoteMeta(insertStepSQL)).
		WithArgs(int64(1), "checklist", "Buy ibuprofen", 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(10, now))
	mock.ExpectQuery(regexp.QuoteMeta(insertStepSQL)).
		WithArgs(int64(1), "plan", "Walk 20 minutes", 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, now))

	require.NoError(t, repo.CreateBatch(context.Background(), steps))
	assert.Equal(t, int64(10), steps[0].ID)
	assert.Equal(t, int64(11), steps[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStepRepository_ListByNote(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStepRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(selectStepsByNoteSQL)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "note_id", "type", "description", "ordinal", "created_at"}).
			AddRow(10, 1, "checklist", "Buy ibuprofen", 0, now).
			AddRow(11, 1, "plan", "Walk 20 minutes", 0, now))

	steps, err := repo.ListByNote(context.Background(), 1)

	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, domain.StepTypeChecklist, steps[0].Type)
	assert.Equal(t, domain.StepTypePlan, steps[1].Type)
}

func TestReminderRepository_CreateBatch(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReminderRepository(db)
	t0 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	created := t0.Add(time.Minute)

	reminders := []*domain.Reminder{
		{StepID: 10, ScheduleTime: t0.Add(10 * time.Second)},
		{StepID: 11, ScheduleTime: t0},
		{StepID: 11, ScheduleTime: t0.AddDate(0, 0, 1)},
	}

	// Rows come back in a different order than they were sent.
	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO reminders (step_id, schedule_time, completed) VALUES ($1, $2, $3), ($4, $5, $6), ($7, $8, $9) RETURNING id, step_id, schedule_time, completed, created_at")).
		WithArgs(
			int64(10), t0.Add(10*time.Second), false,
			int64(11), t0, false,
			int64(11), t0.AddDate(0, 0, 1), false,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id", "step_id", "schedule_time", "completed", "created_at"}).
			AddRow(100, 11, t0.AddDate(0, 0, 1), false, created).
			AddRow(101, 10, t0.Add(10*time.Second), false, created).
			AddRow(102, 11, t0, false, created))

	require.NoError(t, repo.CreateBatch(context.Background(), reminders))
	assert.Equal(t, int64(101), reminders[0].ID)
	assert.Equal(t, int64(102), reminders[1].ID)
	assert.Equal(t, int64(100), reminders[2].ID)
	assert.True(t, created.Equal(reminders[1].CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderRepository_CreateBatch_Chunks(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReminderRepository(db)
	t0 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	total := reminderInsertChunk + 1
	reminders := make([]*domain.Reminder, 0, total)
	first := sqlmock.NewRows([]string{"id", "step_id", "schedule_time", "completed", "created_at"})
	for i := 0; i < total; i++ {
		at := t0.Add(time.Duration(i) * time.Hour)
		reminders = append(reminders, &domain.Reminder{StepID: 7, ScheduleTime: at})
		if i < reminderInsertChunk {
			first.AddRow(int64(i+1), 7, at, false, t0)
		}
	}

	last := fmt.Sprintf("($%d, $%d, $%d) RETURNING", reminderInsertChunk*3-2, reminderInsertChunk*3-1, reminderInsertChunk*3)
	mock.ExpectQuery(regexp.QuoteMeta(last)).WillReturnRows(first)
	mock.ExpectQuery(regexp.QuoteMeta("VALUES ($1, $2, $3) RETURNING")).
		WithArgs(int64(7), t0.Add(time.Duration(reminderInsertChunk)*time.Hour), false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "step_id", "schedule_time", "completed", "created_at"}).
			AddRow(int64(total), 7, t0.Add(time.Duration(reminderInsertChunk)*time.Hour), false, t0))

	require.NoError(t, repo.CreateBatch(context.Background(), reminders))
	assert.Equal(t, int64(1), reminders[0].ID)
	assert.Equal(t, int64(reminderInsertChunk), reminders[reminderInsertChunk-1].ID)
	assert.Equal(t, int64(total), reminders[reminderInsertChunk].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderRepository_CreateBatch_Empty(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReminderRepository(db)

	require.NoError(t, repo.CreateBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderRepository_CreateBatch_ShortReturn(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReminderRepository(db)
	t0 := time.Now()

	mock.ExpectQuery(`INSERT INTO reminders`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "step_id", "schedule_time", "completed", "created_at"}).
			AddRow(1, 1, t0, false, t0))

	err := repo.CreateBatch(context.Background(), []*domain.Reminder{
		{StepID: 1, ScheduleTime: t0},
		{StepID: 2, ScheduleTime: t0},
	})
	assert.Error(t, err)
}

func TestReminderRepository_CreateBatch_UnknownRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReminderRepository(db)
	t0 := time.Now()

	mock.ExpectQuery(`INSERT INTO reminders`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "step_id", "schedule_time", "completed", "created_at"}).
			AddRow(1, 99, t0, false, t0))

	err := repo.CreateBatch(context.Background(), []*domain.Reminder{{StepID: 1, ScheduleTime: t0}})
	assert.Error(t, err)
}

func TestReminderRepository_MarkCompleted(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "pending reminder", affected: 1, want: true},
		{name: "already completed", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewReminderRepository(db)

			mock.ExpectExec(regexp.QuoteMeta(completeReminderSQL)).
				WithArgs(int64(5)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			changed, err := repo.MarkCompleted(context.Background(), 5)

			require.NoError(t, err)
			assert.Equal(t, tt.want, changed)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReminderRepository_FindByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReminderRepository(db)
	t0 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(selectReminderSQL)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "step_id", "schedule_time", "completed", "notified_at", "created_at"}).
			AddRow(5, 10, t0, false, nil, t0))
	mock.ExpectQuery(regexp.QuoteMeta(selectReminderSQL)).
		WithArgs(int64(6)).
		WillReturnError(sql.ErrNoRows)

	rem, err := repo.FindByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(10), rem.StepID)
	assert.Nil(t, rem.NotifiedAt)

	_, err = repo.FindByID(context.Background(), 6)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReminderRepository_ListByPatient(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReminderRepository(db)
	t0 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(countPatientRemindersSQL)).
		WithArgs("pat-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta(listPatientRemindersSQL)).
		WithArgs("pat-1", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "step_id", "type", "description", "schedule_time", "completed", "created_at"}).
			AddRow(100, 10, "checklist", "Buy ibuprofen", t0, false, t0).
			AddRow(101, 11, "plan", "Walk 20 minutes", t0, true, t0))

	items, total, err := repo.ListByPatient(context.Background(), "pat-1", 10, 0)

	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, items, 2)
	assert.Equal(t, domain.StepTypeChecklist, items[0].StepType)
	assert.True(t, items[1].Completed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderRepository_LeaseDueAndMarkNotified(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReminderRepository(db)
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF r SKIP LOCKED`).
		WithArgs(now, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "type", "description", "schedule_time"}).
			AddRow(100, "pat-1", "checklist", "Buy ibuprofen", now.Add(-time.Second)))
	mock.ExpectExec(regexp.QuoteMeta(markNotifiedSQL)).
		WithArgs(now, pq.Array([]int64{100})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var leased []*domain.DueReminder
	err := NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context) error {
		var err error
		if leased, err = repo.LeaseDue(ctx, now, 100); err != nil {
			return err
		}
		return repo.MarkNotified(ctx, []int64{leased[0].ReminderID}, now)
	})

	require.NoError(t, err)
	require.Len(t, leased, 1)
	assert.Equal(t, "pat-1", leased[0].PatientID)
	assert.Equal(t, domain.StepTypeChecklist, leased[0].StepType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCareTeamRepository_Assign(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCareTeamRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(insertCareTeamSQL)).
		WithArgs("doc-1", "pat-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "assigned_at"}).AddRow(1, now))
	mock.ExpectQuery(regexp.QuoteMeta(insertCareTeamSQL)).
		WithArgs("doc-1", "pat-1").
		WillReturnError(&pq.Error{Code: "23505"})

	link := &domain.DoctorPatient{DoctorID: "doc-1", PatientID: "pat-1"}
	require.NoError(t, repo.Assign(context.Background(), link))
	assert.Equal(t, int64(1), link.ID)

	err := repo.Assign(context.Background(), &domain.DoctorPatient{DoctorID: "doc-1", PatientID: "pat-1"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCareTeamRepository_ExistsAndList(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCareTeamRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("doc-1", "pat-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(countCareTeamSQL)).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(listCareTeamSQL)).
		WithArgs("doc-1", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doctor_id", "patient_id", "assigned_at"}).
			AddRow(1, "doc-1", "pat-1", now))

	ok, err := repo.Exists(context.Background(), "doc-1", "pat-1")
	require.NoError(t, err)
	assert.True(t, ok)

	links, total, err := repo.ListByDoctor(context.Background(), "doc-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, links, 1)
	assert.Equal(t, "pat-1", links[0].PatientID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	db, mock := setupMockDB(t)

	for range schema {
		mock.ExpectExec(`.+`).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"carenote-server/internal/domain"
	"carenote-server/internal/repository"
)

type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) add(id string, role domain.Role) {
	m.users[id] = &domain.User{ID: id, Name: "User " + id, Email: id + "@example.com", Role: role}
}

func (m *mockUserRepository) Create(_ context.Context, user *domain.User) error {
	if _, ok := m.users[user.ID]; ok {
		return repository.ErrDuplicate
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	if user, ok := m.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) Update(_ context.Context, user *domain.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

// memDB is an in-memory stand-in for the relational store. memTx snapshots
// it so a failed transaction leaves no rows behind.
type memDB struct {
	mu        sync.Mutex
	seq       int64
	notes     map[int64]*domain.Note
	steps     map[int64]*domain.ActionableStep
	reminders map[int64]*domain.Reminder
	links     []*domain.DoctorPatient

	failReminders bool
}

func newMemDB() *memDB {
	return &memDB{
		notes:     make(map[int64]*domain.Note),
		steps:     make(map[int64]*domain.ActionableStep),
		reminders: make(map[int64]*domain.Reminder),
	}
}

func (db *memDB) nextID() int64 {
	db.seq++
	return db.seq
}

type memSnapshot struct {
	seq       int64
	notes     map[int64]domain.Note
	steps     map[int64]domain.ActionableStep
	reminders map[int64]domain.Reminder
	links     []domain.DoctorPatient
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := memSnapshot{
		seq:       db.seq,
		notes:     make(map[int64]domain.Note),
		steps:     make(map[int64]domain.ActionableStep),
		reminders: make(map[int64]domain.Reminder),
	}
	for id, n := range db.notes {
		s.notes[id] = *n
	}
	for id, st := range db.steps {
		s.steps[id] = *st
	}
	for id, r := range db.reminders {
		s.reminders[id] = *r
	}
	for _, l := range db.links {
		s.links = append(s.links, *l)
	}
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.seq = s.seq
	db.notes = make(map[int64]*domain.Note)
	db.steps = make(map[int64]*domain.ActionableStep)
	db.reminders = make(map[int64]*domain.Reminder)
	db.links = nil
	for id, n := range s.notes {
		n := n
		db.notes[id] = &n
	}
	for id, st := range s.steps {
		st := st
		db.steps[id] = &st
	}
	for id, r := range s.reminders {
		r := r
		db.reminders[id] = &r
	}
	for _, l := range s.links {
		l := l
		db.links = append(db.links, &l)
	}
}

func (db *memDB) remindersFor(patientID string) []*domain.Reminder {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []*domain.Reminder
	for _, r := range db.reminders {
		step := db.steps[r.StepID]
		if step != nil && db.notes[step.NoteID].PatientID == patientID {
			copied := *r
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memTx struct {
	db    *memDB
	calls int
}

func (t *memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	snap := t.db.snapshot()
	if err := fn(ctx); err != nil {
		t.db.restore(snap)
		return err
	}
	return nil
}

type memNotes struct{ db *memDB }

func (r memNotes) Create(ctx context.Context, note *domain.Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	note.ID = r.db.nextID()
	note.CreatedAt = time.Now()
	copied := *note
	r.db.notes[note.ID] = &copied
	return nil
}

func (r memNotes) FindByID(_ context.Context, id int64) (*domain.Note, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	note, ok := r.db.notes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *note
	return &copied, nil
}

func (r memNotes) FindPatientIDByReminder(_ context.Context, reminderID int64) (string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rem, ok := r.db.reminders[reminderID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return r.db.notes[r.db.steps[rem.StepID].NoteID].PatientID, nil
}

type memSteps struct{ db *memDB }

func (r memSteps) CreateBatch(ctx context.Context, steps []*domain.ActionableStep) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		step.ID = r.db.nextID()
		step.CreatedAt = time.Now()
		copied := *step
		r.db.steps[step.ID] = &copied
	}
	return nil
}

func (r memSteps) ListByNote(_ context.Context, noteID int64) ([]*domain.ActionableStep, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*domain.ActionableStep{}
	for _, step := range r.db.steps {
		if step.NoteID == noteID {
			copied := *step
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memReminders struct{ db *memDB }

func (r memReminders) CreateBatch(ctx context.Context, reminders []*domain.Reminder) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failReminders {
		return errors.New("connection reset")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, rem := range reminders {
		rem.ID = r.db.nextID()
		rem.CreatedAt = time.Now()
		copied := *rem
		r.db.reminders[rem.ID] = &copied
	}
	return nil
}

func (r memReminders) FindByID(_ context.Context, id int64) (*domain.Reminder, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rem, ok := r.db.reminders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *rem
	return &copied, nil
}

func (r memReminders) MarkCompleted(_ context.Context, id int64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rem, ok := r.db.reminders[id]
	if !ok || rem.Completed {
		return false, nil
	}
	rem.Completed = true
	return true, nil
}

func (r memReminders) ListByPatient(_ context.Context, patientID string, limit, offset int) ([]*domain.ReminderView, int, error) {
	all := r.db.remindersFor(patientID)
	sort.SliceStable(all, func(i, j int) bool { return all[i].ScheduleTime.Before(all[j].ScheduleTime) })

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	items := []*domain.ReminderView{}
	for i := offset; i < len(all) && i < offset+limit; i++ {
		step := r.db.steps[all[i].StepID]
		items = append(items, &domain.ReminderView{
			ID:           all[i].ID,
			StepID:       all[i].StepID,
			StepType:     step.Type,
			Description:  step.Description,
			ScheduleTime: all[i].ScheduleTime,
			Completed:    all[i].Completed,
		})
	}
	return items, len(all), nil
}

func (r memReminders) LeaseDue(_ context.Context, now time.Time, limit int) ([]*domain.DueReminder, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	due := []*domain.DueReminder{}
	for _, rem := range r.db.reminders {
		if rem.Completed || rem.NotifiedAt != nil || rem.ScheduleTime.After(now) {
			continue
		}
		step := r.db.steps[rem.StepID]
		due = append(due, &domain.DueReminder{
			ReminderID:   rem.ID,
			PatientID:    r.db.notes[step.NoteID].PatientID,
			StepType:     step.Type,
			Description:  step.Description,
			ScheduleTime: rem.ScheduleTime,
		})
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ReminderID < due[j].ReminderID })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r memReminders) MarkNotified(_ context.Context, ids []int64, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, id := range ids {
		if rem, ok := r.db.reminders[id]; ok {
			stamp := at
			rem.NotifiedAt = &stamp
		}
	}
	return nil
}

type memCareTeam struct{ db *memDB }

func (r memCareTeam) Assign(_ context.Context, link *domain.DoctorPatient) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, l := range r.db.links {
		if l.DoctorID == link.DoctorID && l.PatientID == link.PatientID {
			return repository.ErrDuplicate
		}
	}
	link.ID = r.db.nextID()
	link.AssignedAt = time.Now().Add(time.Duration(link.ID) * time.Second)
	copied := *link
	r.db.links = append(r.db.links, &copied)
	return nil
}

func (r memCareTeam) Exists(_ context.Context, doctorID, patientID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, l := range r.db.links {
		if l.DoctorID == doctorID && l.PatientID == patientID {
			return true, nil
		}
	}
	return false, nil
}

func (r memCareTeam) ListByDoctor(_ context.Context, doctorID string, limit, offset int) ([]*domain.DoctorPatient, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var mine []*domain.DoctorPatient
	for _, l := range r.db.links {
		if l.DoctorID == doctorID {
			copied := *l
			mine = append(mine, &copied)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].AssignedAt.After(mine[j].AssignedAt) })
	out := []*domain.DoctorPatient{}
	for i := offset; i < len(mine) && i < offset+limit; i++ {
		out = append(out, mine[i])
	}
	return out, len(mine), nil
}

type stubExtractor struct {
	result domain.ExtractionResult
	calls  []string
}

func (e *stubExtractor) Extract(_ context.Context, noteText string) domain.ExtractionResult {
	e.calls = append(e.calls, noteText)
	return e.result
}

type recordingNotifier struct {
	mu     sync.Mutex
	online map[string]bool
	sent   []*domain.DueReminder
}

func (n *recordingNotifier) NotifyReminderDue(r *domain.DueReminder) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, r)
	if n.online[r.PatientID] {
		return 1
	}
	return 0
}

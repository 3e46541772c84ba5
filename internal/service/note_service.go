package service

import (
	"context"
	"strings"
	"time"

	"carenote-server/internal/careplan"
	"carenote-server/internal/domain"
	"carenote-server/internal/extraction"
	"carenote-server/internal/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// UserDirectory resolves users from the identity store.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// submission carries the values each stage of SubmitNote produces.
type submission struct {
	req        *domain.SubmitNoteRequest
	extraction domain.ExtractionResult
	note       *domain.Note
	steps      []*domain.ActionableStep
	reminders  []*domain.Reminder
}

type stage struct {
	name string
	run  func(ctx context.Context, sub *submission) error
}

// NoteService is the note-to-reminder pipeline.
type NoteService struct {
	users     UserDirectory
	extractor extraction.Extractor
	store     *NoteStore
	steps     repository.StepRepository
	scheduler *ReminderScheduler
	tx        repository.Transactor
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

func NewNoteService(
	users UserDirectory,
	extractor extraction.Extractor,
	store *NoteStore,
	steps repository.StepRepository,
	scheduler *ReminderScheduler,
	tx repository.Transactor,
	logger *zap.Logger,
) *NoteService {
	return &NoteService{
		users:     users,
		extractor: extractor,
		store:     store,
		steps:     steps,
		scheduler: scheduler,
		tx:        tx,
		validate:  validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

func (s *NoteService) stages() []stage {
	return []stage{
		{name: "validate", run: s.validateSubmission},
		{name: "resolve_participants", run: s.resolveParticipants},
		{name: "extract", run: s.extract},
		{name: "persist", run: s.persist},
	}
}

// SubmitNote runs the pipeline stages in order and stops at the first error.
// Extraction failures never stop it; they yield an empty plan.
func (s *NoteService) SubmitNote(ctx context.Context, req *domain.SubmitNoteRequest) (*domain.SubmitNoteResponse, error) {
	if req == nil {
		return nil, validationError("request body is required")
	}
	// Stages normalize the request in place; keep the caller's copy intact.
	own := *req
	sub := &submission{req: &own}

	for _, st := range s.stages() {
		if err := st.run(ctx, sub); err != nil {
			s.logger.Info("note submission stopped",
				zap.String("stage", st.name),
				zap.String("doctor_id", req.DoctorID),
				zap.String("patient_id", req.PatientID),
				zap.Error(err),
			)
			return nil, err
		}
	}

	s.logger.Info("note submitted",
		zap.Int64("note_id", sub.note.ID),
		zap.Int("steps", len(sub.steps)),
		zap.Int("reminders", len(sub.reminders)),
	)

	return &domain.SubmitNoteResponse{
		Checklist:          sub.extraction.Checklist,
		Plan:               sub.extraction.Plan,
		RemindersScheduled: len(sub.reminders),
	}, nil
}

func (s *NoteService) validateSubmission(_ context.Context, sub *submission) error {
	req := sub.req
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.PatientID = strings.TrimSpace(req.PatientID)

	if err := s.validate.Struct(req); err != nil {
		return validationError(err.Error())
	}
	if strings.TrimSpace(req.Note) == "" {
		return validationError("note must not be blank")
	}
	return nil
}

func (s *NoteService) resolveParticipants(ctx context.Context, sub *submission) error {
	if err := requireRole(ctx, s.users, sub.req.DoctorID, domain.RoleDoctor); err != nil {
		return err
	}
	return requireRole(ctx, s.users, sub.req.PatientID, domain.RolePatient)
}

// requireRole fails with ErrNotFound unless userID exists with the given role.
func requireRole(ctx context.Context, users UserDirectory, userID string, role domain.Role) error {
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		return storageError(string(role), err)
	}
	if user.Role != role {
		return notFound(string(role))
	}
	return nil
}

func (s *NoteService) extract(ctx context.Context, sub *submission) error {
	sub.extraction = s.extractor.Extract(ctx, sub.req.Note)
	return nil
}

// persist writes the note, its steps and their reminders in one transaction.
func (s *NoteService) persist(ctx context.Context, sub *submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		note, err := s.store.CreateNote(ctx, sub.req.DoctorID, sub.req.PatientID, sub.req.Note)
		if err != nil {
			return err
		}
		sub.note = note

		steps := careplan.DeriveSteps(note, sub.extraction)
		if err := s.steps.CreateBatch(ctx, steps); err != nil {
			return storageError("actionable steps", err)
		}
		sub.steps = steps

		reminders, err := s.scheduler.Schedule(ctx, steps, s.now())
		if err != nil {
			return err
		}
		sub.reminders = reminders
		return nil
	})
}

// GetNote returns the decrypted note to its doctor or patient.
func (s *NoteService) GetNote(ctx context.Context, principal domain.Principal, id int64) (*domain.NoteResponse, error) {
	if id <= 0 {
		return nil, validationError("invalid note id")
	}

	note, err := s.store.FindNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if principal.ID != note.DoctorID && principal.ID != note.PatientID {
		return nil, forbidden("note belongs to another care relationship")
	}

	text, err := s.store.Reveal(note)
	if err != nil {
		return nil, err
	}

	steps, err := s.steps.ListByNote(ctx, note.ID)
	if err != nil {
		return nil, storageError("actionable steps", err)
	}

	return &domain.NoteResponse{
		ID:        note.ID,
		DoctorID:  note.DoctorID,
		PatientID: note.PatientID,
		Note:      text,
		Steps:     steps,
		CreatedAt: note.CreatedAt,
	}, nil
}

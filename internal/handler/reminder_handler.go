package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"carenote-server/internal/domain"
	"carenote-server/internal/middleware"
	"carenote-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type ReminderLister interface {
	List(ctx context.Context, patientID string, page, limit int) (*domain.ReminderPage, error)
}

type ReminderCompleter interface {
	Complete(ctx context.Context, reminderID int64, claimedPatientID string) (*domain.CompletionResult, error)
}

type ReminderHandler struct {
	reminders  ReminderLister
	completion ReminderCompleter
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewReminderHandler(reminders ReminderLister, completion ReminderCompleter, logger *zap.Logger) *ReminderHandler {
	return &ReminderHandler{
		reminders:  reminders,
		completion: completion,
		validate:   validator.New(),
		logger:     logger,
	}
}

// List returns the caller's reminders. patient_id defaults to the caller and
// must name them when given.
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
	if patientID == "" {
		patientID = principal.ID
	}
	if patientID != principal.ID {
		response.Forbidden(w, "patients may only list their own reminders")
		return
	}

	page, limit, ok := pageParams(r)
	if !ok {
		response.BadRequest(w, "page and limit must be integers")
		return
	}

	result, err := h.reminders.List(r.Context(), patientID, page, limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, result)
}

func (h *ReminderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req domain.CompleteReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}
	if req.PatientID == "" {
		req.PatientID = principal.ID
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if strings.TrimSpace(req.PatientID) != principal.ID {
		response.Forbidden(w, "patient_id does not match the authenticated patient")
		return
	}

	result, err := h.completion.Complete(r.Context(), req.ReminderID, req.PatientID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, result)
}

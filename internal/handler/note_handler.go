package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"carenote-server/internal/domain"
	"carenote-server/internal/middleware"
	"carenote-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type NotePipeline interface {
	SubmitNote(ctx context.Context, req *domain.SubmitNoteRequest) (*domain.SubmitNoteResponse, error)
	GetNote(ctx context.Context, principal domain.Principal, id int64) (*domain.NoteResponse, error)
}

type NoteHandler struct {
	service  NotePipeline
	validate *validator.Validate
	logger   *zap.Logger
}

func NewNoteHandler(service NotePipeline, logger *zap.Logger) *NoteHandler {
	return &NoteHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// Submit runs the note pipeline. Doctors may only submit notes under their
// own id.
func (h *NoteHandler) Submit(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req domain.SubmitNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if strings.TrimSpace(req.DoctorID) != principal.ID {
		response.Forbidden(w, "doctor_id does not match the authenticated doctor")
		return
	}

	result, err := h.service.SubmitNote(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Created(w, "Note processed", result)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "Invalid note id")
		return
	}

	note, err := h.service.GetNote(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, note)
}

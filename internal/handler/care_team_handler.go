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

type CareTeam interface {
	Assign(ctx context.Context, req *domain.AssignDoctorRequest) (*domain.DoctorPatient, error)
	ListPatients(ctx context.Context, doctorID string, page, limit int) (*domain.PatientPage, error)
}

type CareTeamHandler struct {
	careTeam CareTeam
	validate *validator.Validate
	logger   *zap.Logger
}

func NewCareTeamHandler(careTeam CareTeam, logger *zap.Logger) *CareTeamHandler {
	return &CareTeamHandler{
		careTeam: careTeam,
		validate: validator.New(),
		logger:   logger,
	}
}

// Assign links a doctor and a patient. Either party may make the link.
func (h *CareTeamHandler) Assign(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req domain.AssignDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if principal.ID != strings.TrimSpace(req.DoctorID) && principal.ID != strings.TrimSpace(req.PatientID) {
		response.Forbidden(w, "only the doctor or the patient may create this link")
		return
	}

	link, err := h.careTeam.Assign(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Created(w, "Patient assigned", link)
}

func (h *CareTeamHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetUserID(r)
	if doctorID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	page, limit, ok := pageParams(r)
	if !ok {
		response.BadRequest(w, "page and limit must be integers")
		return
	}

	result, err := h.careTeam.ListPatients(r.Context(), doctorID, page, limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, result)
}

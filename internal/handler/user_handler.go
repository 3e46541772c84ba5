package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"carenote-server/internal/domain"
	"carenote-server/internal/middleware"
	"carenote-server/pkg/response"

	"go.uber.org/zap"
)

type UserAccounts interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateName(ctx context.Context, userID, name string) (*domain.User, error)
}

type UserHandler struct {
	userService UserAccounts
	logger      *zap.Logger
}

func NewUserHandler(userService UserAccounts, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req struct {
		Name string `json:"name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if req.Name == "" {
		response.BadRequest(w, "Name is required")
		return
	}

	user, err := h.userService.UpdateName(r.Context(), userID, req.Name)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, user)
}

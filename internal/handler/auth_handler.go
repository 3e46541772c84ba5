package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"carenote-server/internal/domain"
	"carenote-server/internal/middleware"
	"carenote-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type Authenticator interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	RefreshToken(ctx context.Context, req *domain.RefreshTokenRequest) (*domain.TokenResponse, error)
	UpdatePassword(ctx context.Context, userID string, req *domain.UpdatePasswordRequest) error
}

type AuthHandler struct {
	authService Authenticator
	validator   *validator.Validate
	logger      *zap.Logger
}

func NewAuthHandler(authService Authenticator, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator.New(),
		logger:      logger,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	user, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Created(w, "User registered successfully. Please login.", user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	loginResp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, loginResp)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	tokenResp, err := h.authService.RefreshToken(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, tokenResp)
}

// Logout is stateless; clients discard their tokens.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{
		"message": "Logged out successfully",
	})
}

func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req domain.UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.authService.UpdatePassword(r.Context(), userID, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	response.Success(w, map[string]string{
		"message": "Password updated successfully",
	})
}

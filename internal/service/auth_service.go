package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carenote-server/internal/domain"
	"carenote-server/internal/repository"
	"carenote-server/pkg/hash"
	"carenote-server/pkg/jwt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthService struct {
	userRepo          repository.UserRepository
	jwtSecret         string
	jwtExpiration     time.Duration
	refreshExpiration time.Duration
	logger            *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, jwtExp, refreshExp time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:          userRepo,
		jwtSecret:         jwtSecret,
		jwtExpiration:     jwtExp,
		refreshExpiration: refreshExp,
		logger:            logger,
	}
}

func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	if !req.Role.Valid() {
		return nil, validationError("role must be doctor or patient")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	emailExists, err := s.userRepo.EmailExists(ctx, email)
	if err != nil {
		return nil, storageError("user", err)
	}
	if emailExists {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	}

	hashedPassword, err := hash.Hash(req.Password)
	if err != nil {
		return nil, validationError(err.Error())
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Password:  hashedPassword,
		Role:      req.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: user already exists", ErrConflict)
		}
		return nil, storageError("user", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))

	user.Password = ""
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, storageError("user", err)
	}

	if !hash.Matches(user.Password, req.Password) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	accessToken, err := jwt.GenerateToken(user.ID, string(user.Role), s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := jwt.GenerateRefreshToken(user.ID, string(user.Role), s.refreshExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	user.Password = ""

	return &domain.LoginResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtExpiration.Seconds()),
	}, nil
}

func (s *AuthService) RefreshToken(ctx context.Context, req *domain.RefreshTokenRequest) (*domain.TokenResponse, error) {
	claims, err := jwt.ValidateToken(req.RefreshToken, s.jwtSecret)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
		}
		return nil, storageError("user", err)
	}

	accessToken, err := jwt.GenerateToken(user.ID, string(user.Role), s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &domain.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.jwtExpiration.Seconds()),
	}, nil
}

// ValidateToken accepts access tokens only.
func (s *AuthService) ValidateToken(token string) (*domain.Principal, error) {
	claims, err := jwt.ValidateToken(token, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.TokenType != jwt.TokenTypeAccess {
		return nil, fmt.Errorf("%w: not an access token", ErrUnauthorized)
	}

	role := domain.Role(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role", ErrUnauthorized)
	}

	return &domain.Principal{ID: claims.UserID, Role: role}, nil
}

func (s *AuthService) UpdatePassword(ctx context.Context, userID string, req *domain.UpdatePasswordRequest) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return storageError("user", err)
	}

	if !hash.Matches(user.Password, req.OldPassword) {
		return fmt.Errorf("%w: old password is incorrect", ErrUnauthorized)
	}
	if req.OldPassword == req.NewPassword {
		return validationError("new password must differ from the old one")
	}

	hashedPassword, err := hash.Hash(req.NewPassword)
	if err != nil {
		return validationError(err.Error())
	}

	user.Password = hashedPassword
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return storageError("user", err)
	}

	s.logger.Info("password updated", zap.String("user_id", userID))
	return nil
}

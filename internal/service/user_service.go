package service

import (
	"context"
	"strings"
	"time"

	"carenote-server/internal/domain"
	"carenote-server/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError("user", err)
	}

	user.Password = ""
	return user, nil
}

func (s *UserService) UpdateName(ctx context.Context, userID, name string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 100 {
		return nil, validationError("name must be between 2 and 100 characters")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, storageError("user", err)
	}

	user.Name = name
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, storageError("user", err)
	}

	user.Password = ""
	return user, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"carenote-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// UserRepository is the identity store. Users live in CouchDB, apart from
// the relational pipeline records.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	EmailExists(ctx context.Context, email string) (bool, error)
}

type userRepository struct {
	client *kivik.Client
	dbName string
}

func NewUserRepository(client *kivik.Client, dbName string) UserRepository {
	return &userRepository{
		client: client,
		dbName: dbName,
	}
}

func userDocID(id string) string {
	return "user:" + id
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	db := r.client.DB(r.dbName)

	if _, err := db.Put(ctx, userDocID(user.ID), user); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"email": email,
		},
		"limit": 1,
	}

	rows := db.Find(ctx, query)
	defer rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query user by email: %w", err)
		}
		return nil, ErrNotFound
	}

	var user domain.User
	if err := rows.ScanDoc(&user); err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	db := r.client.DB(r.dbName)

	var user domain.User
	if err := db.Get(ctx, userDocID(id)).ScanDoc(&user); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return &user, nil
}

// Update rewrites the mutable fields on top of the stored revision.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	db := r.client.DB(r.dbName)
	docID := userDocID(user.ID)

	var existing map[string]interface{}
	if err := db.Get(ctx, docID).ScanDoc(&existing); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	existing["name"] = user.Name
	existing["email"] = user.Email
	existing["password"] = user.Password
	existing["role"] = user.Role
	existing["updated_at"] = user.UpdatedAt

	if _, err := db.Put(ctx, docID, existing); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

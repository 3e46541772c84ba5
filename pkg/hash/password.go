package hash

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 12
	MinLength  = 8
	// bcrypt ignores input past 72 bytes
	MaxLength = 72
)

func Hash(password string) (string, error) {
	if len(password) < MinLength {
		return "", fmt.Errorf("password must be at least %d characters", MinLength)
	}
	if len(password) > MaxLength {
		return "", fmt.Errorf("password must be at most %d bytes", MaxLength)
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hashedBytes), nil
}

func Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// Matches reports whether password hashes to hashedPassword.
func Matches(hashedPassword, password string) bool {
	return Compare(hashedPassword, password) == nil
}

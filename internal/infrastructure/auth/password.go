package auth

import (
	"errors"
	"fmt"

	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", pkgerrors.ErrInvalidInput, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return pkgerrors.ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.ErrInvalidCredentials, err)
	}
	return nil
}

package errors

import (
	"errors"
)

var (
	ErrInvalidInput             = errors.New("invalid input")
	ErrInvalidRole              = errors.New("invalid role")
	ErrMissingCredential        = errors.New("missing credential")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrForbidden                = errors.New("forbidden")
	ErrInvalidToken             = errors.New("invalid token")
	ErrTokenExpired             = errors.New("token expired")
	ErrInvalidSignature         = errors.New("invalid callback signature")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrUserNotFound             = errors.New("user not found")
	ErrUserAlreadyExists        = errors.New("user already exists")
	ErrNilUser                  = errors.New("user is nil")
	ErrNilTransaction           = errors.New("transaction is nil")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionExists        = errors.New("transaction already exists")
	ErrInvalidTransactionStatus = errors.New("invalid transaction status")
	ErrUnknownOrder             = errors.New("unknown order")
	ErrInvalidTransition        = errors.New("invalid status transition")
	ErrGatewayUnavailable       = errors.New("payment gateway unavailable")
	ErrPersistenceFailure       = errors.New("persistence failure")
	ErrNotificationFailure      = errors.New("notification failure")
)

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/auth"
	"github.com/honeynil/PaymentServiceTochka/internal/models"
	"github.com/honeynil/PaymentServiceTochka/internal/repository"
	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	CreatePrincipal(ctx context.Context, req CreatePrincipalRequest) (*models.Principal, error)
	ListPrincipals(ctx context.Context) ([]models.Principal, error)
	UpdateRole(ctx context.Context, email, role string) (*models.Principal, error)
}

type TokenIssuer interface {
	Issue(principalID, email string, role models.Role) (string, error)
}

type LoginResult struct {
	Token string      `json:"token"`
	Role  models.Role `json:"role"`
	Name  string      `json:"name"`
}

type CreatePrincipalRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type authService struct {
	repo   repository.PrincipalRepository
	tokens TokenIssuer
}

func NewAuthService(repo repository.PrincipalRepository, tokens TokenIssuer) *authService {
	return &authService{repo: repo, tokens: tokens}
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := otel.Tracer("auth-service").Start(ctx, "Login")
	defer span.End()

	// An empty password is a wrong credential, checked against the hash below.
	email = models.NormalizeEmail(email)
	if email == "" {
		span.SetStatus(codes.Error, "empty email")
		return nil, pkgerrors.ErrInvalidInput
	}

	p, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, pkgerrors.ErrUserNotFound) {
		span.SetStatus(codes.Error, "user not found")
		slog.Warn("login for unknown principal", "email", email)
		return nil, err
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, fmt.Errorf("failed to look up principal: %w", err)
	}

	if err := auth.CheckPassword(p.PasswordHash, password); err != nil {
		span.SetStatus(codes.Error, "invalid credentials")
		slog.Warn("login with wrong password", "email", email)
		return nil, err
	}

	token, err := s.tokens.Issue(p.ID, p.Email, p.Role)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token issue failed")
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("principal logged in", "principal_id", p.ID, "role", p.Role)
	return &LoginResult{Token: token, Role: p.Role, Name: p.Name}, nil
}

func (s *authService) CreatePrincipal(ctx context.Context, req CreatePrincipalRequest) (*models.Principal, error) {
	ctx, span := otel.Tracer("auth-service").Start(ctx, "CreatePrincipal")
	defer span.End()

	role, ok := models.ParseRole(req.Role)
	if !ok {
		span.SetStatus(codes.Error, "invalid role")
		return nil, fmt.Errorf("%w: %q", pkgerrors.ErrInvalidRole, req.Role)
	}
	name := strings.TrimSpace(req.Name)
	email := models.NormalizeEmail(req.Email)
	if name == "" || email == "" {
		span.SetStatus(codes.Error, "invalid input")
		return nil, fmt.Errorf("%w: name and email are required", pkgerrors.ErrInvalidInput)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		span.SetStatus(codes.Error, "password rejected")
		return nil, err
	}

	p := &models.Principal{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}

	slog.Info("principal created", "principal_id", p.ID, "role", p.Role)
	return p, nil
}

func (s *authService) ListPrincipals(ctx context.Context) ([]models.Principal, error) {
	ctx, span := otel.Tracer("auth-service").Start(ctx, "ListPrincipals")
	defer span.End()

	principals, err := s.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, err
	}
	return principals, nil
}

func (s *authService) UpdateRole(ctx context.Context, email, role string) (*models.Principal, error) {
	ctx, span := otel.Tracer("auth-service").Start(ctx, "UpdateRole")
	defer span.End()

	r, ok := models.ParseRole(role)
	if !ok {
		span.SetStatus(codes.Error, "invalid role")
		return nil, fmt.Errorf("%w: %q", pkgerrors.ErrInvalidRole, role)
	}

	p, err := s.repo.UpdateRole(ctx, models.NormalizeEmail(email), r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, err
	}

	slog.Info("principal role changed", "principal_id", p.ID, "role", p.Role)
	return p, nil
}

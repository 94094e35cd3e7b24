package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/PaymentServiceTochka/internal/models"
	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
)

const (
	principalTracer  = "principal-repository"
	principalColumns = `id, name, email, password_hash, role, created_at`
)

type PostgresPrincipalRepository struct {
	db *sql.DB
}

func NewPostgresPrincipalRepository(db *sql.DB) *PostgresPrincipalRepository {
	return &PostgresPrincipalRepository{db: db}
}

func scanPrincipal(row rowScanner) (*models.Principal, error) {
	var p models.Principal
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.Role, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresPrincipalRepository) Create(ctx context.Context, p *models.Principal) (err error) {
	ctx, _, done := startCall(ctx, principalTracer, "CreatePrincipal")
	defer done(&err)

	if p == nil {
		err = pkgerrors.ErrNilUser
		return err
	}
	switch {
	case p.ID == "":
		err = fmt.Errorf("%w: id is required", pkgerrors.ErrInvalidInput)
	case p.Email == "":
		err = fmt.Errorf("%w: email is required", pkgerrors.ErrInvalidInput)
	case p.PasswordHash == "":
		err = fmt.Errorf("%w: password_hash is required", pkgerrors.ErrInvalidInput)
	case !p.Role.Valid():
		err = fmt.Errorf("%w: %q", pkgerrors.ErrInvalidRole, p.Role)
	}
	if err != nil {
		slog.Error("invalid principal", "method", "Create", "email", p.Email, "error", err)
		return err
	}

	query := `INSERT INTO principals (id, name, email, password_hash, role) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`
	err = r.db.QueryRowContext(ctx, query, p.ID, p.Name, p.Email, p.PasswordHash, p.Role).Scan(&p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			slog.Warn("principal already exists", "method", "Create", "email", p.Email)
			return pkgerrors.ErrUserAlreadyExists
		}
		slog.Error("failed to create principal", "method", "Create", "email", p.Email, "error", err)
		return fmt.Errorf("failed to create principal: %w", err)
	}

	slog.Info("principal created", "method", "Create", "id", p.ID, "email", p.Email, "role", p.Role)
	return nil
}

func (r *PostgresPrincipalRepository) GetByEmail(ctx context.Context, email string) (p *models.Principal, err error) {
	ctx, _, done := startCall(ctx, principalTracer, "GetPrincipalByEmail")
	defer done(&err)

	if email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", pkgerrors.ErrInvalidInput)
	}

	query := `SELECT ` + principalColumns + ` FROM principals WHERE email = $1`
	p, err = scanPrincipal(r.db.QueryRowContext(ctx, query, email))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get principal by email: %w", err)
	}
	return p, nil
}

func (r *PostgresPrincipalRepository) List(ctx context.Context) (principals []models.Principal, err error) {
	ctx, _, done := startCall(ctx, principalTracer, "ListPrincipals")
	defer done(&err)

	rows, err := r.db.QueryContext(ctx, `SELECT `+principalColumns+` FROM principals ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list principals: %w", err)
	}
	defer rows.Close()

	principals = []models.Principal{}
	for rows.Next() {
		p, scanErr := scanPrincipal(rows)
		if scanErr != nil {
			err = fmt.Errorf("failed to scan principal: %w", scanErr)
			return nil, err
		}
		principals = append(principals, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate principals: %w", err)
	}
	return principals, nil
}

func (r *PostgresPrincipalRepository) UpdateRole(ctx context.Context, email string, role models.Role) (p *models.Principal, err error) {
	ctx, _, done := startCall(ctx, principalTracer, "UpdatePrincipalRole")
	defer done(&err)

	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", pkgerrors.ErrInvalidRole, role)
	}

	query := `UPDATE principals SET role = $2 WHERE email = $1 RETURNING ` + principalColumns
	p, err = scanPrincipal(r.db.QueryRowContext(ctx, query, email, role))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		slog.Error("failed to update role", "method", "UpdateRole", "email", email, "error", err)
		return nil, fmt.Errorf("failed to update principal role: %w", err)
	}

	slog.Info("principal role updated", "method", "UpdateRole", "email", email, "role", role)
	return p, nil
}

package repository

import (
	"context"

	"github.com/honeynil/PaymentServiceTochka/internal/models"
)

//go:generate mockgen -destination=mocks/mock_principal_repository.go -package=mocks . PrincipalRepository

type PrincipalRepository interface {
	Create(ctx context.Context, p *models.Principal) error
	GetByEmail(ctx context.Context, email string) (*models.Principal, error)
	List(ctx context.Context) ([]models.Principal, error)
	UpdateRole(ctx context.Context, email string, role models.Role) (*models.Principal, error)
}

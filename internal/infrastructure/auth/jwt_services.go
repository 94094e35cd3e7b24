package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/honeynil/PaymentServiceTochka/internal/models"
	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
)

const DefaultTokenTTL = 7 * 24 * time.Hour

// TokenAuthority issues and verifies HS256 session tokens. It holds no
// mutable state and is safe for concurrent use.
type TokenAuthority struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenAuthority(secret string, ttl time.Duration) (*TokenAuthority, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret not set")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenAuthority{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (a *TokenAuthority) Issue(principalID, email string, role models.Role) (string, error) {
	if principalID == "" || !role.Valid() {
		return "", fmt.Errorf("%w: cannot issue token for %q with role %q", pkgerrors.ErrInvalidInput, principalID, role)
	}
	now := a.now()
	claims := models.TokenClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify trusts the signature alone; no store lookup is made.
func (a *TokenAuthority) Verify(tokenStr string) (*models.Identity, error) {
	var claims models.TokenClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, pkgerrors.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidToken, err)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: missing subject or role", pkgerrors.ErrInvalidToken)
	}

	return &models.Identity{
		PrincipalID: claims.Subject,
		Email:       claims.Email,
		Role:        claims.Role,
	}, nil
}

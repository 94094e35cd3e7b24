package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/observability"
	"github.com/honeynil/PaymentServiceTochka/internal/models"
	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
)

type TokenVerifier interface {
	Verify(token string) (*models.Identity, error)
}

type identityKey struct{}

// AccessGuard admits a request when its bearer token verifies and the
// carried role satisfies the route's requirement.
type AccessGuard struct {
	tokens TokenVerifier
}

func NewAccessGuard(tokens TokenVerifier) *AccessGuard {
	return &AccessGuard{tokens: tokens}
}

func (g *AccessGuard) Authorize(r *http.Request, required models.Role) (*models.Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, pkgerrors.ErrMissingCredential
	}

	scheme, tokenStr, ok := strings.Cut(authHeader, " ")
	tokenStr = strings.TrimSpace(tokenStr)
	if !ok || !strings.EqualFold(scheme, "Bearer") || tokenStr == "" {
		return nil, fmt.Errorf("%w: invalid authorization header", pkgerrors.ErrUnauthorized)
	}

	identity, err := g.tokens.Verify(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrUnauthorized, err)
	}

	if !identity.Role.Satisfies(required) {
		return nil, fmt.Errorf("%w: role %q does not satisfy %q", pkgerrors.ErrForbidden, identity.Role, required)
	}
	return identity, nil
}

func (g *AccessGuard) Require(required models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := g.Authorize(r, required)
			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, pkgerrors.ErrForbidden) {
					status = http.StatusForbidden
				}
				observability.WithContext(r.Context()).Warn("access denied", "path", r.URL.Path, "required_role", required, "status", status, "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				json.NewEncoder(w).Encode(map[string]string{"error": publicMessage(err)})
				return
			}

			ctx := ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func publicMessage(err error) string {
	switch {
	case errors.Is(err, pkgerrors.ErrMissingCredential):
		return "authorization header missing"
	case errors.Is(err, pkgerrors.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, pkgerrors.ErrForbidden):
		return "insufficient role"
	}
	return "invalid token"
}

func ContextWithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*models.Identity)
	return identity, ok
}

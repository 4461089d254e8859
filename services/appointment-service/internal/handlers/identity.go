package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/salonbook/salonbook/libs/auth"
	"github.com/salonbook/salonbook/libs/httpx"
	"github.com/salonbook/salonbook/services/appointment-service/internal/booking"
	"github.com/salonbook/salonbook/services/appointment-service/internal/model"
)

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

type ctxKey int

const ctxKeyCaller ctxKey = iota

type caller struct {
	identity model.Identity
	name     string
}

// RequireIdentity verifies the bearer token and attaches the caller's identity to the request.
func RequireIdentity(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid Authorization header"})
				return
			}
			claims, err := verifier.Verify(r.Context(), strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")))
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
				return
			}

			role := model.RoleUser
			if model.Role(claims.Role) == model.RoleAdmin {
				role = model.RoleAdmin
			}
			c := caller{
				identity: model.Identity{OwnerID: claims.Sub, Role: role},
				name:     strings.TrimSpace(claims.Name),
			}
			httpx.AddLogAttrs(r.Context(), "owner_id", c.identity.OwnerID, "role", string(role))
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyCaller, c)))
		})
	}
}

func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	c, ok := ctx.Value(ctxKeyCaller).(caller)
	return c.identity, ok
}

// CallerKey buckets rate limits by the authenticated owner, so clients behind one NAT do not
// share a budget. Requests without an identity fall back to the client address.
func CallerKey(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok && id.OwnerID != "" {
		return "owner:" + id.OwnerID
	}
	return "ip:" + httpx.ClientIP(r)
}

type tokenNames struct {
	next booking.Profiles
}

// WithTokenNames resolves display names from next and, when it has none, from the name claim
// of the caller's own token.
func WithTokenNames(next booking.Profiles) booking.Profiles {
	return tokenNames{next: next}
}

func (p tokenNames) DisplayName(ctx context.Context, ownerID string) (string, error) {
	if p.next != nil {
		name, err := p.next.DisplayName(ctx, ownerID)
		if err != nil || name != "" {
			return name, err
		}
	}
	if c, ok := ctx.Value(ctxKeyCaller).(caller); ok && c.identity.OwnerID == ownerID {
		return c.name, nil
	}
	return "", nil
}

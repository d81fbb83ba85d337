package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/jinhyuck8504/obdoc-sub000/internal/service"
)

type ctxKey string

const identityKey ctxKey = "identity"

// Identity is the authenticated caller extracted from the bearer token.
type Identity struct {
	UserID string
	Role   string
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IdentityFrom returns the authenticated identity, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// AuthMiddleware validates HS256 bearer tokens and stores the caller identity
// on the request context. Handlers behind it can assume IdentityFrom succeeds.
type AuthMiddleware struct {
	secret []byte
	logger *zap.Logger
}

func NewAuthMiddleware(secret string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret), logger: logger}
}

// Require wraps a handler with bearer token authentication.
func (m *AuthMiddleware) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, errorBody{
				Error:     "missing bearer token",
				ErrorCode: string(service.CodeNotAuthorized),
			})
			return
		}

		claims := &tokenClaims{}
		parsed, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return m.secret, nil
		})
		if err != nil || !parsed.Valid || claims.Subject == "" {
			m.logger.Warn("rejected bearer token",
				zap.String("ip_address", clientIP(r)),
				zap.Error(err),
			)
			writeJSON(w, http.StatusUnauthorized, errorBody{
				Error:     "invalid or expired token",
				ErrorCode: string(service.CodeNotAuthorized),
			})
			return
		}

		identity := Identity{UserID: claims.Subject, Role: claims.Role}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	}
}

// RequireRole additionally restricts the endpoint to the named roles.
func (m *AuthMiddleware) RequireRole(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return m.Require(func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFrom(r.Context())
		for _, role := range roles {
			if id.Role == role {
				next(w, r)
				return
			}
		}
		writeJSON(w, http.StatusForbidden, errorBody{
			Error:     "insufficient permissions",
			ErrorCode: string(service.CodeNotAuthorized),
		})
	})
}

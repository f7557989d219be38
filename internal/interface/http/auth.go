package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/recoverly/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CALLER IDENTITY
// Tokens are issued by the identity provider; this service only verifies
// them. The subject claim is the user ID.
// ══════════════════════════════════════════════════════════════════════════════

type userIDKey struct{}

const ctxUserID = "user_id"

// WithUserID stores the authenticated user in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFrom returns the authenticated user, or "" when there is none.
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

var errInvalidToken = errors.New("invalid token")

// TokenVerifier checks HS256 bearer tokens.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a verifier. An empty issuer is not checked.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify returns the token subject.
func (v *TokenVerifier) Verify(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", errInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

// Issue signs a token for userID. Used by tests and local tooling.
func (v *TokenVerifier) Issue(userID string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// RequireUser rejects requests without a valid bearer token and puts the
// user ID into both the gin and the request context.
func RequireUser(v *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeJSONError(c, http.StatusUnauthorized, shared.KindUnauthorized, "bearer token required")
			return
		}

		userID, err := v.Verify(strings.TrimSpace(token))
		if err != nil {
			writeJSONError(c, http.StatusUnauthorized, shared.KindUnauthorized, "invalid token")
			return
		}

		c.Set(ctxUserID, userID)
		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN KEYS
// ══════════════════════════════════════════════════════════════════════════════

// AdminKeyHeader carries the admin API key.
const AdminKeyHeader = "X-Admin-Key"

// AdminKeys holds bcrypt hashes of the accepted admin keys.
type AdminKeys struct {
	hashes [][]byte
}

// NewAdminKeys creates the key set. Empty hashes are skipped.
func NewAdminKeys(hashes []string) *AdminKeys {
	k := &AdminKeys{}
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			k.hashes = append(k.hashes, []byte(h))
		}
	}
	return k
}

// Valid reports whether key matches one of the hashes.
func (k *AdminKeys) Valid(key string) bool {
	if key == "" {
		return false
	}
	for _, h := range k.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			return true
		}
	}
	return false
}

// HashAdminKey produces a hash suitable for AUTH_ADMIN_KEY_HASHES.
func HashAdminKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// RequireAdmin rejects requests without a valid admin key.
func RequireAdmin(keys *AdminKeys) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !keys.Valid(c.GetHeader(AdminKeyHeader)) {
			writeJSONError(c, http.StatusUnauthorized, shared.KindUnauthorized, "admin key required")
			return
		}
		c.Next()
	}
}

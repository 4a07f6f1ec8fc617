// Package auth verifies HS256 bearer tokens issued by the identity provider
// and turns them into the access.User that services authorize against.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sundayezeilo/pinboard/internal/access"
	"github.com/sundayezeilo/pinboard/internal/errx"
	"github.com/sundayezeilo/pinboard/internal/httpx"
)

// MinSecretLength is the shortest accepted HMAC secret, in bytes.
const MinSecretLength = 32

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the token payload. Subject holds the user id.
type Claims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Config holds configuration for the Authenticator.
type Config struct {
	Secret   string
	Issuer   string        // optional; when set, tokens must carry it
	TokenTTL time.Duration // lifetime of tokens minted by Issue
}

// Authenticator verifies and mints bearer tokens.
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// New creates an Authenticator. The secret must be at least
// MinSecretLength bytes.
func New(cfg Config) (*Authenticator, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: secret must be at least %d bytes", MinSecretLength)
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for u.
func (a *Authenticator) Issue(u access.User) (string, error) {
	now := a.now()
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}

	claims := Claims{
		Email: u.Email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses raw and returns the user it was issued for. Failures are
// errx.Unauthorized.
func (a *Authenticator) Verify(raw string) (*access.User, error) {
	const op = "auth.Verify"

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
		jwt.WithLeeway(30 * time.Second),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, errx.E(op, errx.Unauthorized, fmt.Errorf("%w: %w", ErrInvalidToken, err))
	}
	if !tok.Valid {
		return nil, errx.E(op, errx.Unauthorized, ErrInvalidToken)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return nil, errx.E(op, errx.Unauthorized, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken))
	}

	user := &access.User{ID: id, Email: claims.Email}
	for _, r := range claims.Roles {
		switch role := access.Role(r); role {
		case access.RoleUser, access.RoleAdmin:
			user.Roles = append(user.Roles, role)
		}
	}
	return user, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Middleware requires a valid bearer token and stores the caller's
// access.Control in the request context.
func (a *Authenticator) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer`)
				httpx.WriteServiceError(w, r, logger,
					errx.E("auth.Middleware", errx.Unauthorized, ErrMissingToken))
				return
			}

			user, err := a.Verify(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				httpx.WriteServiceError(w, r, logger, err)
				return
			}

			ctx := access.WithControl(r.Context(), access.New(user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

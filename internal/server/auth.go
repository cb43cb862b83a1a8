package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/desertthunder/kbx/internal/shared"
)

type userKey struct{}

// WithUser stores the authenticated user id on ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFrom returns the authenticated user id, or "" when the request was not authenticated.
func UserFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// Authenticator mints and verifies HS256 bearer tokens whose subject is the user id.
//
// With no secret configured every request acts as the fallback user, which is how a
// single-user local server runs.
type Authenticator struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	fallback string
	now      func() time.Time
}

// NewAuthenticator creates an authenticator. A zero ttl mints tokens without expiry.
func NewAuthenticator(secret, issuer string, ttl time.Duration, fallbackUser string) *Authenticator {
	return &Authenticator{
		secret:   []byte(secret),
		issuer:   issuer,
		ttl:      ttl,
		fallback: fallbackUser,
		now:      time.Now,
	}
}

// AuthenticatorFromConfig builds an [Authenticator] from the server and user sections.
func AuthenticatorFromConfig(cfg *shared.Config) *Authenticator {
	return NewAuthenticator(cfg.Server.JWTSecret, cfg.Server.Issuer, cfg.Server.TokenTTL, cfg.User.ID)
}

// Enabled reports whether tokens are required.
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// Mint signs a token for userID.
func (a *Authenticator) Mint(userID string) (string, error) {
	if !a.Enabled() {
		return "", fmt.Errorf("%w: server.jwt_secret is not set", shared.ErrMissingConfig)
	}
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:  userID,
		Issuer:   a.issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if a.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(a.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns its subject.
func (a *Authenticator) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", shared.ErrNotAuthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", shared.ErrInvalidToken)
		}
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", shared.ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a valid bearer token and stores the user on the request context.
func (a *Authenticator) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Enabled() {
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), a.fallback)))
				return
			}

			userID, err := a.Verify(bearerToken(r))
			if err != nil {
				writeError(w, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return h[7:]
	}
	return ""
}

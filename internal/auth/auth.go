package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"mealrun/internal/commons"
	"mealrun/internal/domain"
)

const cookieName = "token"

type contextKey struct{}

// Claims is the token payload: sub is the identity, role one of the four roles.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the resolved caller handed to every order operation.
type Principal struct {
	Actor domain.Actor
	Email string
}

type Authenticator struct {
	secret []byte
	logger *zap.Logger
}

func NewAuthenticator(secret string, logger *zap.Logger) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &Authenticator{secret: []byte(secret), logger: logger}, nil
}

func (a *Authenticator) IssueToken(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:  string(p.Actor.Role),
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Parse(tokenString string) (Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, fmt.Errorf("parsing token: %w", err)
	}

	if claims.Subject == "" {
		return Principal{}, errors.New("token has no subject")
	}
	role, ok := domain.ParseRole(claims.Role)
	if !ok {
		return Principal{}, fmt.Errorf("token has unknown role %q", claims.Role)
	}
	return Principal{Actor: domain.Actor{ID: claims.Subject, Role: role}, Email: claims.Email}, nil
}

// Middleware resolves the caller from a bearer token or the "token" cookie
// and rejects the request with 401 when there is none.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			commons.WriteUnauthorized(w, commons.NewTraceID(), "missing bearer token", a.logger)
			return
		}

		principal, err := a.Parse(tokenString)
		if err != nil {
			traceID := commons.NewTraceID()
			a.logger.Warn("rejected token", zap.String("traceId", traceID), zap.Error(err))
			commons.WriteUnauthorized(w, traceID, "invalid token", a.logger)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	p, ok := PrincipalFromContext(ctx)
	return p.Actor, ok
}

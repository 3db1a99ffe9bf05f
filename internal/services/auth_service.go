package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tutor-match/config"
	tutor_errors "tutor-match/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthService verifies bearer tokens issued by the identity provider.
type AuthService struct {
	jwtSecret []byte
	accessTTL time.Duration
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{
		jwtSecret: []byte(cfg.JWTSecret),
		accessTTL: time.Duration(cfg.JWTExpiryMin) * time.Minute,
	}
}

type AccessClaims struct {
	UserID string `json:"sub"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, tutor_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, tutor_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, tutor_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, tutor_errors.ErrUnauthorized
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return AccessClaims{}, tutor_errors.ErrUnauthorized
	}

	return *claims, nil
}

// SignAccessToken mints a token for local development and tests.
// Production tokens come from the identity provider.
func (s *AuthService) SignAccessToken(userID uuid.UUID, role string) (string, int64, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)
	claims := AccessClaims{
		UserID: userID.String(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.accessTTL.Seconds()), nil
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, tutor_errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, tutor_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, tutor_errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, tutor_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tutor_errors.ErrAlreadyExists), errors.Is(err, tutor_errors.ErrConflict), errors.Is(err, tutor_errors.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, tutor_errors.ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	case errors.Is(err, tutor_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, tutor_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type ctxKey string

var userIDKey ctxKey = "user_id"

func WithUserContext(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return uuid.UUID{}, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

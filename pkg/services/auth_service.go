package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/athenalab/kgrag/pkg/models"
	"github.com/athenalab/kgrag/pkg/session"
)

const defaultTokenTTL = 7 * 24 * time.Hour

// AuthService handles registration, login and token verification.
type AuthService struct {
	store  *session.Store
	secret []byte
	ttl    time.Duration
}

// NewAuthService creates an auth service signing tokens with secret. A zero
// ttl falls back to seven days.
func NewAuthService(store *session.Store, secret string, ttl time.Duration) *AuthService {
	if ttl == 0 {
		ttl = defaultTokenTTL
	}
	return &AuthService{store: store, secret: []byte(secret), ttl: ttl}
}

// Register creates a new account.
func (s *AuthService) Register(httpCtx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 {
		return nil, NewValidationError("username", "must be at least 3 characters")
	}
	if len(password) < 6 {
		return nil, NewValidationError("password", "must be at least 6 characters")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	if _, err := s.store.UserByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("username '%s' is taken: %w", username, ErrAlreadyExists)
	} else if !errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// Login verifies the credentials and returns a signed bearer token together
// with the account. Bad username and bad password are indistinguishable to
// the caller.
func (s *AuthService) Login(httpCtx context.Context, username, password string) (string, *models.User, error) {
	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	user, err := s.store.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", nil, fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
		}
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Authenticate validates a bearer token and returns the account it belongs
// to. Expired, malformed and wrongly-signed tokens all map to ErrUnauthorized.
func (s *AuthService) Authenticate(httpCtx context.Context, token string) (*models.User, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token: %w", ErrUnauthorized)
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	user, err := s.store.UserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, fmt.Errorf("token subject no longer exists: %w", ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return user, nil
}

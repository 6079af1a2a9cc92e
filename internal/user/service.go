package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"budgetchef/internal/platform/postgres"
)

var (
	// ErrDuplicateUsername is returned when registering a taken username.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrInvalidCredentials is returned when no user matches the username
	// and password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidInput is returned for a blank or oversized username or password.
	ErrInvalidInput = errors.New("invalid registration input")
)

var validate = validator.New()

type registration struct {
	Username string `validate:"required,max=50"`
	Password string `validate:"required,max=72"`
}

// Service registers and authenticates users.
type Service struct {
	store  Store
	logger *zap.Logger
	cost   int
}

// NewService creates a new Service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger, cost: bcrypt.DefaultCost}
}

// Register creates a user. The username's uniqueness is enforced by the
// database; a violation is reported as ErrDuplicateUsername.
func (s *Service) Register(ctx context.Context, username, password, allergy string) (*User, error) {
	username = strings.TrimSpace(username)
	if err := validate.Struct(registration{Username: username, Password: password}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := s.store.Create(ctx, username, string(hash), strings.TrimSpace(allergy))
	if err != nil {
		if postgres.IsUniqueViolation(err, usernameConstraint) {
			return nil, ErrDuplicateUsername
		}
		s.logger.Error("user registration failed", zap.String("user_name", username), zap.Error(err))
		return nil, postgres.Unavailable(err)
	}

	s.logger.Info("user registered", zap.Int64("user_id", u.ID), zap.String("user_name", u.Username))
	return u, nil
}

// Login returns the user whose username and password match.
func (s *Service) Login(ctx context.Context, username, password string) (*User, error) {
	u, err := s.store.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		s.logger.Error("user lookup failed", zap.String("user_name", username), zap.Error(err))
		return nil, postgres.Unavailable(err)
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

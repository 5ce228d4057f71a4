package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for stored password hashes.
const BcryptCost = 10

// UserStore persists [models.User] accounts keyed by unique username.
type UserStore interface {
	// Create inserts u, returning [shared.ErrUserExists] on a duplicate username.
	Create(ctx context.Context, u *models.User) error

	// GetByUsername returns [shared.ErrUserNotFound] when nothing matches.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	UpdateLastLogin(ctx context.Context, username string, at time.Time) error

	// SetVIP returns [shared.ErrUserNotFound] when nothing matched.
	SetVIP(ctx context.Context, username string, vip bool) error

	Close(ctx context.Context) error
}

// Session is the result of a successful login.
type Session struct {
	User  *models.User
	Token string
}

// AuthService implements registration, login and the VIP flag on top of a [UserStore].
type AuthService struct {
	store  UserStore
	tokens *TokenService
	logger *log.Logger
	now    func() time.Time
}

// NewAuthService creates an auth service.
func NewAuthService(store UserStore, tokens *TokenService, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &AuthService{
		store:  store,
		tokens: tokens,
		logger: shared.WithLogger(logger, "service", "auth"),
		now:    models.Stamp,
	}
}

// Register validates credentials and stores a new non-VIP user.
func (s *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	if err := models.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := models.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewUser(username, string(hash))
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, shared.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", "username", username)
	return user, nil
}

// Login checks the password and issues a token.
//
// Unknown usernames and wrong passwords both yield [shared.ErrInvalidCredentials].
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password", shared.ErrMissingArgument)
	}

	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrUserNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("login rejected", "username", username)
		return nil, shared.ErrInvalidCredentials
	}

	now := s.now()
	if err := s.store.UpdateLastLogin(ctx, username, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLoginTime = &now

	token, err := s.tokens.Issue(user.Username, user.IsVIP)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "username", username, "vip", user.IsVIP)
	return &Session{User: user, Token: token}, nil
}

// SetVIP updates the VIP flag of username.
func (s *AuthService) SetVIP(ctx context.Context, username string, vip bool) error {
	if username == "" {
		return fmt.Errorf("%w: username", shared.ErrMissingArgument)
	}
	if err := s.store.SetVIP(ctx, username, vip); err != nil {
		if errors.Is(err, shared.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to update vip status: %w", err)
	}
	s.logger.Info("vip status updated", "username", username, "vip", vip)
	return nil
}

// Profile resolves a login token to its user.
func (s *AuthService) Profile(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, shared.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", shared.ErrNotAuthenticated)
		}
		return nil, err
	}
	return user, nil
}

// Close releases the underlying store.
func (s *AuthService) Close(ctx context.Context) error {
	return s.store.Close(ctx)
}

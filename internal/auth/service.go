package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned for unknown users, wrong passwords, and
// disabled accounts alike, so callers leak nothing about which it was.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service wires the user store and token service into login/logout flows.
type Service struct {
	store  *UserStore
	tokens *TokenService
	logger *zap.Logger
}

// NewService creates an auth Service.
func NewService(store *UserStore, tokens *TokenService, logger *zap.Logger) *Service {
	return &Service{store: store, tokens: tokens, logger: logger}
}

// Store exposes the underlying user store.
func (s *Service) Store() *UserStore { return s.store }

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}

// Login verifies credentials and issues a session-backed access token.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active || !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, sessionID, expiresAt, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateSession(ctx, sessionID, user.ID, expiresAt); err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.String("username", user.Username))
	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

// Logout revokes the session behind an access token. Unknown or already
// expired tokens are not an error.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.tokens.ValidateAccessToken(tokenString)
	if err != nil {
		return nil
	}
	revoked, err := s.store.RevokeSession(ctx, claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		s.logger.Info("user logged out", zap.String("username", claims.Username))
	}
	return nil
}

// Authenticate resolves an access token to its user, rejecting tokens whose
// session was revoked and users that were disabled since issuance.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*User, error) {
	claims, err := s.tokens.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	userID, ok, err := s.store.LookupSession(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !ok || userID != claims.UserID {
		return nil, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// CreateUser validates and creates a new account.
func (s *Service) CreateUser(ctx context.Context, username, password string, role Role) (*User, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("username %q is taken", username)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return s.store.CreateUser(ctx, username, hash, role)
}

// ChangePassword sets a new password and revokes the user's other sessions.
func (s *Service) ChangePassword(ctx context.Context, userID int64, password string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.store.UpdateUserPassword(ctx, userID, hash); err != nil {
		return err
	}
	return s.store.RevokeUserSessions(ctx, userID)
}

// Bootstrap creates the initial admin account when no users exist yet.
func (s *Service) Bootstrap(ctx context.Context, username, password string) error {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 || username == "" || password == "" {
		return nil
	}
	if _, err := s.CreateUser(ctx, username, password, RoleAdmin); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	s.logger.Info("bootstrap admin created", zap.String("username", username))
	return nil
}

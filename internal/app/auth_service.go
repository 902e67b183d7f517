// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"weightlog/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// AuthResult is returned by every operation that issues a token.
type AuthResult struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

// AuthService handles accounts and token-backed sessions.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	tokens   *TokenIssuer
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, tokens *TokenIssuer) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
	}
}

// Register creates an account and signs it in. The confirmation is checked
// before the store is touched.
func (s *AuthService) Register(ctx context.Context, username, password, confirmPassword string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n < 3 || n > 64 {
		return nil, ErrInvalidUsername
	}
	if password != confirmPassword {
		return nil, ErrPasswordMismatch
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Create(ctx, username, string(hash))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.startSession(ctx, user)
}

// Login authenticates a user and creates a session.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil || user == nil {
		return nil, ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		// SSO-provisioned accounts have no password.
		return nil, ErrInvalidCredentials
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, user)
}

// Authenticate validates an access token against its session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.GetByToken(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if time.Now().After(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, claims.ID)
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Refresh exchanges a valid token for a new one and revokes the old session.
func (s *AuthService) Refresh(ctx context.Context, token string) (*AuthResult, error) {
	user, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	res, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	if claims, err := s.tokens.Parse(token); err == nil {
		_ = s.sessions.Delete(ctx, claims.ID)
	}
	return res, nil
}

// Logout revokes the token's session. Unknown sessions are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	return s.sessions.Delete(ctx, claims.ID)
}

// ChangePassword replaces the password after verifying the old one.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
			return ErrInvalidCredentials
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, string(hash))
}

// CreateInitialUser creates the first user if no users exist.
func (s *AuthService) CreateInitialUser(ctx context.Context, username, password string) error {
	count, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrUsersExist
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.users.Create(ctx, username, string(hash))
	return err
}

// LoginWithUser creates a session for an already authenticated user (e.g. via SSO).
func (s *AuthService) LoginWithUser(ctx context.Context, username string) (*AuthResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Auto-provision with an empty hash; password login stays disabled.
		user, err = s.users.Create(ctx, username, "")
		if err != nil {
			// Lost a race on the unique username.
			user, err = s.users.GetByUsername(ctx, username)
			if err != nil || user == nil {
				return nil, fmt.Errorf("provision sso user: %w", err)
			}
		}
	}
	return s.startSession(ctx, user)
}

// PurgeExpiredSessions deletes sessions past their expiry.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) error {
	return s.sessions.DeleteExpired(ctx)
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User) (*AuthResult, error) {
	token, claims, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, user.ID, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &AuthResult{
		UserID:    strconv.FormatInt(user.ID, 10),
		Username:  user.Username,
		Token:     token,
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
	}, nil
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

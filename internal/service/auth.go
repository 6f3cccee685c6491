// Package service: authentication business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Password registration and login
//   - The Google callback: find, link or create the account, then issue a token
//   - Keep every auth rule in one place, away from HTTP concerns
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/auth"
	"github.com/sakif/projectshelf/internal/metrics"
	"github.com/sakif/projectshelf/internal/model"
	"github.com/sakif/projectshelf/internal/repository"
)

const (
	// PlaceholderEmailDomain builds the address stored for Google accounts
	// that do not share an email.
	PlaceholderEmailDomain = "users.noreply.projectshelf.dev"

	usernameSuffixRange  = 1000
	maxUsernameAttempts  = 5
	fallbackUsernameBase = "user"

	msgUserExists         = "User already exists"
	msgInvalidCredentials = "Invalid credentials"
)

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → generate/validate JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - metrics    *metrics.Metrics           → login/registration counters (may be nil)
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	metrics   *metrics.Metrics
	logger    *slog.Logger

	now  func() time.Time
	intn func(n int) int
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
		intn:      rand.IntN,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// RegisterInput is the body of a password registration.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a password account and signs the new user in.
//
// Validation happens before any write: a username is required, the email must
// be a plain address, and the password at least auth.MinPasswordLength
// characters. A taken username or email is reported as a validation error
// ("User already exists"), never as a conflict, and nothing is created.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	// The unique indexes still catch a concurrent registration at Create.
	if err := s.ensureFree(ctx, "email", email, s.users.GetByEmail); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, "username", username, s.users.GetByUsername); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		LastLogin:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed(conflictField(err), msgUserExists)
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.metrics.Registration()
	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issue(user)
}

// Login checks an email/password pair. Unknown emails, accounts without a
// password and wrong passwords all fail with the same Unauthorized error so
// the response never reveals which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: loading user by email: %w", err)
	}
	if !user.HasPassword() {
		return nil, apperror.Unauthorized(msgInvalidCredentials)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("stored password hash unusable",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.Unauthorized(msgInvalidCredentials)
	}

	if err := s.recordLogin(ctx, user); err != nil {
		return nil, err
	}
	s.metrics.Login("password")
	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return s.issue(user)
}

// FederatedLogin signs in a Google identity.
//
// RESOLUTION ORDER:
//  1. An account already linked to the Google id.
//  2. An account with the same email: link it by storing the Google id, and
//     adopt the Google picture if the account has none.
//  3. A new account with a generated username (display name without
//     whitespace plus a random number below 1000) and, when Google shares no
//     email, a placeholder address under PlaceholderEmailDomain.
//
// The login counter and timestamp are updated in every case.
func (s *AuthService) FederatedLogin(ctx context.Context, profile *auth.GoogleUser) (*AuthResult, error) {
	if profile == nil || profile.ID == "" {
		return nil, fmt.Errorf("service/auth: google profile must carry an id")
	}

	user, err := s.findOrLinkGoogleUser(ctx, profile)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if user, err = s.createGoogleUser(ctx, profile); err != nil {
			return nil, err
		}
	}

	if err := s.recordLogin(ctx, user); err != nil {
		return nil, err
	}
	s.metrics.Login("google")
	s.logger.Info("user authenticated via Google",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issue(user)
}

// findOrLinkGoogleUser returns (nil, nil) when no existing account matches.
func (s *AuthService) findOrLinkGoogleUser(ctx context.Context, profile *auth.GoogleUser) (*model.User, error) {
	user, err := s.users.GetByGoogleID(ctx, profile.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: loading user by google id: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		return nil, nil
	}
	user, err = s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading user by email: %w", err)
	}

	user.GoogleID = profile.ID
	if user.ProfilePicture == "" {
		user.ProfilePicture = profile.Picture
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: linking google account to %s: %w", user.ID, err)
	}
	s.logger.Info("linked google account", slog.String("userID", user.ID))
	return user, nil
}

func (s *AuthService) createGoogleUser(ctx context.Context, profile *auth.GoogleUser) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))

	var lastErr error
	for range maxUsernameAttempts {
		username := s.generateUsername(profile.Name)
		user := &model.User{
			Username:       username,
			Email:          email,
			GoogleID:       profile.ID,
			ProfilePicture: profile.Picture,
			LastLogin:      s.now(),
		}
		if user.Email == "" {
			user.Email = username + "@" + PlaceholderEmailDomain
		}

		err := s.users.Create(ctx, user)
		if err == nil {
			s.metrics.Registration()
			s.logger.Info("user registered via Google",
				slog.String("userID", user.ID),
				slog.String("username", user.Username),
			)
			return user, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("service/auth: creating google user: %w", err)
		}
		// Only a username clash (or the placeholder address derived from
		// it) is fixed by drawing a new suffix.
		if field := conflictField(err); field != "username" && (field != "email" || profile.Email != "") {
			return nil, fmt.Errorf("service/auth: creating google user: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("service/auth: no free username after %d attempts: %w", maxUsernameAttempts, lastErr)
}

// generateUsername strips all whitespace from the display name and appends a
// random number in [0, 1000).
func (s *AuthService) generateUsername(displayName string) string {
	base := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, displayName)
	if base == "" {
		base = fallbackUsernameBase
	}
	return base + strconv.Itoa(s.intn(usernameSuffixRange))
}

func (s *AuthService) ensureFree(
	ctx context.Context,
	field, value string,
	lookup func(context.Context, string) (*model.User, error),
) error {
	_, err := lookup(ctx, value)
	if err == nil {
		return apperror.ValidationFailed(field, msgUserExists)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("service/auth: checking existing %s: %w", field, err)
	}
	return nil
}

func (s *AuthService) recordLogin(ctx context.Context, user *model.User) error {
	now := s.now()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return fmt.Errorf("service/auth: recording login for %s: %w", user.ID, err)
	}
	user.LoginCount++
	user.LastLogin = now
	return nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := s.passwords.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", apperror.ValidationFailed("password", "password must be at most 72 bytes")
	}
	if err != nil {
		return "", fmt.Errorf("service/auth: hashing password: %w", err)
	}
	return hash, nil
}

// normalizeEmail trims and lowercases raw and checks it is a bare address
// ("a@b.c", not "Name <a@b.c>").
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", apperror.ValidationFailed("email", "Please enter a valid email")
	}
	return email, nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < auth.MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	}
	return nil
}

// conflictField returns the column a repository reported as duplicated.
func conflictField(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Field != "" {
		return appErr.Field
	}
	return ""
}

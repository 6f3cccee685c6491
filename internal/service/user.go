package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/auth"
	"github.com/sakif/projectshelf/internal/model"
	"github.com/sakif/projectshelf/internal/repository"
)

// ProfileUpdate is a partial profile edit. A nil field is left untouched.
type ProfileUpdate struct {
	Username       *string
	Email          *string
	Password       *string
	Bio            *string
	ProfilePicture *string
	SocialLinks    *model.SocialLinks
}

// ThemeUpdate changes the portfolio theme. An empty SelectedTheme and a nil
// ThemeCustomization both keep the current value. Colors are not validated.
type ThemeUpdate struct {
	SelectedTheme      string
	ThemeCustomization *model.ThemeCustomization
}

// Portfolio is the public page of a user: the profile plus every project.
type Portfolio struct {
	User     model.PublicProfile `json:"user"`
	Projects []model.Project     `json:"projects"`
}

// UserService manages profiles and the public portfolio lookup.
type UserService struct {
	users     repository.UserRepository
	projects  repository.ProjectRepository
	passwords *auth.PasswordService
	analytics *AnalyticsService
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	projects repository.ProjectRepository,
	passwords *auth.PasswordService,
	analytics *AnalyticsService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		projects:  projects,
		passwords: passwords,
		analytics: analytics,
		logger:    logger,
	}
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("User not found")
		}
		return nil, fmt.Errorf("service/user: loading %s: %w", userID, err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of upd. Username and email may not
// be blanked; a supplied password is length-checked and re-hashed. Taking a
// username or email that belongs to someone else is a validation error.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*model.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		if username == "" {
			return nil, apperror.ValidationFailed("username", "username cannot be empty")
		}
		user.Username = username
	}
	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return nil, err
		}
		user.Email = email
	}
	if upd.Password != nil {
		if err := validatePassword(*upd.Password); err != nil {
			return nil, err
		}
		hash, err := s.passwords.Hash(*upd.Password)
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", "password must be at most 72 bytes")
		}
		if err != nil {
			return nil, fmt.Errorf("service/user: hashing password: %w", err)
		}
		user.PasswordHash = hash
	}
	if upd.Bio != nil {
		user.Bio = *upd.Bio
	}
	if upd.ProfilePicture != nil {
		user.ProfilePicture = *upd.ProfilePicture
	}
	if upd.SocialLinks != nil {
		user.SocialLinks = *upd.SocialLinks
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			field := conflictField(err)
			return nil, apperror.ValidationFailed(field, field+" is already taken")
		}
		return nil, fmt.Errorf("service/user: updating %s: %w", userID, err)
	}

	s.logger.Info("profile updated", slog.String("userID", userID))
	return user, nil
}

func (s *UserService) UpdateTheme(ctx context.Context, userID string, upd ThemeUpdate) (*model.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if theme := strings.TrimSpace(upd.SelectedTheme); theme != "" {
		user.SelectedTheme = theme
	}
	if upd.ThemeCustomization != nil {
		user.ThemeCustomization = *upd.ThemeCustomization
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: updating theme of %s: %w", userID, err)
	}
	return user, nil
}

// GetPublicProfile looks a user up by username and strips private fields.
func (s *UserService) GetPublicProfile(ctx context.Context, username string) (*model.PublicProfile, error) {
	user, err := s.byUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	profile := user.Public()
	return &profile, nil
}

// GetPortfolio returns the public profile and projects of username and
// counts the load as a page view for that user, best-effort.
func (s *UserService) GetPortfolio(ctx context.Context, username string) (*Portfolio, error) {
	user, err := s.byUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	projects, err := s.projects.ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: listing projects of %s: %w", user.ID, err)
	}

	s.analytics.TryRecordPageView(ctx, user.ID)

	return &Portfolio{User: user.Public(), Projects: projects}, nil
}

func (s *UserService) byUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("User not found")
		}
		return nil, fmt.Errorf("service/user: loading %q: %w", username, err)
	}
	return user, nil
}

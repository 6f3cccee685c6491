package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/model"
	"github.com/sakif/projectshelf/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` fails the build if *Y stops satisfying X.
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB is the users table.
type UserDB struct {
	conn *sql.DB
}

const userColumns = `id, username, email, password_hash, google_id, profile_picture, bio,
	website, github, linkedin, twitter, selected_theme,
	primary_color, secondary_color, accent_color,
	last_login, login_count, created_at, updated_at`

// Create inserts a new user. ID, timestamps and the default theme are
// filled in on the passed struct.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.LastLogin.IsZero() {
		user.LastLogin = now
	}
	if user.SelectedTheme == "" {
		user.SelectedTheme = model.DefaultTheme
	}

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		nullString(user.PasswordHash),
		nullString(user.GoogleID),
		user.ProfilePicture,
		user.Bio,
		user.SocialLinks.Website,
		user.SocialLinks.GitHub,
		user.SocialLinks.LinkedIn,
		user.SocialLinks.Twitter,
		user.SelectedTheme,
		user.ThemeCustomization.PrimaryColor,
		user.ThemeCustomization.SecondaryColor,
		user.ThemeCustomization.AccentColor,
		user.LastLogin,
		user.LoginCount,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			return conflictError("user", column)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	return nil
}

func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := u.getOne(ctx, "id", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", id)
	}
	return user, err
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := u.getOne(ctx, "email", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFoundMessage("user not found")
	}
	return user, err
}

func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := u.getOne(ctx, "username", username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFoundMessage("user not found")
	}
	return user, err
}

func (u *UserDB) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	user, err := u.getOne(ctx, "google_id", googleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFoundMessage("user not found")
	}
	return user, err
}

// getOne looks a user up by a unique column. column is always a constant
// from this file, never caller input.
func (u *UserDB) getOne(ctx context.Context, column, value string) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		user         model.User
		passwordHash sql.NullString
		googleID     sql.NullString
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&passwordHash,
		&googleID,
		&user.ProfilePicture,
		&user.Bio,
		&user.SocialLinks.Website,
		&user.SocialLinks.GitHub,
		&user.SocialLinks.LinkedIn,
		&user.SocialLinks.Twitter,
		&user.SelectedTheme,
		&user.ThemeCustomization.PrimaryColor,
		&user.ThemeCustomization.SecondaryColor,
		&user.ThemeCustomization.AccentColor,
		&user.LastLogin,
		&user.LoginCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = passwordHash.String
	user.GoogleID = googleID.String
	return &user, nil
}

// Update writes the profile fields. login_count and last_login are left
// alone: they only move through RecordLogin.
func (u *UserDB) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()

	result, err := u.conn.ExecContext(ctx,
		`UPDATE users SET
			username = ?, email = ?, password_hash = ?, google_id = ?,
			profile_picture = ?, bio = ?,
			website = ?, github = ?, linkedin = ?, twitter = ?,
			selected_theme = ?, primary_color = ?, secondary_color = ?, accent_color = ?,
			updated_at = ?
		 WHERE id = ?`,
		user.Username,
		user.Email,
		nullString(user.PasswordHash),
		nullString(user.GoogleID),
		user.ProfilePicture,
		user.Bio,
		user.SocialLinks.Website,
		user.SocialLinks.GitHub,
		user.SocialLinks.LinkedIn,
		user.SocialLinks.Twitter,
		user.SelectedTheme,
		user.ThemeCustomization.PrimaryColor,
		user.ThemeCustomization.SecondaryColor,
		user.ThemeCustomization.AccentColor,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			return conflictError("user", column)
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}

	return nil
}

func (u *UserDB) RecordLogin(ctx context.Context, id string, at time.Time) error {
	result, err := u.conn.ExecContext(ctx,
		`UPDATE users SET login_count = login_count + 1, last_login = ? WHERE id = ?`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording login for %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

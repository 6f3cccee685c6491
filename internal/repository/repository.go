// Package repository declares the storage contracts the service layer
// depends on. Implementations live in sub-packages (sqlite, mongo).
//
// CONTRACT SHARED BY ALL IMPLEMENTATIONS:
//   - Lookups that miss return an error wrapping apperror.ErrNotFound.
//   - Unique-key violations (username, email, google id, slug) return an
//     error wrapping apperror.ErrConflict.
//   - Counter operations are atomic in the store itself, never
//     read-modify-write in Go, so concurrent increments are not lost.
package repository

import (
	"context"
	"time"

	"github.com/sakif/projectshelf/internal/model"
)

// UserRepository stores identities.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// Update persists the mutable profile fields of user: username, email,
	// password hash, google id, picture, bio, social links and theme.
	// Analytics fields are never written by Update.
	Update(ctx context.Context, user *model.User) error

	// RecordLogin atomically increments the login counter and stamps the
	// last-login time.
	RecordLogin(ctx context.Context, id string, at time.Time) error
}

// ProjectRepository stores projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Project, error)
	Update(ctx context.Context, project *model.Project) error
	Delete(ctx context.Context, id string) error

	// SlugExists reports whether a project other than excludeID uses slug.
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)

	IncrementViews(ctx context.Context, id string) (*model.ProjectAnalytics, error)
	IncrementEngagement(ctx context.Context, id string) (*model.ProjectAnalytics, error)
}

// AnalyticsRepository stores per-user visit tallies and project views.
type AnalyticsRepository interface {
	// RecordVisit finds or creates the tally for day (local midnight) and
	// increments it by one.
	RecordVisit(ctx context.Context, userID string, day time.Time) error

	// RecordProjectView finds or creates the user's entry for projectID,
	// increments its count and sets its last-viewed time to at.
	RecordProjectView(ctx context.Context, userID, projectID string, at time.Time) error

	// VisitStats returns the user's tallies ordered by date ascending.
	VisitStats(ctx context.Context, userID string) ([]model.VisitStat, error)

	// ProjectViews returns the user's viewed-project entries in the order
	// they were first recorded.
	ProjectViews(ctx context.Context, userID string) ([]model.ProjectView, error)
}

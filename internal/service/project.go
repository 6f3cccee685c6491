// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces ownership, orchestrates
//	Repository (Data layer)  → reads/writes the store (SQLite or MongoDB)
//
// Services accept plain Go values (ids, input structs), never *http.Request,
// and return apperror values the handler translates into status codes. They
// depend on the repository interfaces, so tests inject in-memory fakes and
// production picks a backend in one place (server wiring).
//
// THE DEPENDENCY CHAIN:
//
//	main.go creates:  Store → Repositories → Services → Handlers
//	At runtime:       Handler calls Service calls Repository calls Store
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/model"
	"github.com/sakif/projectshelf/internal/repository"
)

const (
	MaxTitleLength = 200

	// maxSlugAttempts bounds the retries when a concurrent write takes the
	// slug picked by uniqueSlug before Create/Update lands.
	maxSlugAttempts = 3

	msgProjectNotFound = "Project not found"
	msgNotAuthorized   = "User not authorized"
)

// ProjectInput is the body of a new project. The owner is never part of it:
// it always comes from the authenticated requester.
type ProjectInput struct {
	Title        string
	Overview     string
	MediaGallery []model.MediaItem
	Timeline     []model.TimelineEntry
	Tools        []model.Tool
	Outcomes     model.Outcomes
}

// ProjectPatch is a partial update. A nil field is left untouched; a non-nil
// slice replaces the whole list.
type ProjectPatch struct {
	Title        *string
	Overview     *string
	MediaGallery *[]model.MediaItem
	Timeline     *[]model.TimelineEntry
	Tools        *[]model.Tool
	Outcomes     *model.Outcomes
}

// ProjectService handles business logic for projects.
//
// countOwnerViews decides whether an owner reading their own project bumps
// its view counter (the historical behaviour) or not.
type ProjectService struct {
	projects        repository.ProjectRepository
	users           repository.UserRepository
	analytics       *AnalyticsService
	countOwnerViews bool
	logger          *slog.Logger
}

func NewProjectService(
	projects repository.ProjectRepository,
	users repository.UserRepository,
	analytics *AnalyticsService,
	countOwnerViews bool,
	logger *slog.Logger,
) *ProjectService {
	return &ProjectService{
		projects:        projects,
		users:           users,
		analytics:       analytics,
		countOwnerViews: countOwnerViews,
		logger:          logger,
	}
}

// List returns the owner's projects in creation order. Never another user's.
func (s *ProjectService) List(ctx context.Context, ownerID string) ([]model.Project, error) {
	projects, err := s.projects.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing projects of %s: %w", ownerID, err)
	}
	return projects, nil
}

// Create validates in and saves it as a project owned by ownerID.
//
// The slug is derived from the title; when another project already uses it
// the first free "-2", "-3", ... suffix is appended.
func (s *ProjectService) Create(ctx context.Context, ownerID string, in ProjectInput) (*model.Project, error) {
	// === VALIDATION ===
	title := strings.TrimSpace(in.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Overview) == "" {
		return nil, apperror.ValidationFailed("overview", "overview is required")
	}
	if err := validateMedia(in.MediaGallery); err != nil {
		return nil, err
	}

	project := &model.Project{
		UserID:       ownerID,
		Title:        title,
		Overview:     in.Overview,
		MediaGallery: in.MediaGallery,
		Timeline:     in.Timeline,
		Tools:        in.Tools,
		Outcomes:     in.Outcomes,
	}

	// === SAVE, RETRYING ON A LOST SLUG RACE ===
	err := s.withUniqueSlug(ctx, project, func() error {
		return s.projects.Create(ctx, project)
	})
	if err != nil {
		s.logger.Error("failed to create project",
			slog.String("owner", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.logger.Info("project created",
		slog.String("id", project.ID),
		slog.String("slug", project.Slug),
		slog.String("owner", ownerID),
	)
	project.Normalize()
	return project, nil
}

// Get returns a project by id and counts the read as a view. viewerID is the
// optionally authenticated requester ("" for anonymous).
func (s *ProjectService) Get(ctx context.Context, id, viewerID string) (*model.Project, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.countOwnerViews || viewerID != project.UserID {
		counters, err := s.projects.IncrementViews(ctx, id)
		if err != nil {
			return nil, s.notFoundOr(err, "counting view of %s", id)
		}
		project.Analytics = *counters
	}
	return project, nil
}

// GetPublic is Get plus the creator's public profile. An authenticated
// viewer also gets the view recorded in their own analytics, best-effort.
func (s *ProjectService) GetPublic(ctx context.Context, id, viewerID string) (*model.PublicProject, error) {
	project, err := s.Get(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}

	public := &model.PublicProject{Project: *project}
	owner, err := s.users.GetByID(ctx, project.UserID)
	switch {
	case err == nil:
		creator := owner.Public()
		public.Creator = &creator
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("loading creator of %s: %w", id, err)
	}

	if viewerID != "" {
		s.analytics.TryRecordProjectView(ctx, viewerID, id)
	}
	return public, nil
}

// Update applies patch to the project if requesterID owns it.
//
// Existence is checked before ownership, so a non-owner can tell a missing
// project (404) from someone else's (403). A new title re-derives the slug.
func (s *ProjectService) Update(ctx context.Context, id, requesterID string, patch ProjectPatch) (*model.Project, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.UserID != requesterID {
		return nil, apperror.Forbidden(msgNotAuthorized)
	}

	retitled := false
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		project.Title = title
		retitled = true
	}
	if patch.Overview != nil {
		if strings.TrimSpace(*patch.Overview) == "" {
			return nil, apperror.ValidationFailed("overview", "overview is required")
		}
		project.Overview = *patch.Overview
	}
	if patch.MediaGallery != nil {
		if err := validateMedia(*patch.MediaGallery); err != nil {
			return nil, err
		}
		project.MediaGallery = *patch.MediaGallery
	}
	if patch.Timeline != nil {
		project.Timeline = *patch.Timeline
	}
	if patch.Tools != nil {
		project.Tools = *patch.Tools
	}
	if patch.Outcomes != nil {
		project.Outcomes = *patch.Outcomes
	}

	save := func() error { return s.projects.Update(ctx, project) }
	if retitled {
		err = s.withUniqueSlug(ctx, project, save)
	} else {
		err = save()
	}
	if err != nil {
		return nil, s.notFoundOr(err, "updating project %s", id)
	}

	s.logger.Info("project updated",
		slog.String("id", project.ID),
		slog.String("slug", project.Slug),
	)
	project.Normalize()
	return project, nil
}

// Delete removes the project if requesterID owns it.
func (s *ProjectService) Delete(ctx context.Context, id, requesterID string) error {
	project, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if project.UserID != requesterID {
		return apperror.Forbidden(msgNotAuthorized)
	}

	if err := s.projects.Delete(ctx, id); err != nil {
		return s.notFoundOr(err, "deleting project %s", id)
	}

	s.logger.Info("project deleted", slog.String("id", id), slog.String("owner", requesterID))
	return nil
}

// IncrementEngagement bumps the engagement counter of any project and
// returns the counters.
func (s *ProjectService) IncrementEngagement(ctx context.Context, id string) (*model.ProjectAnalytics, error) {
	counters, err := s.projects.IncrementEngagement(ctx, id)
	if err != nil {
		return nil, s.notFoundOr(err, "counting engagement on %s", id)
	}
	return counters, nil
}

// RecordView bumps the view counter without loading the project.
func (s *ProjectService) RecordView(ctx context.Context, id string) (*model.ProjectAnalytics, error) {
	counters, err := s.projects.IncrementViews(ctx, id)
	if err != nil {
		return nil, s.notFoundOr(err, "counting view of %s", id)
	}
	return counters, nil
}

func (s *ProjectService) load(ctx context.Context, id string) (*model.Project, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "project ID is required")
	}
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, s.notFoundOr(err, "loading project %s", id)
	}
	return project, nil
}

// notFoundOr normalises repository misses to the user-facing message and
// wraps anything else.
func (s *ProjectService) notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.NotFoundMessage(msgProjectNotFound)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// withUniqueSlug sets project.Slug to a free slug for its title and runs
// save, picking again if save loses the slug to a concurrent writer.
func (s *ProjectService) withUniqueSlug(ctx context.Context, project *model.Project, save func() error) error {
	base := model.Slugify(project.Title)
	if base == "" {
		base = model.DefaultSlug
	}

	var err error
	for range maxSlugAttempts {
		if project.Slug, err = s.uniqueSlug(ctx, base, project.ID); err != nil {
			return err
		}
		err = save()
		if err == nil || !errors.Is(err, apperror.ErrConflict) || conflictField(err) != "slug" {
			return err
		}
	}
	return err
}

// uniqueSlug returns base if no other project uses it, else base-2, base-3...
func (s *ProjectService) uniqueSlug(ctx context.Context, base, excludeID string) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		taken, err := s.projects.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("checking slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
}

func validateTitle(title string) error {
	if title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	return nil
}

func validateMedia(items []model.MediaItem) error {
	for i, item := range items {
		field := fmt.Sprintf("mediaGallery[%d]", i)
		if !item.Type.Valid() {
			return apperror.ValidationFailed(field+".type", "media type must be image or video")
		}
		if strings.TrimSpace(item.URL) == "" {
			return apperror.ValidationFailed(field+".url", "media url is required")
		}
	}
	return nil
}

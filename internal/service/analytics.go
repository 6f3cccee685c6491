package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/metrics"
	"github.com/sakif/projectshelf/internal/model"
	"github.com/sakif/projectshelf/internal/repository"
)

const (
	RecentVisitWindow = 30 * 24 * time.Hour
	TopProjectsLimit  = 5
)

// AnalyticsService records visit and project-view events against a user and
// aggregates them for the dashboard.
//
// Recording comes in two flavours. RecordPageView/RecordProjectView return
// their error and back the explicit analytics endpoints. The Try* variants
// are attached to other requests (a portfolio load, a public project view):
// they log and count failures and never return them, so a failed analytics
// write cannot fail the request it rides on.
type AnalyticsService struct {
	users     repository.UserRepository
	projects  repository.ProjectRepository
	analytics repository.AnalyticsRepository
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewAnalyticsService(
	users repository.UserRepository,
	projects repository.ProjectRepository,
	analytics repository.AnalyticsRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		users:     users,
		projects:  projects,
		analytics: analytics,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Dashboard is the aggregated analytics view of one user.
type Dashboard struct {
	TotalVisits  int64               `json:"totalVisits"`
	RecentVisits []model.VisitStat   `json:"recentVisits"`
	TopProjects  []model.ProjectView `json:"topProjects"`
	LoginCount   int64               `json:"loginCount"`
	LastLogin    time.Time           `json:"lastLogin"`
}

// UserAnalytics is the raw analytics record of one user.
type UserAnalytics struct {
	LoginCount     int64               `json:"loginCount"`
	LastLogin      time.Time           `json:"lastLogin"`
	VisitStats     []model.VisitStat   `json:"visitStats"`
	ProjectsViewed []model.ProjectView `json:"projectsViewed"`
}

// RecordPageView bumps today's visit tally for userID. "Today" is the local
// calendar day of the server clock.
func (s *AnalyticsService) RecordPageView(ctx context.Context, userID string) error {
	day := model.StartOfDay(s.now())
	if err := s.analytics.RecordVisit(ctx, userID, day); err != nil {
		return fmt.Errorf("service/analytics: recording visit for %s: %w", userID, err)
	}
	return nil
}

// RecordProjectView records that userID viewed projectID. The project must
// exist.
func (s *AnalyticsService) RecordProjectView(ctx context.Context, userID, projectID string) error {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMessage("Project not found")
		}
		return fmt.Errorf("service/analytics: loading project %s: %w", projectID, err)
	}
	if err := s.analytics.RecordProjectView(ctx, userID, projectID, s.now()); err != nil {
		return fmt.Errorf("service/analytics: recording view of %s by %s: %w", projectID, userID, err)
	}
	return nil
}

// TryRecordPageView is the best-effort form of RecordPageView.
func (s *AnalyticsService) TryRecordPageView(ctx context.Context, userID string) {
	if err := s.RecordPageView(ctx, userID); err != nil {
		s.swallow(ctx, "page_view", err, slog.String("userID", userID))
	}
}

// TryRecordProjectView is the best-effort form of RecordProjectView.
func (s *AnalyticsService) TryRecordProjectView(ctx context.Context, userID, projectID string) {
	if err := s.RecordProjectView(ctx, userID, projectID); err != nil {
		s.swallow(ctx, "project_view", err,
			slog.String("userID", userID),
			slog.String("projectID", projectID),
		)
	}
}

func (s *AnalyticsService) swallow(ctx context.Context, event string, err error, attrs ...slog.Attr) {
	s.metrics.AnalyticsFailure(event)
	args := make([]any, 0, len(attrs)+2)
	args = append(args, slog.String("event", event), slog.String("error", err.Error()))
	for _, a := range attrs {
		args = append(args, a)
	}
	s.logger.WarnContext(ctx, "analytics write failed", args...)
}

// Dashboard aggregates the user's analytics:
//
//   - TotalVisits sums every visit tally ever recorded.
//   - RecentVisits keeps the tallies dated within the last 30 days.
//   - TopProjects holds the five most viewed projects, most views first;
//     equal counts keep the order the projects were first viewed in.
//     Titles are filled in; a project deleted since keeps an empty title.
func (s *AnalyticsService) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, views, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-RecentVisitWindow)
	d := &Dashboard{
		RecentVisits: []model.VisitStat{},
		LoginCount:   user.LoginCount,
		LastLogin:    user.LastLogin,
	}
	for _, stat := range stats {
		d.TotalVisits += stat.Count
		if !stat.Date.Before(cutoff) {
			d.RecentVisits = append(d.RecentVisits, stat)
		}
	}

	top := slices.Clone(views)
	slices.SortStableFunc(top, func(a, b model.ProjectView) int {
		switch {
		case a.ViewCount > b.ViewCount:
			return -1
		case a.ViewCount < b.ViewCount:
			return 1
		}
		return 0
	})
	if len(top) > TopProjectsLimit {
		top = top[:TopProjectsLimit]
	}
	if err := s.fillTitles(ctx, top); err != nil {
		return nil, err
	}
	d.TopProjects = top

	return d, nil
}

// UserAnalytics returns the user's raw counters, tallies and viewed projects.
func (s *AnalyticsService) UserAnalytics(ctx context.Context, userID string) (*UserAnalytics, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, views, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.fillTitles(ctx, views); err != nil {
		return nil, err
	}
	return &UserAnalytics{
		LoginCount:     user.LoginCount,
		LastLogin:      user.LastLogin,
		VisitStats:     stats,
		ProjectsViewed: views,
	}, nil
}

func (s *AnalyticsService) loadUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("User not found")
		}
		return nil, fmt.Errorf("service/analytics: loading user %s: %w", userID, err)
	}
	return user, nil
}

func (s *AnalyticsService) load(ctx context.Context, userID string) ([]model.VisitStat, []model.ProjectView, error) {
	stats, err := s.analytics.VisitStats(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("service/analytics: loading visit stats: %w", err)
	}
	views, err := s.analytics.ProjectViews(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("service/analytics: loading project views: %w", err)
	}
	if stats == nil {
		stats = []model.VisitStat{}
	}
	if views == nil {
		views = []model.ProjectView{}
	}
	return stats, views, nil
}

func (s *AnalyticsService) fillTitles(ctx context.Context, views []model.ProjectView) error {
	for i := range views {
		p, err := s.projects.GetByID(ctx, views[i].ProjectID)
		if errors.Is(err, apperror.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("service/analytics: loading project %s: %w", views[i].ProjectID, err)
		}
		views[i].ProjectTitle = p.Title
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/media"
	"github.com/sakif/projectshelf/internal/model"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// In-memory implementations of the repository interfaces. They follow the
// same contract as the SQLite and MongoDB stores: misses wrap ErrNotFound,
// duplicates return a conflict naming the column, and records are copied in
// and out so tests cannot alias stored state.

type fakeUsers struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int

	// non-nil errors simulate store failures
	createErr error
	updateErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*model.User)}
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if err := f.checkUnique(u, ""); err != nil {
		return err
	}
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	if u.SelectedTheme == "" {
		u.SelectedTheme = model.DefaultTheme
	}
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeUsers) checkUnique(u *model.User, selfID string) error {
	for id, other := range f.users {
		if id == selfID {
			continue
		}
		switch {
		case other.Username == u.Username:
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "duplicate username", Field: "username"}
		case other.Email == u.Email:
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "duplicate email", Field: "email"}
		case u.GoogleID != "" && other.GoogleID == u.GoogleID:
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "duplicate google id", Field: "google_id"}
		}
	}
	return nil
}

func (f *fakeUsers) find(match func(*model.User) bool) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFoundMessage("user not found")
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id })
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Email == email })
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Username == username })
}

func (f *fakeUsers) GetByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return googleID != "" && u.GoogleID == googleID })
}

func (f *fakeUsers) Update(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	existing, ok := f.users[u.ID]
	if !ok {
		return apperror.NotFound("user", u.ID)
	}
	if err := f.checkUnique(u, u.ID); err != nil {
		return err
	}
	stored := *u
	// Update never writes the analytics fields.
	stored.LoginCount = existing.LoginCount
	stored.LastLogin = existing.LastLogin
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now()
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeUsers) RecordLogin(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.LoginCount++
	u.LastLogin = at
	return nil
}

// count returns how many users are stored.
func (f *fakeUsers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

type fakeProjects struct {
	mu       sync.Mutex
	projects map[string]*model.Project
	order    []string
	nextID   int

	// slugRace makes the next Create fail with a slug conflict once.
	slugRace bool
	getErr   error
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{projects: make(map[string]*model.Project)}
}

func (f *fakeProjects) Create(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slugRace {
		f.slugRace = false
		// Someone else grabbed the slug in between.
		f.nextID++
		thief := &model.Project{ID: fmt.Sprintf("project-%d", f.nextID), UserID: "thief", Title: p.Title, Slug: p.Slug}
		f.projects[thief.ID] = thief
		f.order = append(f.order, thief.ID)
		return &apperror.AppError{Err: apperror.ErrConflict, Message: "duplicate slug", Field: "slug"}
	}
	for _, other := range f.projects {
		if other.Slug == p.Slug {
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "duplicate slug", Field: "slug"}
		}
	}
	f.nextID++
	p.ID = fmt.Sprintf("project-%d", f.nextID)
	p.Analytics = model.ProjectAnalytics{}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	f.projects[p.ID] = &stored
	f.order = append(f.order, p.ID)
	return nil
}

func (f *fakeProjects) GetByID(_ context.Context, id string) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.projects[id]
	if !ok {
		return nil, apperror.NotFoundMessage("project not found")
	}
	copied := *p
	copied.Normalize()
	return &copied, nil
}

func (f *fakeProjects) ListByOwner(_ context.Context, ownerID string) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Project{}
	for _, id := range f.order {
		if p, ok := f.projects[id]; ok && p.UserID == ownerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProjects) Update(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.projects[p.ID]
	if !ok {
		return apperror.NotFound("project", p.ID)
	}
	for id, other := range f.projects {
		if id != p.ID && other.Slug == p.Slug {
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "duplicate slug", Field: "slug"}
		}
	}
	stored := *p
	stored.UserID = existing.UserID
	stored.Analytics = existing.Analytics
	f.projects[p.ID] = &stored
	return nil
}

func (f *fakeProjects) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.projects[id]; !ok {
		return apperror.NotFound("project", id)
	}
	delete(f.projects, id)
	return nil
}

func (f *fakeProjects) SlugExists(_ context.Context, slug, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.projects {
		if id != excludeID && p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeProjects) increment(id string, bump func(*model.ProjectAnalytics)) (*model.ProjectAnalytics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, apperror.NotFound("project", id)
	}
	bump(&p.Analytics)
	counters := p.Analytics
	return &counters, nil
}

func (f *fakeProjects) IncrementViews(_ context.Context, id string) (*model.ProjectAnalytics, error) {
	return f.increment(id, func(a *model.ProjectAnalytics) { a.Views++ })
}

func (f *fakeProjects) IncrementEngagement(_ context.Context, id string) (*model.ProjectAnalytics, error) {
	return f.increment(id, func(a *model.ProjectAnalytics) { a.Engagement++ })
}

// stored returns the record as persisted, bypassing any service logic.
func (f *fakeProjects) stored(id string) model.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.projects[id]
}

type fakeAnalytics struct {
	mu     sync.Mutex
	visits map[string][]model.VisitStat
	views  map[string][]model.ProjectView

	err error
}

func newFakeAnalytics() *fakeAnalytics {
	return &fakeAnalytics{
		visits: make(map[string][]model.VisitStat),
		views:  make(map[string][]model.ProjectView),
	}
}

func (f *fakeAnalytics) RecordVisit(_ context.Context, userID string, day time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	stats := f.visits[userID]
	for i := range stats {
		if stats[i].Date.Equal(day) {
			stats[i].Count++
			return nil
		}
	}
	f.visits[userID] = append(stats, model.VisitStat{Date: day, Count: 1})
	return nil
}

func (f *fakeAnalytics) RecordProjectView(_ context.Context, userID, projectID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	views := f.views[userID]
	for i := range views {
		if views[i].ProjectID == projectID {
			views[i].ViewCount++
			views[i].LastViewed = at
			return nil
		}
	}
	f.views[userID] = append(views, model.ProjectView{ProjectID: projectID, ViewCount: 1, LastViewed: at})
	return nil
}

func (f *fakeAnalytics) VisitStats(_ context.Context, userID string) ([]model.VisitStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.VisitStat(nil), f.visits[userID]...), nil
}

func (f *fakeAnalytics) ProjectViews(_ context.Context, userID string) ([]model.ProjectView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ProjectView(nil), f.views[userID]...), nil
}

// =========================================================================
// FAKE ASSET HOST
// =========================================================================

type fakeHost struct {
	uploads []media.Upload
	bodies  [][]byte
	deleted []string

	uploadErr error
	deleteErr error
}

func (h *fakeHost) Name() string { return "fake" }

func (h *fakeHost) Upload(_ context.Context, in media.Upload) (*media.Asset, error) {
	if h.uploadErr != nil {
		return nil, h.uploadErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	h.uploads = append(h.uploads, in)
	h.bodies = append(h.bodies, body)
	id := fmt.Sprintf("projectshelf/asset-%d", len(h.uploads))
	return &media.Asset{
		URL:          "https://assets.example.com/" + id,
		PublicID:     id,
		ResourceType: media.ResourceTypeFor(in.ContentType),
	}, nil
}

func (h *fakeHost) Delete(_ context.Context, publicID, resourceType string) error {
	if h.deleteErr != nil {
		return h.deleteErr
	}
	h.deleted = append(h.deleted, resourceType+":"+publicID)
	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

var errStoreDown = errors.New("store is down")

// quietLogger discards service logs.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedClock returns a clock stuck at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

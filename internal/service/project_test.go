package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/model"
)

type projectFixture struct {
	svc       *ProjectService
	projects  *fakeProjects
	users     *fakeUsers
	analytics *fakeAnalytics
	alice     string
	bob       string
}

func newProjectFixture(t *testing.T, countOwnerViews bool) *projectFixture {
	t.Helper()
	f := &projectFixture{
		projects:  newFakeProjects(),
		users:     newFakeUsers(),
		analytics: newFakeAnalytics(),
	}
	as := NewAnalyticsService(f.users, f.projects, f.analytics, nil, quietLogger())
	f.svc = NewProjectService(f.projects, f.users, as, countOwnerViews, quietLogger())

	for _, name := range []string{"alice", "bob"} {
		u := &model.User{Username: name, Email: name + "@x.com", PasswordHash: "x", Bio: name + "'s bio"}
		if err := f.users.Create(context.Background(), u); err != nil {
			t.Fatalf("setup: %v", err)
		}
		if name == "alice" {
			f.alice = u.ID
		} else {
			f.bob = u.ID
		}
	}
	return f
}

func (f *projectFixture) create(t *testing.T, owner, title string) *model.Project {
	t.Helper()
	p, err := f.svc.Create(context.Background(), owner, ProjectInput{Title: title, Overview: "An overview"})
	if err != nil {
		t.Fatalf("Create(%q) error = %v", title, err)
	}
	return p
}

// =========================================================================
// CREATE
// =========================================================================

func TestCreateProject_Success(t *testing.T) {
	f := newProjectFixture(t, true)

	p, err := f.svc.Create(context.Background(), f.alice, ProjectInput{
		Title:    "  My Demo!  ",
		Overview: "A demo project",
		MediaGallery: []model.MediaItem{
			{Type: model.MediaImage, URL: "https://example.com/a.png", Caption: "cover"},
		},
		Tools: []model.Tool{{Name: "Go"}},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if p.ID == "" {
		t.Error("expected project to have an ID")
	}
	if p.UserID != f.alice {
		t.Errorf("UserID = %q, want the requester %q", p.UserID, f.alice)
	}
	if p.Title != "My Demo!" {
		t.Errorf("Title = %q, want trimmed", p.Title)
	}
	if p.Slug != "my-demo" {
		t.Errorf("Slug = %q, want %q", p.Slug, "my-demo")
	}
	if p.Analytics != (model.ProjectAnalytics{}) {
		t.Errorf("Analytics = %+v, want zero counters", p.Analytics)
	}
	if p.Timeline == nil || p.Outcomes.Metrics == nil {
		t.Error("absent lists should be normalised to empty slices")
	}
}

func TestCreateProject_Validation(t *testing.T) {
	tests := []struct {
		name      string
		in        ProjectInput
		wantField string
	}{
		{"missing title", ProjectInput{Overview: "o"}, "title"},
		{"blank title", ProjectInput{Title: "   ", Overview: "o"}, "title"},
		{"title too long", ProjectInput{Title: strings.Repeat("t", MaxTitleLength+1), Overview: "o"}, "title"},
		{"missing overview", ProjectInput{Title: "t"}, "overview"},
		{"bad media type", ProjectInput{Title: "t", Overview: "o",
			MediaGallery: []model.MediaItem{{Type: "audio", URL: "https://x"}}}, "mediaGallery[0].type"},
		{"media without url", ProjectInput{Title: "t", Overview: "o",
			MediaGallery: []model.MediaItem{{Type: model.MediaImage, URL: "https://x"}, {Type: model.MediaVideo}}}, "mediaGallery[1].url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProjectFixture(t, true)

			_, err := f.svc.Create(context.Background(), f.alice, tt.in)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Create() error = %v, want ErrValidation", err)
			}
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
			if list, _ := f.projects.ListByOwner(context.Background(), f.alice); len(list) != 0 {
				t.Error("a rejected project must not be stored")
			}
		})
	}
}

func TestCreateProject_SlugCollisions(t *testing.T) {
	f := newProjectFixture(t, true)

	slugs := []string{
		f.create(t, f.alice, "My Demo").Slug,
		f.create(t, f.bob, "my demo!").Slug,
		f.create(t, f.alice, "MY_DEMO").Slug,
	}
	want := []string{"my-demo", "my-demo-2", "my-demo-3"}
	for i := range want {
		if slugs[i] != want[i] {
			t.Errorf("slug %d = %q, want %q", i, slugs[i], want[i])
		}
	}
}

func TestCreateProject_EmptySlugFallsBack(t *testing.T) {
	f := newProjectFixture(t, true)

	if got := f.create(t, f.alice, "!!!").Slug; got != model.DefaultSlug {
		t.Errorf("Slug = %q, want %q", got, model.DefaultSlug)
	}
	if got := f.create(t, f.alice, "???").Slug; got != model.DefaultSlug+"-2" {
		t.Errorf("Slug = %q, want %q", got, model.DefaultSlug+"-2")
	}
}

func TestCreateProject_RetriesLostSlugRace(t *testing.T) {
	f := newProjectFixture(t, true)
	f.projects.slugRace = true

	p := f.create(t, f.alice, "Race")
	if p.Slug != "race-2" {
		t.Errorf("Slug = %q, want %q after losing the race for %q", p.Slug, "race-2", "race")
	}
}

// =========================================================================
// LIST / GET
// =========================================================================

func TestListProjects_OnlyOwner(t *testing.T) {
	f := newProjectFixture(t, true)
	f.create(t, f.alice, "A1")
	f.create(t, f.bob, "B1")
	f.create(t, f.alice, "A2")

	list, err := f.svc.List(context.Background(), f.alice)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].Title != "A1" || list[1].Title != "A2" {
		t.Errorf("List() = %+v, want alice's A1, A2", list)
	}
	for _, p := range list {
		if p.UserID != f.alice {
			t.Errorf("List() leaked project %q of %q", p.Title, p.UserID)
		}
	}
}

func TestGetProject_CountsEveryRead(t *testing.T) {
	f := newProjectFixture(t, true)
	p := f.create(t, f.alice, "Demo")

	var last *model.Project
	for range 3 {
		var err error
		if last, err = f.svc.Get(context.Background(), p.ID, ""); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if last.Analytics.Views != 3 {
		t.Errorf("Views = %d, want 3", last.Analytics.Views)
	}
}

func TestGetProject_OwnerViews(t *testing.T) {
	tests := []struct {
		name            string
		countOwnerViews bool
		viewerIsOwner   bool
		wantViews       int64
	}{
		{"owner counted by default", true, true, 1},
		{"owner excluded", false, true, 0},
		{"other viewer still counted", false, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProjectFixture(t, tt.countOwnerViews)
			p := f.create(t, f.alice, "Demo")
			viewer := f.bob
			if tt.viewerIsOwner {
				viewer = f.alice
			}

			got, err := f.svc.Get(context.Background(), p.ID, viewer)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Analytics.Views != tt.wantViews {
				t.Errorf("Views = %d, want %d", got.Analytics.Views, tt.wantViews)
			}
		})
	}
}

func TestGetProject_NotFound(t *testing.T) {
	f := newProjectFixture(t, true)

	for _, id := range []string{"missing", ""} {
		_, err := f.svc.Get(context.Background(), id, "")
		if err == nil {
			t.Errorf("Get(%q) should fail", id)
		}
	}
	_, err := f.svc.Get(context.Background(), "missing", "")
	if !errors.Is(err, apperror.ErrNotFound) || err.Error() != "Project not found" {
		t.Errorf("Get() error = %v, want NotFound %q", err, "Project not found")
	}
}

func TestGetPublic_AddsCreatorAndRecordsViewer(t *testing.T) {
	f := newProjectFixture(t, true)
	p := f.create(t, f.alice, "Demo")

	got, err := f.svc.GetPublic(context.Background(), p.ID, f.bob)
	if err != nil {
		t.Fatalf("GetPublic() error = %v", err)
	}

	if got.Creator == nil || got.Creator.Username != "alice" || got.Creator.Bio != "alice's bio" {
		t.Errorf("Creator = %+v, want alice's public profile", got.Creator)
	}
	if got.Analytics.Views != 1 {
		t.Errorf("Views = %d, want 1", got.Analytics.Views)
	}
	views, _ := f.analytics.ProjectViews(context.Background(), f.bob)
	if len(views) != 1 || views[0].ProjectID != p.ID {
		t.Errorf("bob's project views = %+v, want the demo recorded", views)
	}
}

func TestGetPublic_Anonymous(t *testing.T) {
	f := newProjectFixture(t, true)
	p := f.create(t, f.alice, "Demo")
	f.analytics.err = errStoreDown

	got, err := f.svc.GetPublic(context.Background(), p.ID, "")
	if err != nil {
		t.Fatalf("GetPublic() error = %v", err)
	}
	if got.Creator == nil {
		t.Error("anonymous viewers still get the creator")
	}
}

// =========================================================================
// UPDATE / DELETE
// =========================================================================

func TestUpdateProject_Owner(t *testing.T) {
	f := newProjectFixture(t, true)
	p := f.create(t, f.alice, "Old Title")
	timeline := []model.TimelineEntry{{Title: "Kickoff", Description: "day one"}}

	got, err := f.svc.Update(context.Background(), p.ID, f.alice, ProjectPatch{
		Title:    ptr("New Title"),
		Timeline: &timeline,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if got.Title != "New Title" || got.Slug != "new-title" {
		t.Errorf("title/slug = %q/%q, want New Title/new-title", got.Title, got.Slug)
	}
	if got.Overview != "An overview" {
		t.Errorf("Overview = %q, want untouched", got.Overview)
	}
	if len(got.Timeline) != 1 || got.Timeline[0].Title != "Kickoff" {
		t.Errorf("Timeline = %+v", got.Timeline)
	}
}

func TestUpdateProject_KeepsSlugWithoutTitle(t *testing.T) {
	f := newProjectFixture(t, true)
	p := f.create(t, f.alice, "Stable")

	got, err := f.svc.Update(context.Background(), p.ID, f.alice, ProjectPatch{Overview: ptr("changed")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Slug != "stable" {
		t.Errorf("Slug = %q, want %q", got.Slug, "stable")
	}
}

func TestUpdateProject_SameTitleKeepsOwnSlug(t *testing.T) {
	f := newProjectFixture(t, true)
	p := f.create(t, f.alice, "Mine")

	got, err := f.svc.Update(context.Background(), p.ID, f.alice, ProjectPatch{Title: ptr("Mine")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Slug != "mine" {
		t.Errorf("Slug = %q, want %q (a project never collides with itself)", got.Slug, "mine")
	}
}

func TestUpdateProject_NonOwner(t *testing.T) {
	f := newProjectFixture(t, true)
	p := f.create(t, f.alice, "Alice's")

	_, err := f.svc.Update(context.Background(), p.ID, f.bob, ProjectPatch{Title: ptr("Hijacked")})
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("Update() error = %v, want ErrForbidden", err)
	}
	if stored := f.projects.stored(p.ID); stored.Title != "Alice's" {
		t.Errorf("stored title = %q, project must be unchanged", stored.Title)
	}
}

func TestUpdateProject_NotFoundBeforeForbidden(t *testing.T) {
	f := newProjectFixture(t, true)

	_, err := f.svc.Update(context.Background(), "missing", f.bob, ProjectPatch{})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateProject_Validation(t *testing.T) {
	f := newProjectFixture(t, true)
	p := f.create(t, f.alice, "Demo")
	badMedia := []model.MediaItem{{Type: "gif", URL: "x"}}

	for name, patch := range map[string]ProjectPatch{
		"blank title":    {Title: ptr(" ")},
		"blank overview": {Overview: ptr("")},
		"bad media":      {MediaGallery: &badMedia},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := f.svc.Update(context.Background(), p.ID, f.alice, patch); !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Update() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestDeleteProject(t *testing.T) {
	f := newProjectFixture(t, true)
	p := f.create(t, f.alice, "Doomed")

	if err := f.svc.Delete(context.Background(), p.ID, f.bob); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Delete() by non-owner error = %v, want ErrForbidden", err)
	}
	if err := f.svc.Delete(context.Background(), p.ID, f.alice); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := f.projects.GetByID(context.Background(), p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Error("project still exists after delete")
	}
	if err := f.svc.Delete(context.Background(), p.ID, f.alice); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// COUNTERS
// =========================================================================

func TestIncrementEngagement(t *testing.T) {
	f := newProjectFixture(t, true)
	p := f.create(t, f.alice, "Demo")

	var got *model.ProjectAnalytics
	for range 2 {
		var err error
		if got, err = f.svc.IncrementEngagement(context.Background(), p.ID); err != nil {
			t.Fatalf("IncrementEngagement() error = %v", err)
		}
	}
	if got.Engagement != 2 || got.Views != 0 {
		t.Errorf("analytics = %+v, want engagement 2 and views 0", got)
	}

	if _, err := f.svc.IncrementEngagement(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("IncrementEngagement(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRecordView_Concurrent(t *testing.T) {
	f := newProjectFixture(t, true)
	p := f.create(t, f.alice, "Popular")

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.RecordView(context.Background(), p.ID); err != nil {
				t.Errorf("RecordView() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.projects.stored(p.ID).Analytics.Views; got != 50 {
		t.Errorf("Views = %d, want 50", got)
	}
}

package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/model"
)

func TestRecordVisit_SameDayBucketsTogether(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "visitor")
	analytics := db.Analytics()
	ctx := context.Background()

	morning := time.Date(2024, 5, 10, 8, 0, 0, 0, time.Local)
	evening := time.Date(2024, 5, 10, 21, 30, 0, 0, time.Local)
	nextDay := time.Date(2024, 5, 11, 9, 0, 0, 0, time.Local)

	for _, at := range []time.Time{morning, evening, nextDay} {
		if err := analytics.RecordVisit(ctx, user.ID, at); err != nil {
			t.Fatalf("RecordVisit(%v) error = %v", at, err)
		}
	}

	stats, err := analytics.VisitStats(ctx, user.ID)
	if err != nil {
		t.Fatalf("VisitStats() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("VisitStats() returned %d entries, want 2: %+v", len(stats), stats)
	}
	if !stats[0].Date.Equal(model.StartOfDay(morning)) || stats[0].Count != 2 {
		t.Errorf("stats[0] = %+v, want 2 visits on %v", stats[0], model.StartOfDay(morning))
	}
	if !stats[1].Date.Equal(model.StartOfDay(nextDay)) || stats[1].Count != 1 {
		t.Errorf("stats[1] = %+v, want 1 visit on %v", stats[1], model.StartOfDay(nextDay))
	}
}

func TestRecordVisit_UnknownUser(t *testing.T) {
	db := newTestDB(t)

	err := db.Analytics().RecordVisit(context.Background(), "missing", time.Now())
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("RecordVisit() error = %v, want ErrNotFound", err)
	}
}

func TestRecordProjectView(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "viewer")
	analytics := db.Analytics()
	ctx := context.Background()

	first := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	later := first.Add(2 * time.Hour)

	calls := []struct {
		projectID string
		at        time.Time
	}{
		{"p-b", first},
		{"p-a", first},
		{"p-b", later},
	}
	for _, c := range calls {
		if err := analytics.RecordProjectView(ctx, user.ID, c.projectID, c.at); err != nil {
			t.Fatalf("RecordProjectView(%s) error = %v", c.projectID, err)
		}
	}

	views, err := analytics.ProjectViews(ctx, user.ID)
	if err != nil {
		t.Fatalf("ProjectViews() error = %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("ProjectViews() returned %d entries, want 2", len(views))
	}

	// First-recorded order is preserved even after p-b is viewed again.
	if views[0].ProjectID != "p-b" || views[0].ViewCount != 2 || !views[0].LastViewed.Equal(later) {
		t.Errorf("views[0] = %+v, want p-b x2 last viewed %v", views[0], later)
	}
	if views[1].ProjectID != "p-a" || views[1].ViewCount != 1 {
		t.Errorf("views[1] = %+v, want p-a x1", views[1])
	}
}

func TestRecordProjectView_UnknownUser(t *testing.T) {
	db := newTestDB(t)

	err := db.Analytics().RecordProjectView(context.Background(), "missing", "p", time.Now())
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("RecordProjectView() error = %v, want ErrNotFound", err)
	}
}

func TestAnalytics_EmptyForNewUser(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "fresh")
	ctx := context.Background()

	stats, err := db.Analytics().VisitStats(ctx, user.ID)
	if err != nil {
		t.Fatalf("VisitStats() error = %v", err)
	}
	views, err := db.Analytics().ProjectViews(ctx, user.ID)
	if err != nil {
		t.Fatalf("ProjectViews() error = %v", err)
	}
	if len(stats) != 0 || len(views) != 0 {
		t.Errorf("got %d stats and %d views, want none", len(stats), len(views))
	}
}

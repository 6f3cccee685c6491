package mongo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/model"
	"github.com/sakif/projectshelf/internal/repository"
)

var _ repository.AnalyticsRepository = (*AnalyticsStore)(nil)

// AnalyticsStore reads and writes the arrays embedded in user documents.
type AnalyticsStore struct {
	coll *mongodriver.Collection
}

type visitStatDoc struct {
	Date  time.Time `bson:"date"`
	Count int64     `bson:"count"`
}

type projectViewDoc struct {
	ProjectID  string    `bson:"project_id"`
	ViewCount  int64     `bson:"view_count"`
	LastViewed time.Time `bson:"last_viewed"`
}

// upsertEntry increments an existing array entry, or appends a new one when
// none matches. The append is guarded by a $ne on the same key, so two
// concurrent first writes cannot both push: the loser matches nothing and
// retries the increment.
func (s *AnalyticsStore) upsertEntry(ctx context.Context, userID string, match, notMatch bson.D, inc, push bson.D) error {
	filterInc := append(bson.D{{Key: "_id", Value: userID}}, match...)
	filterPush := append(bson.D{{Key: "_id", Value: userID}}, notMatch...)

	for attempt := 0; attempt < 2; attempt++ {
		res, err := s.coll.UpdateOne(ctx, filterInc, inc)
		if err != nil {
			return err
		}
		if res.MatchedCount > 0 {
			return nil
		}

		res, err = s.coll.UpdateOne(ctx, filterPush, push)
		if err != nil {
			return err
		}
		if res.MatchedCount > 0 {
			return nil
		}
	}
	return apperror.NotFound("user", userID)
}

func (s *AnalyticsStore) RecordVisit(ctx context.Context, userID string, day time.Time) error {
	day = model.StartOfDay(day)

	err := s.upsertEntry(ctx, userID,
		bson.D{{Key: "visit_stats.date", Value: day}},
		bson.D{{Key: "visit_stats.date", Value: bson.D{{Key: "$ne", Value: day}}}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "visit_stats.$.count", Value: 1}}}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "visit_stats", Value: visitStatDoc{Date: day, Count: 1}}}}},
	)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mongo: recording visit for %s: %w", userID, err)
	}
	return nil
}

func (s *AnalyticsStore) RecordProjectView(ctx context.Context, userID, projectID string, at time.Time) error {
	err := s.upsertEntry(ctx, userID,
		bson.D{{Key: "projects_viewed.project_id", Value: projectID}},
		bson.D{{Key: "projects_viewed.project_id", Value: bson.D{{Key: "$ne", Value: projectID}}}},
		bson.D{
			{Key: "$inc", Value: bson.D{{Key: "projects_viewed.$.view_count", Value: 1}}},
			{Key: "$set", Value: bson.D{{Key: "projects_viewed.$.last_viewed", Value: at}}},
		},
		bson.D{{Key: "$push", Value: bson.D{{Key: "projects_viewed", Value: projectViewDoc{
			ProjectID:  projectID,
			ViewCount:  1,
			LastViewed: at,
		}}}}},
	)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mongo: recording project view for %s: %w", userID, err)
	}
	return nil
}

type analyticsDoc struct {
	VisitStats     []visitStatDoc   `bson:"visit_stats"`
	ProjectsViewed []projectViewDoc `bson:"projects_viewed"`
}

func (s *AnalyticsStore) load(ctx context.Context, userID string) (*analyticsDoc, error) {
	var doc analyticsDoc
	err := s.coll.FindOne(ctx,
		bson.D{{Key: "_id", Value: userID}},
		options.FindOne().SetProjection(bson.D{
			{Key: "visit_stats", Value: 1},
			{Key: "projects_viewed", Value: 1},
		}),
	).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, apperror.NotFound("user", userID)
		}
		return nil, fmt.Errorf("mongo: loading analytics for %s: %w", userID, err)
	}
	return &doc, nil
}

func (s *AnalyticsStore) VisitStats(ctx context.Context, userID string) ([]model.VisitStat, error) {
	doc, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := make([]model.VisitStat, 0, len(doc.VisitStats))
	for _, v := range doc.VisitStats {
		stats = append(stats, model.VisitStat{Date: v.Date.Local(), Count: v.Count})
	}
	// Days are pushed as they happen, but a clock change could push out of
	// order.
	slices.SortStableFunc(stats, func(a, b model.VisitStat) int {
		return a.Date.Compare(b.Date)
	})
	return stats, nil
}

func (s *AnalyticsStore) ProjectViews(ctx context.Context, userID string) ([]model.ProjectView, error) {
	doc, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]model.ProjectView, 0, len(doc.ProjectsViewed))
	for _, v := range doc.ProjectsViewed {
		views = append(views, model.ProjectView{
			ProjectID:  v.ProjectID,
			ViewCount:  v.ViewCount,
			LastViewed: v.LastViewed,
		})
	}
	return views, nil
}

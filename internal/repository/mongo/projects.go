package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/model"
	"github.com/sakif/projectshelf/internal/repository"
)

var _ repository.ProjectRepository = (*ProjectStore)(nil)

type ProjectStore struct {
	coll *mongodriver.Collection
}

type projectDoc struct {
	ID           string                 `bson:"_id"`
	UserID       string                 `bson:"user_id"`
	Title        string                 `bson:"title"`
	Slug         string                 `bson:"slug"`
	Overview     string                 `bson:"overview"`
	MediaGallery []model.MediaItem      `bson:"media_gallery"`
	Timeline     []timelineDoc          `bson:"timeline"`
	Tools        []model.Tool           `bson:"tools"`
	Outcomes     model.Outcomes         `bson:"outcomes"`
	Analytics    model.ProjectAnalytics `bson:"analytics"`
	CreatedAt    time.Time              `bson:"created_at"`
	UpdatedAt    time.Time              `bson:"updated_at"`
}

// timelineDoc stores the date as a plain BSON datetime.
type timelineDoc struct {
	Date        *time.Time `bson:"date"`
	Title       string     `bson:"title"`
	Description string     `bson:"description"`
}

func encodeTimeline(entries []model.TimelineEntry) []timelineDoc {
	docs := make([]timelineDoc, 0, len(entries))
	for _, e := range entries {
		d := timelineDoc{Title: e.Title, Description: e.Description}
		if !e.Date.IsZero() {
			t := e.Date.Time
			d.Date = &t
		}
		docs = append(docs, d)
	}
	return docs
}

func decodeTimeline(docs []timelineDoc) []model.TimelineEntry {
	entries := make([]model.TimelineEntry, 0, len(docs))
	for _, d := range docs {
		e := model.TimelineEntry{Title: d.Title, Description: d.Description}
		if d.Date != nil {
			e.Date = model.Date{Time: *d.Date}
		}
		entries = append(entries, e)
	}
	return entries
}

func newProjectDoc(p *model.Project) projectDoc {
	p.Normalize()
	return projectDoc{
		ID:           p.ID,
		UserID:       p.UserID,
		Title:        p.Title,
		Slug:         p.Slug,
		Overview:     p.Overview,
		MediaGallery: p.MediaGallery,
		Timeline:     encodeTimeline(p.Timeline),
		Tools:        p.Tools,
		Outcomes:     p.Outcomes,
		Analytics:    p.Analytics,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (d *projectDoc) toModel() *model.Project {
	p := &model.Project{
		ID:           d.ID,
		UserID:       d.UserID,
		Title:        d.Title,
		Slug:         d.Slug,
		Overview:     d.Overview,
		MediaGallery: d.MediaGallery,
		Timeline:     decodeTimeline(d.Timeline),
		Tools:        d.Tools,
		Outcomes:     d.Outcomes,
		Analytics:    d.Analytics,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	p.Normalize()
	return p
}

func (s *ProjectStore) Create(ctx context.Context, project *model.Project) error {
	project.ID = xid.New().String()
	project.Analytics = model.ProjectAnalytics{}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	if _, err := s.coll.InsertOne(ctx, newProjectDoc(project)); err != nil {
		if field, ok := duplicateKeyField(err); ok {
			return conflictError("project", field)
		}
		return fmt.Errorf("mongo: inserting project: %w", err)
	}
	return nil
}

func (s *ProjectStore) GetByID(ctx context.Context, id string) (*model.Project, error) {
	var doc projectDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, apperror.NotFoundMessage("project not found")
		}
		return nil, fmt.Errorf("mongo: finding project %s: %w", id, err)
	}
	return doc.toModel(), nil
}

func (s *ProjectStore) ListByOwner(ctx context.Context, ownerID string) ([]model.Project, error) {
	cursor, err := s.coll.Find(ctx,
		bson.D{{Key: "user_id", Value: ownerID}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing projects for %s: %w", ownerID, err)
	}

	var docs []projectDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding projects: %w", err)
	}

	projects := make([]model.Project, 0, len(docs))
	for i := range docs {
		projects = append(projects, *docs[i].toModel())
	}
	return projects, nil
}

func (s *ProjectStore) Update(ctx context.Context, project *model.Project) error {
	project.UpdatedAt = time.Now()
	doc := newProjectDoc(project)

	res, err := s.coll.UpdateByID(ctx, project.ID, bson.D{{Key: "$set", Value: bson.D{
		{Key: "title", Value: doc.Title},
		{Key: "slug", Value: doc.Slug},
		{Key: "overview", Value: doc.Overview},
		{Key: "media_gallery", Value: doc.MediaGallery},
		{Key: "timeline", Value: doc.Timeline},
		{Key: "tools", Value: doc.Tools},
		{Key: "outcomes", Value: doc.Outcomes},
		{Key: "updated_at", Value: doc.UpdatedAt},
	}}})
	if err != nil {
		if field, ok := duplicateKeyField(err); ok {
			return conflictError("project", field)
		}
		return fmt.Errorf("mongo: updating project %s: %w", project.ID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFoundMessage("project not found")
	}
	return nil
}

func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("mongo: deleting project %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFoundMessage("project not found")
	}
	return nil
}

func (s *ProjectStore) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	filter := bson.D{
		{Key: "slug", Value: slug},
		{Key: "_id", Value: bson.D{{Key: "$ne", Value: excludeID}}},
	}
	n, err := s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo: checking slug %q: %w", slug, err)
	}
	return n > 0, nil
}

func (s *ProjectStore) IncrementViews(ctx context.Context, id string) (*model.ProjectAnalytics, error) {
	return s.increment(ctx, id, "analytics.views")
}

func (s *ProjectStore) IncrementEngagement(ctx context.Context, id string) (*model.ProjectAnalytics, error) {
	return s.increment(ctx, id, "analytics.engagement")
}

func (s *ProjectStore) increment(ctx context.Context, id, field string) (*model.ProjectAnalytics, error) {
	var doc struct {
		Analytics model.ProjectAnalytics `bson:"analytics"`
	}
	err := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: field, Value: 1}}}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.D{{Key: "analytics", Value: 1}}),
	).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, apperror.NotFoundMessage("project not found")
		}
		return nil, fmt.Errorf("mongo: incrementing %s of project %s: %w", field, id, err)
	}
	return &doc.Analytics, nil
}

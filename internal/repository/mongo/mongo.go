// Package mongo implements the repository interfaces on MongoDB.
//
// DOCUMENT LAYOUT:
// Two collections. "users" holds one document per identity with its visit
// tallies and viewed-project entries embedded as arrays. "projects" holds
// one document per project with gallery, timeline, tools and outcomes
// embedded.
//
// IDs are xid strings stored in _id, the same ids the SQLite backend
// produces, so tokens and URLs look identical across backends.
//
// Every counter change is a single update using $inc (or a guarded $push
// for a new array entry). Nothing is read, changed in Go, and written back.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/sakif/projectshelf/internal/apperror"
)

const (
	usersCollection    = "users"
	projectsCollection = "projects"
)

// Unique index names. Duplicate-key errors mention the index name, which is
// how a conflict is traced back to a field.
const (
	indexUsername = "uniq_username"
	indexEmail    = "uniq_email"
	indexGoogleID = "uniq_google_id"
	indexSlug     = "uniq_slug"
)

// Store owns the client and hands out the per-aggregate stores.
type Store struct {
	client *mongodriver.Client
	db     *mongodriver.Database
}

// Connect dials uri, pings the primary and ensures indexes exist.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongodriver.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Users() *UserStore {
	return &UserStore{coll: s.db.Collection(usersCollection)}
}

func (s *Store) Projects() *ProjectStore {
	return &ProjectStore{coll: s.db.Collection(projectsCollection)}
}

// Analytics shares the users collection: tallies live inside the user
// document.
func (s *Store) Analytics() *AnalyticsStore {
	return &AnalyticsStore{coll: s.db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique and lookup indexes. Creating an index
// that already exists with the same definition is a no-op.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	users := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName(indexUsername).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(indexEmail).SetUnique(true),
		},
		{
			// Sparse: password-only accounts have no google_id field at all.
			Keys:    bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().SetName(indexGoogleID).SetUnique(true).SetSparse(true),
		},
	}
	if _, err := s.db.Collection(usersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("mongo: creating user indexes: %w", err)
	}

	projects := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetName(indexSlug).SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
		},
	}
	if _, err := s.db.Collection(projectsCollection).Indexes().CreateMany(ctx, projects); err != nil {
		return fmt.Errorf("mongo: creating project indexes: %w", err)
	}
	return nil
}

// Drop removes the database. Used by tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

// duplicateKeyField maps a duplicate-key error to the field whose unique
// index rejected the write.
func duplicateKeyField(err error) (string, bool) {
	if !mongodriver.IsDuplicateKeyError(err) {
		return "", false
	}
	msg := err.Error()
	for index, field := range map[string]string{
		indexUsername: "username",
		indexEmail:    "email",
		indexGoogleID: "google_id",
		indexSlug:     "slug",
	} {
		if strings.Contains(msg, index) {
			return field, true
		}
	}
	return "", true
}

func conflictError(resource, field string) *apperror.AppError {
	message := resource + " already exists"
	if field != "" {
		message = fmt.Sprintf("%s with this %s already exists", resource, field)
	}
	return &apperror.AppError{
		Err:     apperror.ErrConflict,
		Message: message,
		Field:   field,
	}
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongodriver.ErrNoDocuments)
}

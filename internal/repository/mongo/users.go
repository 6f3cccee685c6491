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

var _ repository.UserRepository = (*UserStore)(nil)

// UserStore is the users collection seen as an identity store.
type UserStore struct {
	coll *mongodriver.Collection
}

type userDoc struct {
	ID                 string                   `bson:"_id"`
	Username           string                   `bson:"username"`
	Email              string                   `bson:"email"`
	PasswordHash       string                   `bson:"password_hash,omitempty"`
	GoogleID           string                   `bson:"google_id,omitempty"`
	ProfilePicture     string                   `bson:"profile_picture"`
	Bio                string                   `bson:"bio"`
	SocialLinks        model.SocialLinks        `bson:"social_links"`
	SelectedTheme      string                   `bson:"selected_theme"`
	ThemeCustomization model.ThemeCustomization `bson:"theme_customization"`
	LastLogin          time.Time                `bson:"last_login"`
	LoginCount         int64                    `bson:"login_count"`
	VisitStats         []visitStatDoc           `bson:"visit_stats"`
	ProjectsViewed     []projectViewDoc         `bson:"projects_viewed"`
	CreatedAt          time.Time                `bson:"created_at"`
	UpdatedAt          time.Time                `bson:"updated_at"`
}

func newUserDoc(u *model.User) userDoc {
	return userDoc{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		PasswordHash:       u.PasswordHash,
		GoogleID:           u.GoogleID,
		ProfilePicture:     u.ProfilePicture,
		Bio:                u.Bio,
		SocialLinks:        u.SocialLinks,
		SelectedTheme:      u.SelectedTheme,
		ThemeCustomization: u.ThemeCustomization,
		LastLogin:          u.LastLogin,
		LoginCount:         u.LoginCount,
		VisitStats:         []visitStatDoc{},
		ProjectsViewed:     []projectViewDoc{},
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func (d *userDoc) toModel() *model.User {
	return &model.User{
		ID:                 d.ID,
		Username:           d.Username,
		Email:              d.Email,
		PasswordHash:       d.PasswordHash,
		GoogleID:           d.GoogleID,
		ProfilePicture:     d.ProfilePicture,
		Bio:                d.Bio,
		SocialLinks:        d.SocialLinks,
		SelectedTheme:      d.SelectedTheme,
		ThemeCustomization: d.ThemeCustomization,
		LastLogin:          d.LastLogin,
		LoginCount:         d.LoginCount,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

// userProjection leaves the analytics arrays on the server for identity
// lookups.
var userProjection = bson.D{
	{Key: "visit_stats", Value: 0},
	{Key: "projects_viewed", Value: 0},
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	if user.PasswordHash == "" && user.GoogleID == "" {
		return apperror.ValidationFailed("password", "a password or a google account is required")
	}

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

	if _, err := s.coll.InsertOne(ctx, newUserDoc(user)); err != nil {
		if field, ok := duplicateKeyField(err); ok {
			return conflictError("user", field)
		}
		return fmt.Errorf("mongo: inserting user %q: %w", user.Username, err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
	if isNoDocuments(err) {
		return nil, apperror.NotFound("user", id)
	}
	return user, err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.findOne(ctx, bson.D{{Key: "email", Value: email}})
	if isNoDocuments(err) {
		return nil, apperror.NotFoundMessage("user not found")
	}
	return user, err
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.findOne(ctx, bson.D{{Key: "username", Value: username}})
	if isNoDocuments(err) {
		return nil, apperror.NotFoundMessage("user not found")
	}
	return user, err
}

func (s *UserStore) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	user, err := s.findOne(ctx, bson.D{{Key: "google_id", Value: googleID}})
	if isNoDocuments(err) {
		return nil, apperror.NotFoundMessage("user not found")
	}
	return user, err
}

func (s *UserStore) findOne(ctx context.Context, filter bson.D) (*model.User, error) {
	var doc userDoc
	err := s.coll.FindOne(ctx, filter, options.FindOne().SetProjection(userProjection)).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, err
		}
		return nil, fmt.Errorf("mongo: finding user: %w", err)
	}
	return doc.toModel(), nil
}

// Update sets the profile fields. Credentials that are empty are removed
// from the document so the sparse google_id index stays valid.
func (s *UserStore) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()

	set := bson.D{
		{Key: "username", Value: user.Username},
		{Key: "email", Value: user.Email},
		{Key: "profile_picture", Value: user.ProfilePicture},
		{Key: "bio", Value: user.Bio},
		{Key: "social_links", Value: user.SocialLinks},
		{Key: "selected_theme", Value: user.SelectedTheme},
		{Key: "theme_customization", Value: user.ThemeCustomization},
		{Key: "updated_at", Value: user.UpdatedAt},
	}
	unset := bson.D{}
	for _, f := range []struct {
		key, value string
	}{
		{"password_hash", user.PasswordHash},
		{"google_id", user.GoogleID},
	} {
		if f.value != "" {
			set = append(set, bson.E{Key: f.key, Value: f.value})
		} else {
			unset = append(unset, bson.E{Key: f.key, Value: ""})
		}
	}

	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	res, err := s.coll.UpdateByID(ctx, user.ID, update)
	if err != nil {
		if field, ok := duplicateKeyField(err); ok {
			return conflictError("user", field)
		}
		return fmt.Errorf("mongo: updating user %s: %w", user.ID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

func (s *UserStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.coll.UpdateByID(ctx, id, bson.D{
		{Key: "$inc", Value: bson.D{{Key: "login_count", Value: 1}}},
		{Key: "$set", Value: bson.D{{Key: "last_login", Value: at}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: recording login for %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

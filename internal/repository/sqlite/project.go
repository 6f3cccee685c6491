package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/model"
	"github.com/sakif/projectshelf/internal/repository"
)

var _ repository.ProjectRepository = (*ProjectDB)(nil)

// ProjectDB is the projects table. Gallery, timeline, tools and outcomes
// are stored as JSON text; the two counters are plain integer columns.
type ProjectDB struct {
	conn *sql.DB
}

const projectColumns = `id, user_id, title, slug, overview,
	media_gallery, timeline, tools, metrics, testimonials,
	views, engagement, created_at, updated_at`

// projectRow carries the JSON columns in their encoded form.
type projectRow struct {
	gallery, timeline, tools, metrics, testimonials string
}

func encodeProject(p *model.Project) (projectRow, error) {
	p.Normalize()

	var (
		row projectRow
		err error
	)
	if row.gallery, err = encodeJSON(p.MediaGallery); err != nil {
		return row, fmt.Errorf("encoding media gallery: %w", err)
	}
	if row.timeline, err = encodeJSON(p.Timeline); err != nil {
		return row, fmt.Errorf("encoding timeline: %w", err)
	}
	if row.tools, err = encodeJSON(p.Tools); err != nil {
		return row, fmt.Errorf("encoding tools: %w", err)
	}
	if row.metrics, err = encodeJSON(p.Outcomes.Metrics); err != nil {
		return row, fmt.Errorf("encoding metrics: %w", err)
	}
	if row.testimonials, err = encodeJSON(p.Outcomes.Testimonials); err != nil {
		return row, fmt.Errorf("encoding testimonials: %w", err)
	}
	return row, nil
}

// Create inserts a new project. The caller is responsible for setting
// UserID and a unique Slug; counters always start at zero.
func (p *ProjectDB) Create(ctx context.Context, project *model.Project) error {
	project.ID = xid.New().String()
	project.Analytics = model.ProjectAnalytics{}

	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	row, err := encodeProject(project)
	if err != nil {
		return fmt.Errorf("sqlite: creating project: %w", err)
	}

	_, err = p.conn.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		project.ID,
		project.UserID,
		project.Title,
		project.Slug,
		project.Overview,
		row.gallery,
		row.timeline,
		row.tools,
		row.metrics,
		row.testimonials,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			return conflictError("project", column)
		}
		return fmt.Errorf("sqlite: creating project: %w", err)
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(s rowScanner) (*model.Project, error) {
	var (
		project model.Project
		row     projectRow
	)
	err := s.Scan(
		&project.ID,
		&project.UserID,
		&project.Title,
		&project.Slug,
		&project.Overview,
		&row.gallery,
		&row.timeline,
		&row.tools,
		&row.metrics,
		&row.testimonials,
		&project.Analytics.Views,
		&project.Analytics.Engagement,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	decoders := []struct {
		column string
		raw    string
		into   any
	}{
		{"media_gallery", row.gallery, &project.MediaGallery},
		{"timeline", row.timeline, &project.Timeline},
		{"tools", row.tools, &project.Tools},
		{"metrics", row.metrics, &project.Outcomes.Metrics},
		{"testimonials", row.testimonials, &project.Outcomes.Testimonials},
	}
	for _, d := range decoders {
		if err := decodeJSON(d.raw, d.into); err != nil {
			return nil, fmt.Errorf("decoding %s of project %s: %w", d.column, project.ID, err)
		}
	}

	project.Normalize()
	return &project, nil
}

func (p *ProjectDB) GetByID(ctx context.Context, id string) (*model.Project, error) {
	row := p.conn.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`,
		id,
	)

	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundMessage("project not found")
		}
		return nil, fmt.Errorf("sqlite: getting project %s: %w", id, err)
	}
	return project, nil
}

// ListByOwner returns the owner's projects in creation order.
func (p *ProjectDB) ListByOwner(ctx context.Context, ownerID string) ([]model.Project, error) {
	rows, err := p.conn.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects
		 WHERE user_id = ?
		 ORDER BY created_at ASC, rowid ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing projects for %s: %w", ownerID, err)
	}
	defer rows.Close()

	projects := make([]model.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning project row: %w", err)
		}
		projects = append(projects, *project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating projects: %w", err)
	}

	return projects, nil
}

// Update replaces the content fields. Owner, counters and created_at are
// never written here.
func (p *ProjectDB) Update(ctx context.Context, project *model.Project) error {
	project.UpdatedAt = time.Now()

	row, err := encodeProject(project)
	if err != nil {
		return fmt.Errorf("sqlite: updating project %s: %w", project.ID, err)
	}

	result, err := p.conn.ExecContext(ctx,
		`UPDATE projects SET
			title = ?, slug = ?, overview = ?,
			media_gallery = ?, timeline = ?, tools = ?, metrics = ?, testimonials = ?,
			updated_at = ?
		 WHERE id = ?`,
		project.Title,
		project.Slug,
		project.Overview,
		row.gallery,
		row.timeline,
		row.tools,
		row.metrics,
		row.testimonials,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			return conflictError("project", column)
		}
		return fmt.Errorf("sqlite: updating project %s: %w", project.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFoundMessage("project not found")
	}

	return nil
}

func (p *ProjectDB) Delete(ctx context.Context, id string) error {
	result, err := p.conn.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting project %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFoundMessage("project not found")
	}

	return nil
}

func (p *ProjectDB) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	var exists bool
	err := p.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM projects WHERE slug = ? AND id <> ?)`,
		slug, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking slug %q: %w", slug, err)
	}
	return exists, nil
}

func (p *ProjectDB) IncrementViews(ctx context.Context, id string) (*model.ProjectAnalytics, error) {
	return p.increment(ctx, id, "views")
}

func (p *ProjectDB) IncrementEngagement(ctx context.Context, id string) (*model.ProjectAnalytics, error) {
	return p.increment(ctx, id, "engagement")
}

// increment bumps one counter in a single statement and returns both
// counters as they are after the write. column is "views" or "engagement".
func (p *ProjectDB) increment(ctx context.Context, id, column string) (*model.ProjectAnalytics, error) {
	var analytics model.ProjectAnalytics
	err := p.conn.QueryRowContext(ctx,
		`UPDATE projects SET `+column+` = `+column+` + 1
		 WHERE id = ?
		 RETURNING views, engagement`,
		id,
	).Scan(&analytics.Views, &analytics.Engagement)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFoundMessage("project not found")
		}
		return nil, fmt.Errorf("sqlite: incrementing %s of project %s: %w", column, id, err)
	}
	return &analytics, nil
}

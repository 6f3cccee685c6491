package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/model"
	"github.com/sakif/projectshelf/internal/repository"
)

var _ repository.AnalyticsRepository = (*AnalyticsDB)(nil)

// AnalyticsDB holds the per-user visit tallies (one row per user and day)
// and viewed-project entries (one row per user and project).
type AnalyticsDB struct {
	conn *sql.DB
}

// dayLayout is how a calendar day is keyed. The day is always taken from
// local time so that the key matches model.StartOfDay.
const dayLayout = "2006-01-02"

func (a *AnalyticsDB) RecordVisit(ctx context.Context, userID string, day time.Time) error {
	key := model.StartOfDay(day).Format(dayLayout)

	_, err := a.conn.ExecContext(ctx,
		`INSERT INTO user_visits (user_id, day, visits) VALUES (?, ?, 1)
		 ON CONFLICT (user_id, day) DO UPDATE SET visits = visits + 1`,
		userID, key,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", userID)
		}
		return fmt.Errorf("sqlite: recording visit for %s: %w", userID, err)
	}
	return nil
}

func (a *AnalyticsDB) RecordProjectView(ctx context.Context, userID, projectID string, at time.Time) error {
	_, err := a.conn.ExecContext(ctx,
		`INSERT INTO user_project_views (user_id, project_id, view_count, last_viewed)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (user_id, project_id) DO UPDATE SET
			view_count = view_count + 1,
			last_viewed = excluded.last_viewed`,
		userID, projectID, at,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", userID)
		}
		return fmt.Errorf("sqlite: recording project view for %s: %w", userID, err)
	}
	return nil
}

func (a *AnalyticsDB) VisitStats(ctx context.Context, userID string) ([]model.VisitStat, error) {
	rows, err := a.conn.QueryContext(ctx,
		`SELECT day, visits FROM user_visits WHERE user_id = ? ORDER BY day ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing visits for %s: %w", userID, err)
	}
	defer rows.Close()

	stats := make([]model.VisitStat, 0)
	for rows.Next() {
		var (
			key  string
			stat model.VisitStat
		)
		if err := rows.Scan(&key, &stat.Count); err != nil {
			return nil, fmt.Errorf("sqlite: scanning visit row: %w", err)
		}
		stat.Date, err = time.ParseInLocation(dayLayout, key, time.Local)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parsing visit day %q: %w", key, err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating visits: %w", err)
	}
	return stats, nil
}

func (a *AnalyticsDB) ProjectViews(ctx context.Context, userID string) ([]model.ProjectView, error) {
	rows, err := a.conn.QueryContext(ctx,
		`SELECT project_id, view_count, last_viewed
		 FROM user_project_views
		 WHERE user_id = ?
		 ORDER BY seq ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing project views for %s: %w", userID, err)
	}
	defer rows.Close()

	views := make([]model.ProjectView, 0)
	for rows.Next() {
		var v model.ProjectView
		if err := rows.Scan(&v.ProjectID, &v.ViewCount, &v.LastViewed); err != nil {
			return nil, fmt.Errorf("sqlite: scanning project view row: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating project views: %w", err)
	}
	return views, nil
}

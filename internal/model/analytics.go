package model

import "time"

// VisitStat is one calendar day's visit tally for a user.
// Date is always local midnight of that day.
type VisitStat struct {
	Date  time.Time `json:"date"`
	Count int64     `json:"count"`
}

// ProjectView tracks how often a user has viewed a given project.
type ProjectView struct {
	ProjectID    string    `json:"projectId"`
	ProjectTitle string    `json:"projectTitle,omitempty"`
	ViewCount    int64     `json:"viewCount"`
	LastViewed   time.Time `json:"lastViewed"`
}

// StartOfDay returns local midnight of the calendar day containing t.
func StartOfDay(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

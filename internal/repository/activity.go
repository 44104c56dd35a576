package repository

import (
	"context"
	"fmt"
	"time"
)

const recordUserActivity = `
INSERT INTO user_activity (user_id, event_type, metadata, created_at)
VALUES ($1, $2, $3, $4)
`

type RecordUserActivityParams struct {
	UserID    string
	EventType string
	Metadata  []byte
	CreatedAt time.Time
}

// RecordUserActivity appends one row to the append-only user activity log.
// There is deliberately no uniqueness constraint here.
func (q *Queries) RecordUserActivity(ctx context.Context, arg RecordUserActivityParams) error {
	_, err := q.db.Exec(ctx, recordUserActivity,
		arg.UserID, arg.EventType, arg.Metadata, arg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record user activity: %w", err)
	}
	return nil
}

const cohortUserIDs = `
SELECT DISTINCT user_id FROM user_activity
WHERE event_type = 'registration' AND created_at >= $1 AND created_at < $2
`

// CohortUserIDs returns the users who registered inside the window.
func (q *Queries) CohortUserIDs(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := q.db.Query(ctx, cohortUserIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list cohort users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const activeUserIDs = `
SELECT DISTINCT user_id FROM user_activity
WHERE event_type IN ('login', 'activity') AND created_at >= $1 AND created_at < $2
`

// ActiveUserIDs returns users with a login or activity record in the window.
func (q *Queries) ActiveUserIDs(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := q.db.Query(ctx, activeUserIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

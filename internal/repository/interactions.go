package repository

import (
	"context"
	"fmt"
	"time"
)

const recordInteraction = `
INSERT INTO user_interactions (user_id, entity_id, entity_type, artist_id, event_type, region, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, entity_id, entity_type) WHERE event_type = 'like' DO NOTHING
`

type RecordInteractionParams struct {
	UserID     string
	EntityID   string
	EntityType string
	ArtistID   string
	EventType  string
	Region     *string
	CreatedAt  time.Time
}

// RecordInteraction appends one like/share record. A user may like a given
// entity at most once; the partial unique index turns duplicate likes into a
// silent no-op instead of an error. Shares are recorded unconditionally.
func (q *Queries) RecordInteraction(ctx context.Context, arg RecordInteractionParams) (bool, error) {
	tag, err := q.db.Exec(ctx, recordInteraction,
		arg.UserID, arg.EntityID, arg.EntityType, arg.ArtistID, arg.EventType, arg.Region, arg.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to record interaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const listInteractionsByArtist = `
SELECT id, user_id, entity_id, entity_type, artist_id, event_type, region, created_at
FROM user_interactions
WHERE artist_id = $1 AND created_at >= $2
ORDER BY created_at
`

type ListInteractionsByArtistParams struct {
	ArtistID string
	Since    time.Time
}

func (q *Queries) ListInteractionsByArtist(ctx context.Context, arg ListInteractionsByArtistParams) ([]UserInteraction, error) {
	rows, err := q.db.Query(ctx, listInteractionsByArtist, arg.ArtistID, arg.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var interactions []UserInteraction
	for rows.Next() {
		var i UserInteraction
		if err := rows.Scan(&i.ID, &i.UserID, &i.EntityID, &i.EntityType, &i.ArtistID,
			&i.EventType, &i.Region, &i.CreatedAt); err != nil {
			return nil, err
		}
		interactions = append(interactions, i)
	}
	return interactions, rows.Err()
}

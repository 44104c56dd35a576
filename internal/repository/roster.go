package repository

import (
	"context"
	"fmt"
	"time"
)

const artistExists = `SELECT EXISTS(SELECT 1 FROM artists WHERE id = $1)`

func (q *Queries) ArtistExists(ctx context.Context, artistID string) (bool, error) {
	var exists bool
	if err := q.db.QueryRow(ctx, artistExists, artistID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check artist %q: %w", artistID, err)
	}
	return exists, nil
}

const addListener = `
INSERT INTO artist_listeners (artist_id, user_id, listen_day, listened_at, region)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (artist_id, user_id, listen_day) DO NOTHING
`

type AddListenerParams struct {
	ArtistID   string
	UserID     string
	ListenDay  time.Time
	ListenedAt time.Time
	Region     *string
}

// AddListener appends one sliding-log entry for an artist. The unique index on
// (artist_id, user_id, listen_day) makes repeated listens within the same
// calendar day a silent no-op, so concurrent delivery of the same event cannot
// double count. Returns whether a row was actually inserted.
func (q *Queries) AddListener(ctx context.Context, arg AddListenerParams) (bool, error) {
	tag, err := q.db.Exec(ctx, addListener,
		arg.ArtistID, arg.UserID, arg.ListenDay, arg.ListenedAt, arg.Region)
	if err != nil {
		return false, fmt.Errorf("failed to add listener: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const pruneListeners = `
DELETE FROM artist_listeners WHERE artist_id = $1 AND listened_at < $2
`

// PruneListeners drops listener entries older than the cutoff so the sliding
// log stays bounded. Idempotent; safe to call after every insert.
func (q *Queries) PruneListeners(ctx context.Context, artistID string, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, pruneListeners, artistID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune listeners: %w", err)
	}
	return tag.RowsAffected(), nil
}

const addFollower = `
INSERT INTO artist_followers (artist_id, user_id, followed_at, region)
VALUES ($1, $2, $3, $4)
ON CONFLICT (artist_id, user_id) DO NOTHING
`

type AddFollowerParams struct {
	ArtistID   string
	UserID     string
	FollowedAt time.Time
	Region     *string
}

// AddFollower adds a user to an artist's follower set. Following twice is a
// no-op enforced by the primary key.
func (q *Queries) AddFollower(ctx context.Context, arg AddFollowerParams) (bool, error) {
	tag, err := q.db.Exec(ctx, addFollower,
		arg.ArtistID, arg.UserID, arg.FollowedAt, arg.Region)
	if err != nil {
		return false, fmt.Errorf("failed to add follower: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const removeFollower = `
DELETE FROM artist_followers WHERE artist_id = $1 AND user_id = $2
`

// RemoveFollower removes the matching follower entry if present.
func (q *Queries) RemoveFollower(ctx context.Context, artistID, userID string) (bool, error) {
	tag, err := q.db.Exec(ctx, removeFollower, artistID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove follower: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const listArtistListenersBetween = `
SELECT artist_id, user_id, listen_day, listened_at, region
FROM artist_listeners
WHERE artist_id = $1 AND listened_at >= $2 AND listened_at < $3
ORDER BY listened_at
`

type ListArtistListenersBetweenParams struct {
	ArtistID string
	From     time.Time
	To       time.Time
}

func (q *Queries) ListArtistListenersBetween(ctx context.Context, arg ListArtistListenersBetweenParams) ([]ListenerEntry, error) {
	rows, err := q.db.Query(ctx, listArtistListenersBetween, arg.ArtistID, arg.From, arg.To)
	if err != nil {
		return nil, fmt.Errorf("failed to list artist listeners: %w", err)
	}
	defer rows.Close()

	var entries []ListenerEntry
	for rows.Next() {
		var e ListenerEntry
		if err := rows.Scan(&e.ArtistID, &e.UserID, &e.ListenDay, &e.ListenedAt, &e.Region); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const listListenersSince = `
SELECT artist_id, user_id, listen_day, listened_at, region
FROM artist_listeners
WHERE listened_at >= $1
ORDER BY artist_id, listened_at
`

// ListListenersSince returns the listener log across all artists, used by the
// top-N ranking.
func (q *Queries) ListListenersSince(ctx context.Context, since time.Time) ([]ListenerEntry, error) {
	rows, err := q.db.Query(ctx, listListenersSince, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list listeners: %w", err)
	}
	defer rows.Close()

	var entries []ListenerEntry
	for rows.Next() {
		var e ListenerEntry
		if err := rows.Scan(&e.ArtistID, &e.UserID, &e.ListenDay, &e.ListenedAt, &e.Region); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const listArtistFollowers = `
SELECT artist_id, user_id, followed_at, region
FROM artist_followers
WHERE artist_id = $1
ORDER BY followed_at
`

func (q *Queries) ListArtistFollowers(ctx context.Context, artistID string) ([]FollowerEntry, error) {
	rows, err := q.db.Query(ctx, listArtistFollowers, artistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	defer rows.Close()

	var entries []FollowerEntry
	for rows.Next() {
		var e FollowerEntry
		if err := rows.Scan(&e.ArtistID, &e.UserID, &e.FollowedAt, &e.Region); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const countArtistFollowers = `SELECT COUNT(*) FROM artist_followers WHERE artist_id = $1`

func (q *Queries) CountArtistFollowers(ctx context.Context, artistID string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countArtistFollowers, artistID).Scan(&count)
	return count, err
}

const listArtistFollowersPage = `
SELECT artist_id, user_id, followed_at, region
FROM artist_followers
WHERE artist_id = $1
ORDER BY followed_at
LIMIT $2 OFFSET $3
`

type ListArtistFollowersPageParams struct {
	ArtistID string
	Limit    int32
	Offset   int32
}

func (q *Queries) ListArtistFollowersPage(ctx context.Context, arg ListArtistFollowersPageParams) ([]FollowerEntry, error) {
	rows, err := q.db.Query(ctx, listArtistFollowersPage, arg.ArtistID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers page: %w", err)
	}
	defer rows.Close()

	var entries []FollowerEntry
	for rows.Next() {
		var e FollowerEntry
		if err := rows.Scan(&e.ArtistID, &e.UserID, &e.FollowedAt, &e.Region); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

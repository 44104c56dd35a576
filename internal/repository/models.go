package repository

import "time"

// ListenerWindow is the sliding window over which listener entries count
// towards monthly metrics and past which they are pruned.
const ListenerWindow = 30 * 24 * time.Hour

// SongCounter is the persisted counter aggregate for one song.
type SongCounter struct {
	SongID   string `json:"song_id"`
	ArtistID string `json:"artist_id"`
	Plays    int64  `json:"plays"`
	Likes    int64  `json:"likes"`
	Shares   int64  `json:"shares"`
}

// AlbumCounter is the persisted counter aggregate for one album.
type AlbumCounter struct {
	AlbumID  string `json:"album_id"`
	ArtistID string `json:"artist_id"`
	Plays    int64  `json:"plays"`
	Likes    int64  `json:"likes"`
	Shares   int64  `json:"shares"`
}

// ListenerEntry is one row of an artist's sliding listener log. At most one
// entry exists per (artist, user, UTC calendar day). Region is nil when the
// event carried no region and enrichment failed or was skipped.
type ListenerEntry struct {
	ArtistID   string    `json:"artist_id"`
	UserID     string    `json:"user_id"`
	ListenDay  time.Time `json:"listen_day"`
	ListenedAt time.Time `json:"listened_at"`
	Region     *string   `json:"region"`
}

// FollowerEntry is one row of an artist's follower set, keyed by user.
type FollowerEntry struct {
	ArtistID   string    `json:"artist_id"`
	UserID     string    `json:"user_id"`
	FollowedAt time.Time `json:"followed_at"`
	Region     *string   `json:"region"`
}

// UserInteraction is one like/share record. Likes are unique per
// (user, entity, entity type); shares are not.
type UserInteraction struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	EntityID   string    `json:"entity_id"`
	EntityType string    `json:"entity_type"`
	ArtistID   string    `json:"artist_id"`
	EventType  string    `json:"event_type"`
	Region     *string   `json:"region"`
	CreatedAt  time.Time `json:"created_at"`
}

// ActivityRecord is one immutable row of the user activity log.
type ActivityRecord struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	EventType string    `json:"event_type"`
	Metadata  []byte    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

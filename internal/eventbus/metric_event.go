package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Routing keys follow metrics.<domain>.<kind>. Queue bindings use
// metrics.<domain>.* so every kind published for a domain lands on that
// domain's queue.
const (
	DomainSong   = "song"
	DomainAlbum  = "album"
	DomainArtist = "artist"
	DomainUser   = "user"

	TopicPrefix = "metrics"
)

type EventKind string

const (
	KindPlay     EventKind = "play"
	KindLike     EventKind = "like"
	KindShare    EventKind = "share"
	KindListener EventKind = "listener"
	KindFollow   EventKind = "follow"
	KindUnfollow EventKind = "unfollow"

	KindRegistration EventKind = "registration"
	KindLogin        EventKind = "login"
	KindActivity     EventKind = "activity"
)

var ErrInvalidEnvelope = errors.New("invalid event envelope")

// Envelope is the wire format shared by every metric event. Which id fields
// are required depends on the domain encoded in the routing key; decoding into
// one of the typed events below validates them.
type Envelope struct {
	SongID    string            `json:"song_id,omitempty"`
	AlbumID   string            `json:"album_id,omitempty"`
	ArtistID  string            `json:"artist_id,omitempty"`
	UserID    string            `json:"user_id"`
	Event     string            `json:"event,omitempty"`
	Timestamp time.Time         `json:"timestamp,omitzero"`
	Region    string            `json:"region,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// Topic builds the routing key for a domain and event kind.
func Topic(domain string, kind EventKind) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, kind)
}

// SplitTopic breaks a routing key into its domain and kind segments.
func SplitTopic(routingKey string) (domain string, kind EventKind, err error) {
	parts := strings.Split(routingKey, ".")
	if len(parts) != 3 || parts[0] != TopicPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("%w: unexpected routing key %q", ErrInvalidEnvelope, routingKey)
	}
	return parts[1], EventKind(parts[2]), nil
}

// SongEvent is a decoded interaction with a single song.
type SongEvent struct {
	SongID    string
	ArtistID  string
	ActorID   string
	Kind      EventKind
	Timestamp time.Time
	Region    string
}

// AlbumEvent is a decoded interaction with a single album.
type AlbumEvent struct {
	AlbumID   string
	ArtistID  string
	ActorID   string
	Kind      EventKind
	Timestamp time.Time
	Region    string
}

// ArtistEvent is a decoded roster mutation for a single artist.
type ArtistEvent struct {
	ArtistID  string
	ActorID   string
	Kind      EventKind
	Timestamp time.Time
	Region    string
}

// UserEvent is a decoded entry for the append-only user activity log.
type UserEvent struct {
	UserID    string
	Kind      EventKind
	Timestamp time.Time
	Metadata  map[string]string
}

func decodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	return &env, nil
}

// DecodeSongEvent validates and decodes a song-domain envelope. The event kind
// is taken from the routing key; an unrecognized kind is not an error here,
// handlers treat it as a no-op.
func DecodeSongEvent(kind EventKind, body []byte) (*SongEvent, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if env.SongID == "" {
		return nil, fmt.Errorf("%w: missing song_id", ErrInvalidEnvelope)
	}
	if env.UserID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidEnvelope)
	}
	return &SongEvent{
		SongID:    env.SongID,
		ArtistID:  env.ArtistID,
		ActorID:   env.UserID,
		Kind:      kind,
		Timestamp: env.Timestamp,
		Region:    env.Region,
	}, nil
}

// DecodeAlbumEvent validates and decodes an album-domain envelope.
func DecodeAlbumEvent(kind EventKind, body []byte) (*AlbumEvent, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if env.AlbumID == "" {
		return nil, fmt.Errorf("%w: missing album_id", ErrInvalidEnvelope)
	}
	if env.UserID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidEnvelope)
	}
	return &AlbumEvent{
		AlbumID:   env.AlbumID,
		ArtistID:  env.ArtistID,
		ActorID:   env.UserID,
		Kind:      kind,
		Timestamp: env.Timestamp,
		Region:    env.Region,
	}, nil
}

// DecodeArtistEvent validates and decodes an artist-domain envelope.
func DecodeArtistEvent(kind EventKind, body []byte) (*ArtistEvent, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if env.ArtistID == "" {
		return nil, fmt.Errorf("%w: missing artist_id", ErrInvalidEnvelope)
	}
	if env.UserID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidEnvelope)
	}
	return &ArtistEvent{
		ArtistID:  env.ArtistID,
		ActorID:   env.UserID,
		Kind:      kind,
		Timestamp: env.Timestamp,
		Region:    env.Region,
	}, nil
}

// DecodeUserEvent validates and decodes a user-domain envelope. Metadata
// defaults to an empty map so consumers can store it without nil checks.
func DecodeUserEvent(kind EventKind, body []byte) (*UserEvent, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if env.UserID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidEnvelope)
	}
	metadata := env.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	// Song play fan-out carries the played entity in dedicated fields;
	// fold them into the activity metadata so the log keeps them.
	if env.SongID != "" {
		metadata["song_id"] = env.SongID
	}
	if env.ArtistID != "" {
		metadata["artist_id"] = env.ArtistID
	}
	return &UserEvent{
		UserID:    env.UserID,
		Kind:      kind,
		Timestamp: env.Timestamp,
		Metadata:  metadata,
	}, nil
}

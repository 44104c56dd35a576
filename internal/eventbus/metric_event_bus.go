// Documentation for the metric eventbus
//
// OVERVIEW:
// The MetricEventBus provides a type-safe publishing API for music interaction
// events. It leverages RabbitMQ as the underlying message broker with a topic
// exchange so that each event lands on the queue of the domain it belongs to.
//
// EXCHANGE TYPE: Topic
// Every event is published under a dot-delimited routing key of the form
// metrics.<domain>.<kind> (for example metrics.song.play or
// metrics.artist.follow). Consumers bind durable queues with wildcard
// patterns (metrics.song.*, metrics.artist.*, ...) and receive every kind
// published for their domain without the publisher knowing about them.
//
// EVENT TYPES:
// - metrics.song.{play,like,share}
// - metrics.album.{like,share}
// - metrics.artist.{listener,follow,unfollow}
// - metrics.user.{registration,login,activity,play}
//
// The artist.listener and user.play events are usually derived: a song play
// fans out into both so that the artist roster and the user activity log see
// the same interaction. Derived publication is best effort and its failure is
// never propagated to the mutation that triggered it.
//
// MESSAGE DELIVERY:
// Messages are persistent and the exchange is durable, so published events
// survive a broker restart. Delivery is at-least-once; consumers are written
// to be idempotent where the domain requires it.

package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// MetricEventBus provides a type-safe API for publishing metric events.
type MetricEventBus struct {
	bus    EventBus
	logger *slog.Logger
}

// NewMetricEventBus wraps an already connected EventBus. The broker client is
// injected so its lifecycle stays owned by the caller.
func NewMetricEventBus(bus EventBus, logger *slog.Logger) *MetricEventBus {
	return &MetricEventBus{bus: bus, logger: logger}
}

func (b *MetricEventBus) publish(ctx context.Context, domain string, kind EventKind, env Envelope) error {
	env.Event = string(kind)
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	if env.RequestID == "" {
		env.RequestID = GenerateRequestID()
	}

	routingKey := Topic(domain, kind)
	b.logger.Info("Publishing metric event",
		slog.String("routing_key", routingKey),
		slog.String("user_id", env.UserID),
		slog.String("request_id", env.RequestID),
	)

	if err := b.bus.Publish(ctx, routingKey, env); err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

// PublishSongPlay publishes a song play event to the event bus
func (b *MetricEventBus) PublishSongPlay(ctx context.Context, songID, artistID, userID, region string) error {
	return b.publish(ctx, DomainSong, KindPlay, Envelope{SongID: songID, ArtistID: artistID, UserID: userID, Region: region})
}

// PublishSongLike publishes a song like event to the event bus
func (b *MetricEventBus) PublishSongLike(ctx context.Context, songID, artistID, userID, region string) error {
	return b.publish(ctx, DomainSong, KindLike, Envelope{SongID: songID, ArtistID: artistID, UserID: userID, Region: region})
}

// PublishSongShare publishes a song share event to the event bus
func (b *MetricEventBus) PublishSongShare(ctx context.Context, songID, artistID, userID, region string) error {
	return b.publish(ctx, DomainSong, KindShare, Envelope{SongID: songID, ArtistID: artistID, UserID: userID, Region: region})
}

// PublishAlbumLike publishes an album like event to the event bus
func (b *MetricEventBus) PublishAlbumLike(ctx context.Context, albumID, artistID, userID, region string) error {
	return b.publish(ctx, DomainAlbum, KindLike, Envelope{AlbumID: albumID, ArtistID: artistID, UserID: userID, Region: region})
}

// PublishAlbumShare publishes an album share event to the event bus
func (b *MetricEventBus) PublishAlbumShare(ctx context.Context, albumID, artistID, userID, region string) error {
	return b.publish(ctx, DomainAlbum, KindShare, Envelope{AlbumID: albumID, ArtistID: artistID, UserID: userID, Region: region})
}

// PublishArtistListener publishes a derived artist listener event, typically
// fanned out from a song play.
func (b *MetricEventBus) PublishArtistListener(ctx context.Context, artistID, userID, region string) error {
	return b.publish(ctx, DomainArtist, KindListener, Envelope{ArtistID: artistID, UserID: userID, Region: region})
}

// PublishArtistFollow publishes an artist follow event to the event bus
func (b *MetricEventBus) PublishArtistFollow(ctx context.Context, artistID, userID, region string) error {
	return b.publish(ctx, DomainArtist, KindFollow, Envelope{ArtistID: artistID, UserID: userID, Region: region})
}

// PublishArtistUnfollow publishes an artist unfollow event to the event bus
func (b *MetricEventBus) PublishArtistUnfollow(ctx context.Context, artistID, userID string) error {
	return b.publish(ctx, DomainArtist, KindUnfollow, Envelope{ArtistID: artistID, UserID: userID})
}

// PublishUserRegistration publishes a user registration event to the event bus
func (b *MetricEventBus) PublishUserRegistration(ctx context.Context, userID string, metadata map[string]string) error {
	return b.publish(ctx, DomainUser, KindRegistration, Envelope{UserID: userID, Metadata: metadata})
}

// PublishUserLogin publishes a user login event to the event bus
func (b *MetricEventBus) PublishUserLogin(ctx context.Context, userID string, metadata map[string]string) error {
	return b.publish(ctx, DomainUser, KindLogin, Envelope{UserID: userID, Metadata: metadata})
}

// PublishUserActivity publishes a generic user activity event to the event bus
func (b *MetricEventBus) PublishUserActivity(ctx context.Context, userID string, metadata map[string]string) error {
	return b.publish(ctx, DomainUser, KindActivity, Envelope{UserID: userID, Metadata: metadata})
}

// PublishUserPlay publishes a derived user play event, fanned out from a song
// play so the user activity log records what was listened to.
func (b *MetricEventBus) PublishUserPlay(ctx context.Context, userID, songID, artistID string) error {
	return b.publish(ctx, DomainUser, KindPlay, Envelope{UserID: userID, SongID: songID, ArtistID: artistID})
}

// GenerateRequestID generates a unique request ID for event tracking
func GenerateRequestID() string {
	return uuid.New().String()
}

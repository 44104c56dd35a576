package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chordline-io/cadenza/internal/eventbus"
	"github.com/chordline-io/cadenza/internal/repository"
)

// AlbumStore is the slice of the repository the album handler mutates.
type AlbumStore interface {
	IncrementAlbumCounter(ctx context.Context, albumID string, field string) (bool, error)
	AlbumArtistID(ctx context.Context, albumID string) (string, error)
	RecordInteraction(ctx context.Context, arg repository.RecordInteractionParams) (bool, error)
}

type AlbumHandler struct {
	Logger  *slog.Logger
	Store   AlbumStore
	Regions RegionResolver
}

func (h *AlbumHandler) Domain() string { return eventbus.DomainAlbum }

// Handle applies one album event. Albums only receive likes and shares.
// Like the song path, counters require a pre-existing album; events against
// unknown albums are acknowledged and skipped rather than auto-creating an
// aggregate.
func (h *AlbumHandler) Handle(ctx context.Context, routingKey string, body []byte) error {
	_, kind, err := eventbus.SplitTopic(routingKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ev, err := eventbus.DecodeAlbumEvent(kind, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch ev.Kind {
	case eventbus.KindLike, eventbus.KindShare:
	default:
		h.Logger.Warn("Ignoring unknown album event kind",
			slog.String("kind", string(ev.Kind)),
			slog.String("album_id", ev.AlbumID),
		)
		return nil
	}

	updated, err := h.Store.IncrementAlbumCounter(ctx, ev.AlbumID, string(ev.Kind)+"s")
	if err != nil {
		return Transient(err)
	}
	if !updated {
		h.Logger.Info("Skipping interaction for unknown album",
			slog.String("album_id", ev.AlbumID),
			slog.String("kind", string(ev.Kind)),
		)
		return nil
	}

	region := ev.Region
	if region == "" {
		region = h.Regions.Resolve(ctx, ev.ActorID)
	}

	artistID := ev.ArtistID
	if artistID == "" {
		artistID, err = h.Store.AlbumArtistID(ctx, ev.AlbumID)
		if err != nil {
			h.Logger.Warn("Failed to resolve artist for album",
				slog.String("album_id", ev.AlbumID),
				slog.Any("error", err),
			)
			artistID = ""
		}
	}

	inserted, err := h.Store.RecordInteraction(ctx, repository.RecordInteractionParams{
		UserID:     ev.ActorID,
		EntityID:   ev.AlbumID,
		EntityType: "album",
		ArtistID:   artistID,
		EventType:  string(ev.Kind),
		Region:     &region,
		CreatedAt:  ev.Timestamp,
	})
	if err != nil {
		h.Logger.Error("Failed to record album interaction",
			slog.String("album_id", ev.AlbumID),
			slog.Any("error", err),
		)
		return nil
	}
	if !inserted {
		h.Logger.Info("Duplicate like ignored",
			slog.String("album_id", ev.AlbumID),
			slog.String("user_id", ev.ActorID),
		)
	}
	return nil
}

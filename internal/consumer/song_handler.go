package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chordline-io/cadenza/internal/eventbus"
	"github.com/chordline-io/cadenza/internal/repository"
)

// SongStore is the slice of the repository the song handler mutates.
type SongStore interface {
	IncrementSongCounter(ctx context.Context, songID string, field string) (bool, error)
	SongArtistID(ctx context.Context, songID string) (string, error)
	RecordInteraction(ctx context.Context, arg repository.RecordInteractionParams) (bool, error)
}

type SongHandler struct {
	Logger  *slog.Logger
	Store   SongStore
	Regions RegionResolver
	Bus     DerivedPublisher
}

func (h *SongHandler) Domain() string { return eventbus.DomainSong }

// Handle applies one song event. Plays bump the counter and fan out into a
// derived artist listener event and a user play event; likes and shares bump
// the counter and append an interaction record. Events for songs that were
// never created are acknowledged and skipped. Unknown kinds are inert.
func (h *SongHandler) Handle(ctx context.Context, routingKey string, body []byte) error {
	_, kind, err := eventbus.SplitTopic(routingKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ev, err := eventbus.DecodeSongEvent(kind, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch ev.Kind {
	case eventbus.KindPlay:
		return h.handlePlay(ctx, ev)
	case eventbus.KindLike, eventbus.KindShare:
		return h.handleInteraction(ctx, ev)
	default:
		h.Logger.Warn("Ignoring unknown song event kind",
			slog.String("kind", string(ev.Kind)),
			slog.String("song_id", ev.SongID),
		)
		return nil
	}
}

func (h *SongHandler) handlePlay(ctx context.Context, ev *eventbus.SongEvent) error {
	updated, err := h.Store.IncrementSongCounter(ctx, ev.SongID, "plays")
	if err != nil {
		return Transient(err)
	}
	if !updated {
		h.Logger.Info("Skipping play for unknown song", slog.String("song_id", ev.SongID))
		return nil
	}

	region := ev.Region
	if region == "" {
		region = h.Regions.Resolve(ctx, ev.ActorID)
	}
	artistID := h.resolveArtist(ctx, ev)

	// Fan-out is best effort: the play is already committed, so a failed
	// derived publish is logged and swallowed.
	if artistID != "" {
		if err := h.Bus.PublishArtistListener(ctx, artistID, ev.ActorID, region); err != nil {
			h.Logger.Error("Failed to publish derived artist listener event",
				slog.String("artist_id", artistID),
				slog.Any("error", err),
			)
		}
	}
	if err := h.Bus.PublishUserPlay(ctx, ev.ActorID, ev.SongID, artistID); err != nil {
		h.Logger.Error("Failed to publish derived user play event",
			slog.String("user_id", ev.ActorID),
			slog.Any("error", err),
		)
	}
	return nil
}

func (h *SongHandler) handleInteraction(ctx context.Context, ev *eventbus.SongEvent) error {
	updated, err := h.Store.IncrementSongCounter(ctx, ev.SongID, string(ev.Kind)+"s")
	if err != nil {
		return Transient(err)
	}
	if !updated {
		h.Logger.Info("Skipping interaction for unknown song",
			slog.String("song_id", ev.SongID),
			slog.String("kind", string(ev.Kind)),
		)
		return nil
	}

	region := ev.Region
	if region == "" {
		region = h.Regions.Resolve(ctx, ev.ActorID)
	}

	inserted, err := h.Store.RecordInteraction(ctx, repository.RecordInteractionParams{
		UserID:     ev.ActorID,
		EntityID:   ev.SongID,
		EntityType: "song",
		ArtistID:   h.resolveArtist(ctx, ev),
		EventType:  string(ev.Kind),
		Region:     &region,
		CreatedAt:  ev.Timestamp,
	})
	if err != nil {
		// The counter mutation is already committed; losing the
		// interaction record is preferable to double counting on
		// redelivery.
		h.Logger.Error("Failed to record song interaction",
			slog.String("song_id", ev.SongID),
			slog.Any("error", err),
		)
		return nil
	}
	if !inserted {
		h.Logger.Info("Duplicate like ignored",
			slog.String("song_id", ev.SongID),
			slog.String("user_id", ev.ActorID),
		)
	}
	return nil
}

func (h *SongHandler) resolveArtist(ctx context.Context, ev *eventbus.SongEvent) string {
	if ev.ArtistID != "" {
		return ev.ArtistID
	}
	artistID, err := h.Store.SongArtistID(ctx, ev.SongID)
	if err != nil {
		h.Logger.Warn("Failed to resolve artist for song",
			slog.String("song_id", ev.SongID),
			slog.Any("error", err),
		)
		return ""
	}
	return artistID
}

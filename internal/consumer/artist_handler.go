package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chordline-io/cadenza/internal/eventbus"
	"github.com/chordline-io/cadenza/internal/repository"
)

// RosterStore is the slice of the repository the artist handler mutates.
type RosterStore interface {
	ArtistExists(ctx context.Context, artistID string) (bool, error)
	AddListener(ctx context.Context, arg repository.AddListenerParams) (bool, error)
	PruneListeners(ctx context.Context, artistID string, cutoff time.Time) (int64, error)
	AddFollower(ctx context.Context, arg repository.AddFollowerParams) (bool, error)
	RemoveFollower(ctx context.Context, artistID, userID string) (bool, error)
}

type ArtistHandler struct {
	Logger  *slog.Logger
	Store   RosterStore
	Regions RegionResolver

	// now is swapped in tests; the zero value uses the wall clock.
	now func() time.Time
}

func (h *ArtistHandler) Domain() string { return eventbus.DomainArtist }

func (h *ArtistHandler) clock() time.Time {
	if h.now != nil {
		return h.now().UTC()
	}
	return time.Now().UTC()
}

// Handle applies one roster mutation. All kinds acknowledge regardless of
// whether a mutation occurred; only decode failures and store errors nack.
// Calendar days are computed in UTC so the daily listener dedup does not
// depend on the host time zone.
func (h *ArtistHandler) Handle(ctx context.Context, routingKey string, body []byte) error {
	_, kind, err := eventbus.SplitTopic(routingKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ev, err := eventbus.DecodeArtistEvent(kind, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	exists, err := h.Store.ArtistExists(ctx, ev.ArtistID)
	if err != nil {
		return Transient(err)
	}
	if !exists {
		h.Logger.Info("Skipping event for unknown artist",
			slog.String("artist_id", ev.ArtistID),
			slog.String("kind", string(ev.Kind)),
		)
		return nil
	}

	switch ev.Kind {
	case eventbus.KindListener:
		return h.handleListener(ctx, ev)
	case eventbus.KindFollow:
		return h.handleFollow(ctx, ev)
	case eventbus.KindUnfollow:
		return h.handleUnfollow(ctx, ev)
	default:
		h.Logger.Warn("Ignoring unknown artist event kind",
			slog.String("kind", string(ev.Kind)),
			slog.String("artist_id", ev.ArtistID),
		)
		return nil
	}
}

func (h *ArtistHandler) handleListener(ctx context.Context, ev *eventbus.ArtistEvent) error {
	now := h.clock()
	today := now.Truncate(24 * time.Hour)

	var region *string
	if ev.Region != "" {
		region = &ev.Region
	}

	inserted, err := h.Store.AddListener(ctx, repository.AddListenerParams{
		ArtistID:   ev.ArtistID,
		UserID:     ev.ActorID,
		ListenDay:  today,
		ListenedAt: now,
		Region:     region,
	})
	if err != nil {
		return Transient(err)
	}
	if !inserted {
		// Already counted today; no write amplification.
		return nil
	}

	cutoff := now.Add(-repository.ListenerWindow)
	if _, err := h.Store.PruneListeners(ctx, ev.ArtistID, cutoff); err != nil {
		// The entry is committed and the prune reruns on the next
		// listen, so a failure here is not worth dropping the message.
		h.Logger.Error("Failed to prune listener log",
			slog.String("artist_id", ev.ArtistID),
			slog.Any("error", err),
		)
	}
	return nil
}

func (h *ArtistHandler) handleFollow(ctx context.Context, ev *eventbus.ArtistEvent) error {
	region := ev.Region
	if region == "" {
		region = h.Regions.Resolve(ctx, ev.ActorID)
	}

	inserted, err := h.Store.AddFollower(ctx, repository.AddFollowerParams{
		ArtistID:   ev.ArtistID,
		UserID:     ev.ActorID,
		FollowedAt: h.clock(),
		Region:     &region,
	})
	if err != nil {
		return Transient(err)
	}
	if !inserted {
		h.Logger.Info("Duplicate follow ignored",
			slog.String("artist_id", ev.ArtistID),
			slog.String("user_id", ev.ActorID),
		)
	}
	return nil
}

func (h *ArtistHandler) handleUnfollow(ctx context.Context, ev *eventbus.ArtistEvent) error {
	removed, err := h.Store.RemoveFollower(ctx, ev.ArtistID, ev.ActorID)
	if err != nil {
		return Transient(err)
	}
	if !removed {
		h.Logger.Info("Unfollow without matching follower ignored",
			slog.String("artist_id", ev.ArtistID),
			slog.String("user_id", ev.ActorID),
		)
	}
	return nil
}

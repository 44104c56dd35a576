package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chordline-io/cadenza/internal/eventbus"
	"github.com/chordline-io/cadenza/internal/repository"
)

// ActivityStore is the slice of the repository the user handler appends to.
type ActivityStore interface {
	RecordUserActivity(ctx context.Context, arg repository.RecordUserActivityParams) error
}

type UserHandler struct {
	Logger *slog.Logger
	Store  ActivityStore
}

func (h *UserHandler) Domain() string { return eventbus.DomainUser }

// Handle appends one record to the user activity log. The log is append-only
// with no dedup: every registration, login, activity and derived play event
// is recorded as delivered.
func (h *UserHandler) Handle(ctx context.Context, routingKey string, body []byte) error {
	_, kind, err := eventbus.SplitTopic(routingKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ev, err := eventbus.DecodeUserEvent(kind, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch ev.Kind {
	case eventbus.KindRegistration, eventbus.KindLogin, eventbus.KindActivity, eventbus.KindPlay:
	default:
		h.Logger.Warn("Ignoring unknown user event kind",
			slog.String("kind", string(ev.Kind)),
			slog.String("user_id", ev.UserID),
		)
		return nil
	}

	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	if err := h.Store.RecordUserActivity(ctx, repository.RecordUserActivityParams{
		UserID:    ev.UserID,
		EventType: string(ev.Kind),
		Metadata:  metadata,
		CreatedAt: ts,
	}); err != nil {
		return Transient(err)
	}
	return nil
}

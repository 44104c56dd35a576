package consumer

import "context"

// RegionResolver enriches an actor with a region. Implementations never fail;
// on any lookup problem they return a fixed placeholder.
type RegionResolver interface {
	Resolve(ctx context.Context, userID string) string
}

// DerivedPublisher is the slice of the publisher API handlers need for
// fan-out. Publication is best effort: callers log failures and move on.
type DerivedPublisher interface {
	PublishArtistListener(ctx context.Context, artistID, userID, region string) error
	PublishUserPlay(ctx context.Context, userID, songID, artistID string) error
}

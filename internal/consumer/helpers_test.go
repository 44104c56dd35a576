package consumer

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/chordline-io/cadenza/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSongStore struct {
	incremented         [][2]string // (songID, field)
	incrementUpdated    bool
	incrementErr        error
	artistID            string
	artistErr           error
	interactions        []repository.RecordInteractionParams
	interactionInserted bool
	interactionErr      error
}

func (f *fakeSongStore) IncrementSongCounter(_ context.Context, songID, field string) (bool, error) {
	f.incremented = append(f.incremented, [2]string{songID, field})
	return f.incrementUpdated, f.incrementErr
}

func (f *fakeSongStore) SongArtistID(_ context.Context, songID string) (string, error) {
	return f.artistID, f.artistErr
}

func (f *fakeSongStore) RecordInteraction(_ context.Context, arg repository.RecordInteractionParams) (bool, error) {
	f.interactions = append(f.interactions, arg)
	return f.interactionInserted, f.interactionErr
}

type fakeAlbumStore struct {
	incremented         [][2]string
	incrementUpdated    bool
	incrementErr        error
	artistID            string
	artistErr           error
	interactions        []repository.RecordInteractionParams
	interactionInserted bool
	interactionErr      error
}

func (f *fakeAlbumStore) IncrementAlbumCounter(_ context.Context, albumID, field string) (bool, error) {
	f.incremented = append(f.incremented, [2]string{albumID, field})
	return f.incrementUpdated, f.incrementErr
}

func (f *fakeAlbumStore) AlbumArtistID(_ context.Context, albumID string) (string, error) {
	return f.artistID, f.artistErr
}

func (f *fakeAlbumStore) RecordInteraction(_ context.Context, arg repository.RecordInteractionParams) (bool, error) {
	f.interactions = append(f.interactions, arg)
	return f.interactionInserted, f.interactionErr
}

type fakeRosterStore struct {
	exists    bool
	existsErr error

	listeners        []repository.AddListenerParams
	listenerInserted bool
	listenerErr      error

	pruned   []time.Time
	pruneErr error

	followers        []repository.AddFollowerParams
	followerInserted bool
	followerErr      error

	removed   [][2]string
	didRemove bool
	removeErr error
}

func (f *fakeRosterStore) ArtistExists(_ context.Context, artistID string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeRosterStore) AddListener(_ context.Context, arg repository.AddListenerParams) (bool, error) {
	f.listeners = append(f.listeners, arg)
	return f.listenerInserted, f.listenerErr
}

func (f *fakeRosterStore) PruneListeners(_ context.Context, artistID string, cutoff time.Time) (int64, error) {
	f.pruned = append(f.pruned, cutoff)
	return 0, f.pruneErr
}

func (f *fakeRosterStore) AddFollower(_ context.Context, arg repository.AddFollowerParams) (bool, error) {
	f.followers = append(f.followers, arg)
	return f.followerInserted, f.followerErr
}

func (f *fakeRosterStore) RemoveFollower(_ context.Context, artistID, userID string) (bool, error) {
	f.removed = append(f.removed, [2]string{artistID, userID})
	return f.didRemove, f.removeErr
}

type fakeActivityStore struct {
	records []repository.RecordUserActivityParams
	err     error
}

func (f *fakeActivityStore) RecordUserActivity(_ context.Context, arg repository.RecordUserActivityParams) error {
	f.records = append(f.records, arg)
	return f.err
}

type publishedDerived struct {
	artistID string
	userID   string
	songID   string
	region   string
}

type fakePublisher struct {
	listenerEvents []publishedDerived
	playEvents     []publishedDerived
	listenerErr    error
	playErr        error
}

func (f *fakePublisher) PublishArtistListener(_ context.Context, artistID, userID, region string) error {
	f.listenerEvents = append(f.listenerEvents, publishedDerived{artistID: artistID, userID: userID, region: region})
	return f.listenerErr
}

func (f *fakePublisher) PublishUserPlay(_ context.Context, userID, songID, artistID string) error {
	f.playEvents = append(f.playEvents, publishedDerived{userID: userID, songID: songID, artistID: artistID})
	return f.playErr
}

type fakeResolver struct {
	region string
	looked []string
}

func (f *fakeResolver) Resolve(_ context.Context, userID string) string {
	f.looked = append(f.looked, userID)
	return f.region
}

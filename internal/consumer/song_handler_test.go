package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSongHandler(store *fakeSongStore, bus *fakePublisher, resolver *fakeResolver) *SongHandler {
	return &SongHandler{Logger: testLogger(), Store: store, Regions: resolver, Bus: bus}
}

func TestSongPlayIncrementsAndFansOut(t *testing.T) {
	store := &fakeSongStore{incrementUpdated: true}
	bus := &fakePublisher{}
	resolver := &fakeResolver{region: "Chile"}
	h := newSongHandler(store, bus, resolver)

	err := h.Handle(context.Background(), "metrics.song.play",
		[]byte(`{"song_id":"s1","artist_id":"a1","user_id":"u1"}`))
	require.NoError(t, err)

	require.Len(t, store.incremented, 1)
	assert.Equal(t, [2]string{"s1", "plays"}, store.incremented[0])

	require.Len(t, bus.listenerEvents, 1)
	assert.Equal(t, "a1", bus.listenerEvents[0].artistID)
	assert.Equal(t, "u1", bus.listenerEvents[0].userID)
	assert.Equal(t, "Chile", bus.listenerEvents[0].region)

	require.Len(t, bus.playEvents, 1)
	assert.Equal(t, "u1", bus.playEvents[0].userID)
	assert.Equal(t, "s1", bus.playEvents[0].songID)
}

func TestSongPlayUnknownSongIsSkipped(t *testing.T) {
	store := &fakeSongStore{incrementUpdated: false}
	bus := &fakePublisher{}
	h := newSongHandler(store, bus, &fakeResolver{})

	err := h.Handle(context.Background(), "metrics.song.play",
		[]byte(`{"song_id":"ghost","user_id":"u1"}`))
	require.NoError(t, err)
	assert.Empty(t, bus.listenerEvents)
	assert.Empty(t, bus.playEvents)
}

func TestSongPlayDerivedPublishFailureIsSwallowed(t *testing.T) {
	store := &fakeSongStore{incrementUpdated: true}
	bus := &fakePublisher{listenerErr: errors.New("broker down"), playErr: errors.New("broker down")}
	h := newSongHandler(store, bus, &fakeResolver{})

	err := h.Handle(context.Background(), "metrics.song.play",
		[]byte(`{"song_id":"s1","artist_id":"a1","user_id":"u1"}`))
	assert.NoError(t, err)
}

func TestSongPlayEnvelopeRegionSkipsLookup(t *testing.T) {
	store := &fakeSongStore{incrementUpdated: true}
	bus := &fakePublisher{}
	resolver := &fakeResolver{region: "Peru"}
	h := newSongHandler(store, bus, resolver)

	err := h.Handle(context.Background(), "metrics.song.play",
		[]byte(`{"song_id":"s1","artist_id":"a1","user_id":"u1","region":"Chile"}`))
	require.NoError(t, err)
	assert.Empty(t, resolver.looked)
	assert.Equal(t, "Chile", bus.listenerEvents[0].region)
}

func TestSongLikeRecordsInteraction(t *testing.T) {
	store := &fakeSongStore{incrementUpdated: true, interactionInserted: true}
	h := newSongHandler(store, &fakePublisher{}, &fakeResolver{region: "Chile"})

	err := h.Handle(context.Background(), "metrics.song.like",
		[]byte(`{"song_id":"s1","artist_id":"a1","user_id":"u1"}`))
	require.NoError(t, err)

	require.Len(t, store.incremented, 1)
	assert.Equal(t, [2]string{"s1", "likes"}, store.incremented[0])

	require.Len(t, store.interactions, 1)
	interaction := store.interactions[0]
	assert.Equal(t, "u1", interaction.UserID)
	assert.Equal(t, "s1", interaction.EntityID)
	assert.Equal(t, "song", interaction.EntityType)
	assert.Equal(t, "a1", interaction.ArtistID)
	assert.Equal(t, "like", interaction.EventType)
	require.NotNil(t, interaction.Region)
	assert.Equal(t, "Chile", *interaction.Region)
}

func TestSongDuplicateLikeIsIgnored(t *testing.T) {
	store := &fakeSongStore{incrementUpdated: true, interactionInserted: false}
	h := newSongHandler(store, &fakePublisher{}, &fakeResolver{})

	err := h.Handle(context.Background(), "metrics.song.like",
		[]byte(`{"song_id":"s1","user_id":"u1"}`))
	assert.NoError(t, err)
}

func TestSongShareFillsArtistFromStore(t *testing.T) {
	store := &fakeSongStore{incrementUpdated: true, interactionInserted: true, artistID: "a9"}
	h := newSongHandler(store, &fakePublisher{}, &fakeResolver{})

	err := h.Handle(context.Background(), "metrics.song.share",
		[]byte(`{"song_id":"s1","user_id":"u1"}`))
	require.NoError(t, err)
	require.Len(t, store.interactions, 1)
	assert.Equal(t, "a9", store.interactions[0].ArtistID)
	assert.Equal(t, "share", store.interactions[0].EventType)
}

func TestSongUnknownKindIsInert(t *testing.T) {
	store := &fakeSongStore{incrementUpdated: true}
	h := newSongHandler(store, &fakePublisher{}, &fakeResolver{})

	err := h.Handle(context.Background(), "metrics.song.superlike",
		[]byte(`{"song_id":"s1","user_id":"u1"}`))
	require.NoError(t, err)
	assert.Empty(t, store.incremented)
}

func TestSongStoreFailureIsTransient(t *testing.T) {
	store := &fakeSongStore{incrementErr: errors.New("connection reset")}
	h := newSongHandler(store, &fakePublisher{}, &fakeResolver{})

	err := h.Handle(context.Background(), "metrics.song.play",
		[]byte(`{"song_id":"s1","user_id":"u1"}`))
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestSongMalformedEnvelopeIsPermanent(t *testing.T) {
	h := newSongHandler(&fakeSongStore{}, &fakePublisher{}, &fakeResolver{})

	err := h.Handle(context.Background(), "metrics.song.play", []byte(`{"user_id":"u1"}`))
	require.ErrorIs(t, err, ErrMalformedEvent)
	assert.False(t, IsTransient(err))
}

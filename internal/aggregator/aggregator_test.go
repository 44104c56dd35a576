package aggregator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chordline-io/cadenza/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	listeners []repository.ListenerEntry
	followers []repository.FollowerEntry
	cohort    []string
	active    []string
	err       error

	sinceCalls   []time.Time
	betweenCalls []repository.ListArtistListenersBetweenParams
	activeCalls  [][2]time.Time
}

func (f *fakeSource) ListListenersSince(_ context.Context, since time.Time) ([]repository.ListenerEntry, error) {
	f.sinceCalls = append(f.sinceCalls, since)
	return f.listeners, f.err
}

func (f *fakeSource) ListArtistListenersBetween(_ context.Context, arg repository.ListArtistListenersBetweenParams) ([]repository.ListenerEntry, error) {
	f.betweenCalls = append(f.betweenCalls, arg)
	if f.err != nil {
		return nil, f.err
	}
	var out []repository.ListenerEntry
	for _, e := range f.listeners {
		if e.ArtistID == arg.ArtistID && !e.ListenedAt.Before(arg.From) && e.ListenedAt.Before(arg.To) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeSource) ListArtistFollowers(_ context.Context, artistID string) ([]repository.FollowerEntry, error) {
	return f.followers, f.err
}

func (f *fakeSource) CohortUserIDs(_ context.Context, from, to time.Time) ([]string, error) {
	return f.cohort, f.err
}

func (f *fakeSource) ActiveUserIDs(_ context.Context, from, to time.Time) ([]string, error) {
	f.activeCalls = append(f.activeCalls, [2]time.Time{from, to})
	return f.active, f.err
}

type fakeCache struct {
	data map[string][]byte
	gets []string
	sets []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, bool) {
	f.gets = append(f.gets, key)
	raw, ok := f.data[key]
	return raw, ok
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	f.sets = append(f.sets, key)
	f.data[key] = value
}

func strptr(s string) *string { return &s }

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func listen(artistID, userID string, at time.Time, region *string) repository.ListenerEntry {
	return repository.ListenerEntry{
		ArtistID:   artistID,
		UserID:     userID,
		ListenDay:  at.Truncate(24 * time.Hour),
		ListenedAt: at,
		Region:     region,
	}
}

func newTestAggregator(src Source, cache Cache) *Aggregator {
	a := New(src, cache, time.Minute, testLogger())
	a.now = func() time.Time { return testNow }
	return a
}

func TestVariation(t *testing.T) {
	cases := []struct {
		name              string
		current, previous int64
		want              float64
	}{
		{"both empty", 0, 0, 0},
		{"growth from nothing", 10, 0, 100},
		{"growth", 15, 10, 50},
		{"decline", 5, 10, -50},
		{"total loss", 0, 10, -100},
		{"flat", 7, 7, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Variation(tc.current, tc.previous), 0.0001)
		})
	}
}

func TestMonthlyListenersCountsDistinctUsers(t *testing.T) {
	src := &fakeSource{listeners: []repository.ListenerEntry{
		listen("a1", "u1", testNow.AddDate(0, 0, -1), strptr("Chile")),
		listen("a1", "u1", testNow.AddDate(0, 0, -2), strptr("Chile")),
		listen("a1", "u2", testNow.AddDate(0, 0, -3), nil),
	}}
	agg := newTestAggregator(src, nil)

	count, err := agg.MonthlyListeners(context.Background(), "a1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.Len(t, src.betweenCalls, 1)
	assert.Equal(t, testNow.Add(-repository.ListenerWindow), src.betweenCalls[0].From)
	assert.Equal(t, testNow, src.betweenCalls[0].To)
}

func TestMonthlyListenersRegionFilter(t *testing.T) {
	src := &fakeSource{listeners: []repository.ListenerEntry{
		listen("a1", "u1", testNow.AddDate(0, 0, -1), strptr("Chile")),
		listen("a1", "u2", testNow.AddDate(0, 0, -1), strptr("Peru")),
		listen("a1", "u3", testNow.AddDate(0, 0, -1), nil),
	}}
	agg := newTestAggregator(src, nil)

	count, err := agg.MonthlyListeners(context.Background(), "a1", "Chile")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTopArtistsRankingAndTies(t *testing.T) {
	src := &fakeSource{listeners: []repository.ListenerEntry{
		listen("b", "u1", testNow.AddDate(0, 0, -1), nil),
		listen("b", "u2", testNow.AddDate(0, 0, -1), nil),
		listen("a", "u1", testNow.AddDate(0, 0, -2), nil),
		listen("a", "u1", testNow.AddDate(0, 0, -5), nil), // same pair, counted once
		listen("a", "u3", testNow.AddDate(0, 0, -2), nil),
		listen("c", "u1", testNow.AddDate(0, 0, -4), nil),
	}}
	agg := newTestAggregator(src, nil)

	ranks, err := agg.TopArtists(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, ranks, 2)
	// a and b tie at 2 listeners; the id breaks the tie.
	assert.Equal(t, ArtistRank{ArtistID: "a", Listeners: 2}, ranks[0])
	assert.Equal(t, ArtistRank{ArtistID: "b", Listeners: 2}, ranks[1])

	require.Len(t, src.sinceCalls, 1)
	assert.Equal(t, testNow.Add(-repository.ListenerWindow), src.sinceCalls[0])
}

func TestTopArtistsZeroN(t *testing.T) {
	src := &fakeSource{}
	agg := newTestAggregator(src, nil)

	ranks, err := agg.TopArtists(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, ranks)
	assert.Empty(t, src.sinceCalls)
}

func TestTopArtistsUsesCache(t *testing.T) {
	src := &fakeSource{listeners: []repository.ListenerEntry{
		listen("a", "u1", testNow.AddDate(0, 0, -1), nil),
	}}
	cache := newFakeCache()
	agg := newTestAggregator(src, cache)

	first, err := agg.TopArtists(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, []string{"aggregator:top_artists:5"}, cache.sets)

	// Second call is served from the cache without touching the store.
	second, err := agg.TopArtists(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, src.sinceCalls, 1)
}

func TestListenerVariationWindows(t *testing.T) {
	boundary := testNow.Add(-repository.ListenerWindow)
	src := &fakeSource{listeners: []repository.ListenerEntry{
		// Current window: u1, u2, u3.
		listen("a1", "u1", testNow.AddDate(0, 0, -1), nil),
		listen("a1", "u2", testNow.AddDate(0, 0, -10), nil),
		listen("a1", "u3", testNow.AddDate(0, 0, -29), nil),
		// Previous window: u1, u4.
		listen("a1", "u1", boundary.AddDate(0, 0, -5), nil),
		listen("a1", "u4", boundary.AddDate(0, 0, -20), nil),
		// Another artist never leaks in.
		listen("a2", "u9", testNow.AddDate(0, 0, -1), nil),
	}}
	agg := newTestAggregator(src, nil)

	report, err := agg.ListenerVariation(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Current)
	assert.Equal(t, int64(2), report.Previous)
	assert.InDelta(t, 50.0, report.VariationPct, 0.0001)
}

func TestListenerRegionsBreakdown(t *testing.T) {
	src := &fakeSource{listeners: []repository.ListenerEntry{
		listen("a1", "u1", testNow.AddDate(0, 0, -1), strptr("Chile")),
		listen("a1", "u1", testNow.AddDate(0, 0, -2), strptr("Chile")),
		listen("a1", "u2", testNow.AddDate(0, 0, -3), strptr("Peru")),
		listen("a1", "u3", testNow.AddDate(0, 0, -4), nil),
	}}
	agg := newTestAggregator(src, nil)

	breakdown, err := agg.ListenerRegions(context.Background(), "a1")
	require.NoError(t, err)
	// Listener with no region counts in the total but lands in no bucket.
	assert.Equal(t, int64(3), breakdown.Total)
	assert.Equal(t, map[string]int64{"Chile": 1, "Peru": 1}, breakdown.Regions)
}

func TestFollowerCount(t *testing.T) {
	src := &fakeSource{followers: []repository.FollowerEntry{
		{ArtistID: "a1", UserID: "u1", Region: strptr("Chile")},
		{ArtistID: "a1", UserID: "u2", Region: strptr("Peru")},
		{ArtistID: "a1", UserID: "u3", Region: nil},
	}}
	agg := newTestAggregator(src, nil)

	total, err := agg.FollowerCount(context.Background(), "a1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	chile, err := agg.FollowerCount(context.Background(), "a1", "Chile")
	require.NoError(t, err)
	assert.Equal(t, int64(1), chile)
}

func TestRetention(t *testing.T) {
	src := &fakeSource{
		cohort: []string{"u1", "u2", "u3"},
		active: []string{"u1", "u3", "u9"},
	}
	agg := newTestAggregator(src, nil)

	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC)
	report, err := agg.Retention(context.Background(), from, to, 7)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Registered)
	assert.Equal(t, 2, report.Retained)
	assert.InDelta(t, 66.67, report.Rate, 0.0001)

	require.Len(t, src.activeCalls, 1)
	wantStart := to.AddDate(0, 0, 7)
	assert.Equal(t, wantStart, src.activeCalls[0][0])
	assert.Equal(t, wantStart.Add(24*time.Hour), src.activeCalls[0][1])
}

func TestRetentionEmptyCohort(t *testing.T) {
	src := &fakeSource{}
	agg := newTestAggregator(src, nil)

	report, err := agg.Retention(context.Background(), testNow.AddDate(0, 0, -14), testNow.AddDate(0, 0, -7), 7)
	require.NoError(t, err)
	assert.Equal(t, RetentionReport{}, report)
	assert.Empty(t, src.activeCalls)
}

package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/chordline-io/cadenza/internal/repository"
)

// ListenerSource reads the roster aggregates the computations run over.
type ListenerSource interface {
	ListListenersSince(ctx context.Context, since time.Time) ([]repository.ListenerEntry, error)
	ListArtistListenersBetween(ctx context.Context, arg repository.ListArtistListenersBetweenParams) ([]repository.ListenerEntry, error)
	ListArtistFollowers(ctx context.Context, artistID string) ([]repository.FollowerEntry, error)
}

// ActivitySource reads the user activity log for cohort computations.
type ActivitySource interface {
	CohortUserIDs(ctx context.Context, from, to time.Time) ([]string, error)
	ActiveUserIDs(ctx context.Context, from, to time.Time) ([]string, error)
}

// Source is what the aggregator needs from the store; *repository.Queries
// satisfies it.
type Source interface {
	ListenerSource
	ActivitySource
}

// ArtistRank is one row of a top-N ranking.
type ArtistRank struct {
	ArtistID  string `json:"artist_id"`
	Listeners int64  `json:"listeners"`
}

// VariationReport compares the same metric over two equal adjacent windows.
type VariationReport struct {
	Current      int64   `json:"current"`
	Previous     int64   `json:"previous"`
	VariationPct float64 `json:"variation_pct"`
}

// RegionalBreakdown buckets a membership list by region. Entries without a
// region count towards Total but appear in no bucket.
type RegionalBreakdown struct {
	Total   int64            `json:"total"`
	Regions map[string]int64 `json:"regions"`
}

// RetentionReport is the outcome of one cohort computation.
type RetentionReport struct {
	Registered int     `json:"registered"`
	Retained   int     `json:"retained"`
	Rate       float64 `json:"rate"`
}

// Aggregator computes read-side analytics on demand from the accumulated
// aggregate state. Nothing here mutates the store.
type Aggregator struct {
	src    Source
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger

	now func() time.Time
}

func New(src Source, cache Cache, ttl time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{src: src, cache: cache, ttl: ttl, logger: logger}
}

func (a *Aggregator) clock() time.Time {
	if a.now != nil {
		return a.now().UTC()
	}
	return time.Now().UTC()
}

// MonthlyListeners counts distinct users who listened to the artist inside
// the trailing 30-day window, optionally restricted to one region.
func (a *Aggregator) MonthlyListeners(ctx context.Context, artistID, region string) (int64, error) {
	now := a.clock()
	entries, err := a.src.ListArtistListenersBetween(ctx, repository.ListArtistListenersBetweenParams{
		ArtistID: artistID,
		From:     now.Add(-repository.ListenerWindow),
		To:       now,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to load listener log: %w", err)
	}
	return countDistinctListeners(entries, region), nil
}

func countDistinctListeners(entries []repository.ListenerEntry, region string) int64 {
	seen := make(map[string]struct{})
	for _, e := range entries {
		if region != "" {
			if e.Region == nil || *e.Region != region {
				continue
			}
		}
		seen[e.UserID] = struct{}{}
	}
	return int64(len(seen))
}

// TopArtists ranks artists by distinct listeners over the trailing 30-day
// window. Ties are broken by artist id so the order is stable between calls.
// Results are cached briefly since the ranking scans every artist's log.
func (a *Aggregator) TopArtists(ctx context.Context, n int) ([]ArtistRank, error) {
	if n <= 0 {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("aggregator:top_artists:%d", n)
	if a.cache != nil {
		if raw, ok := a.cache.Get(ctx, cacheKey); ok {
			var ranks []ArtistRank
			if err := json.Unmarshal(raw, &ranks); err == nil {
				return ranks, nil
			}
		}
	}

	entries, err := a.src.ListListenersSince(ctx, a.clock().Add(-repository.ListenerWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load listener logs: %w", err)
	}
	ranks := rankArtists(entries, n)

	if a.cache != nil {
		if raw, err := json.Marshal(ranks); err == nil {
			a.cache.Set(ctx, cacheKey, raw, a.ttl)
		}
	}
	return ranks, nil
}

func rankArtists(entries []repository.ListenerEntry, n int) []ArtistRank {
	// Dedup (artist, user) pairs first so one heavy listener counts once.
	type pair struct{ artist, user string }
	seen := make(map[pair]struct{})
	counts := make(map[string]int64)
	for _, e := range entries {
		p := pair{e.ArtistID, e.UserID}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		counts[e.ArtistID]++
	}

	ranks := make([]ArtistRank, 0, len(counts))
	for artistID, c := range counts {
		ranks = append(ranks, ArtistRank{ArtistID: artistID, Listeners: c})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Listeners != ranks[j].Listeners {
			return ranks[i].Listeners > ranks[j].Listeners
		}
		return ranks[i].ArtistID < ranks[j].ArtistID
	})
	if len(ranks) > n {
		ranks = ranks[:n]
	}
	return ranks
}

// Variation computes the period-over-period percentage change. Both windows
// empty is 0; growth from nothing is 100.
func Variation(current, previous int64) float64 {
	switch {
	case current == 0 && previous == 0:
		return 0
	case previous == 0:
		return 100
	default:
		return float64(current-previous) / float64(previous) * 100
	}
}

// ListenerVariation compares distinct listeners over the trailing 30-day
// window against the 30 days before it.
func (a *Aggregator) ListenerVariation(ctx context.Context, artistID string) (VariationReport, error) {
	now := a.clock()
	boundary := now.Add(-repository.ListenerWindow)

	current, err := a.src.ListArtistListenersBetween(ctx, repository.ListArtistListenersBetweenParams{
		ArtistID: artistID, From: boundary, To: now,
	})
	if err != nil {
		return VariationReport{}, fmt.Errorf("failed to load current window: %w", err)
	}
	previous, err := a.src.ListArtistListenersBetween(ctx, repository.ListArtistListenersBetweenParams{
		ArtistID: artistID, From: boundary.Add(-repository.ListenerWindow), To: boundary,
	})
	if err != nil {
		return VariationReport{}, fmt.Errorf("failed to load previous window: %w", err)
	}

	report := VariationReport{
		Current:  countDistinctListeners(current, ""),
		Previous: countDistinctListeners(previous, ""),
	}
	report.VariationPct = Variation(report.Current, report.Previous)
	return report, nil
}

// ListenerRegions breaks the trailing 30-day listener count down by region.
func (a *Aggregator) ListenerRegions(ctx context.Context, artistID string) (RegionalBreakdown, error) {
	now := a.clock()
	entries, err := a.src.ListArtistListenersBetween(ctx, repository.ListArtistListenersBetweenParams{
		ArtistID: artistID,
		From:     now.Add(-repository.ListenerWindow),
		To:       now,
	})
	if err != nil {
		return RegionalBreakdown{}, fmt.Errorf("failed to load listener log: %w", err)
	}

	breakdown := RegionalBreakdown{Regions: make(map[string]int64)}
	seen := make(map[string]struct{})
	regionSeen := make(map[string]map[string]struct{})
	for _, e := range entries {
		if _, ok := seen[e.UserID]; !ok {
			seen[e.UserID] = struct{}{}
			breakdown.Total++
		}
		if e.Region == nil {
			continue
		}
		users, ok := regionSeen[*e.Region]
		if !ok {
			users = make(map[string]struct{})
			regionSeen[*e.Region] = users
		}
		if _, ok := users[e.UserID]; !ok {
			users[e.UserID] = struct{}{}
			breakdown.Regions[*e.Region]++
		}
	}
	return breakdown, nil
}

// FollowerCount counts an artist's followers, optionally restricted to one
// region. Followers with no recorded region are excluded from region-filtered
// counts but included in the unfiltered total.
func (a *Aggregator) FollowerCount(ctx context.Context, artistID, region string) (int64, error) {
	followers, err := a.src.ListArtistFollowers(ctx, artistID)
	if err != nil {
		return 0, fmt.Errorf("failed to load followers: %w", err)
	}
	if region == "" {
		return int64(len(followers)), nil
	}
	var count int64
	for _, f := range followers {
		if f.Region != nil && *f.Region == region {
			count++
		}
	}
	return count, nil
}

// Retention computes the share of users registered in [from, to) that were
// active again in the single day starting daysAfter days after the cohort's
// end date. The rate is a percentage rounded to two decimals.
func (a *Aggregator) Retention(ctx context.Context, from, to time.Time, daysAfter int) (RetentionReport, error) {
	cohort, err := a.src.CohortUserIDs(ctx, from, to)
	if err != nil {
		return RetentionReport{}, fmt.Errorf("failed to load cohort: %w", err)
	}
	if len(cohort) == 0 {
		return RetentionReport{}, nil
	}

	dayStart := to.UTC().AddDate(0, 0, daysAfter)
	active, err := a.src.ActiveUserIDs(ctx, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return RetentionReport{}, fmt.Errorf("failed to load active users: %w", err)
	}

	activeSet := make(map[string]struct{}, len(active))
	for _, id := range active {
		activeSet[id] = struct{}{}
	}
	retained := 0
	for _, id := range cohort {
		if _, ok := activeSet[id]; ok {
			retained++
		}
	}

	rate := float64(retained) / float64(len(cohort)) * 100
	return RetentionReport{
		Registered: len(cohort),
		Retained:   retained,
		Rate:       math.Round(rate*100) / 100,
	}, nil
}

package aggregator

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ArtistReport is one exportable row of period metrics for an artist.
type ArtistReport struct {
	ArtistID          string    `json:"artist_id"`
	CurrentListeners  int64     `json:"current_listeners"`
	PreviousListeners int64     `json:"previous_listeners"`
	VariationPct      float64   `json:"variation_pct"`
	Followers         int64     `json:"followers"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// BuildArtistReport assembles the period metrics for one artist.
func (a *Aggregator) BuildArtistReport(ctx context.Context, artistID string) (ArtistReport, error) {
	variation, err := a.ListenerVariation(ctx, artistID)
	if err != nil {
		return ArtistReport{}, err
	}
	followers, err := a.FollowerCount(ctx, artistID, "")
	if err != nil {
		return ArtistReport{}, err
	}
	return ArtistReport{
		ArtistID:          artistID,
		CurrentListeners:  variation.Current,
		PreviousListeners: variation.Previous,
		VariationPct:      variation.VariationPct,
		Followers:         followers,
		GeneratedAt:       a.clock(),
	}, nil
}

// WriteArtistReportCSV renders reports as CSV. Pure formatting over already
// computed fields.
func WriteArtistReportCSV(w io.Writer, reports []ArtistReport) error {
	cw := csv.NewWriter(w)
	header := []string{"artist_id", "current_listeners", "previous_listeners", "variation_pct", "followers", "generated_at"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range reports {
		record := []string{
			r.ArtistID,
			strconv.FormatInt(r.CurrentListeners, 10),
			strconv.FormatInt(r.PreviousListeners, 10),
			strconv.FormatFloat(r.VariationPct, 'f', 2, 64),
			strconv.FormatInt(r.Followers, 10),
			r.GeneratedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

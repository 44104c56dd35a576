package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/chordline-io/cadenza/internal/aggregator"
	"github.com/chordline-io/cadenza/internal/middleware"
	"github.com/chordline-io/cadenza/internal/middleware/pagination"
	"github.com/chordline-io/cadenza/internal/repository"
)

// StatsHandler exposes the aggregator's read-side computations. This surface
// is read only; all writes arrive through the event pipeline.
type StatsHandler struct {
	Logger   *slog.Logger
	Cache    aggregator.Cache
	CacheTTL time.Duration
}

func (sh *StatsHandler) RegisterRoutes(router *http.ServeMux) {
	router.HandleFunc("GET /songs/{id}/stats", sh.GetSongStats)
	router.HandleFunc("GET /albums/{id}/stats", sh.GetAlbumStats)
	router.HandleFunc("GET /artists/top", sh.GetTopArtists)
	router.HandleFunc("GET /artists/{id}/listeners/monthly", sh.GetMonthlyListeners)
	router.HandleFunc("GET /artists/{id}/listeners/variation", sh.GetListenerVariation)
	router.HandleFunc("GET /artists/{id}/listeners/regions", sh.GetListenerRegions)
	router.HandleFunc("GET /artists/{id}/followers", sh.GetFollowers)
	router.HandleFunc("GET /artists/{id}/followers/count", sh.GetFollowerCount)
	router.HandleFunc("GET /artists/{id}/interactions", sh.GetArtistInteractions)
	router.HandleFunc("GET /analytics/retention", sh.GetRetention)
	router.HandleFunc("GET /analytics/report.csv", sh.GetArtistReportCSV)
}

// aggregatorFor builds a request-scoped aggregator over the pooled connection
// placed on the context by the middleware stack.
func (sh *StatsHandler) aggregatorFor(r *http.Request) (*aggregator.Aggregator, *repository.Queries, error) {
	conn, err := middleware.GetDBConnFromContext(r.Context())
	if err != nil {
		return nil, nil, err
	}
	repo := repository.New(conn)
	return aggregator.New(repo, sh.Cache, sh.CacheTTL, sh.Logger), repo, nil
}

func (sh *StatsHandler) internalError(w http.ResponseWriter, err error, msg string) {
	sh.Logger.Error(msg, slog.Any("error", err))
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]any{
		"error": "We couldn't compute this metric at the moment",
	})
}

func (sh *StatsHandler) GetSongStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	conn, err := middleware.GetDBConnFromContext(r.Context())
	if err != nil {
		sh.internalError(w, err, "Error while processing request")
		return
	}

	counter, err := repository.New(conn).GetSongCounter(r.Context(), r.PathValue("id"))
	if errors.Is(err, repository.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "song not found"})
		return
	}
	if err != nil {
		sh.internalError(w, err, "Failed to load song counters")
		return
	}
	json.NewEncoder(w).Encode(counter)
}

func (sh *StatsHandler) GetAlbumStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	conn, err := middleware.GetDBConnFromContext(r.Context())
	if err != nil {
		sh.internalError(w, err, "Error while processing request")
		return
	}

	counter, err := repository.New(conn).GetAlbumCounter(r.Context(), r.PathValue("id"))
	if errors.Is(err, repository.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "album not found"})
		return
	}
	if err != nil {
		sh.internalError(w, err, "Failed to load album counters")
		return
	}
	json.NewEncoder(w).Encode(counter)
}

// GetArtistInteractions lists the like/share log for an artist over the
// trailing 30-day window.
func (sh *StatsHandler) GetArtistInteractions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	conn, err := middleware.GetDBConnFromContext(r.Context())
	if err != nil {
		sh.internalError(w, err, "Error while processing request")
		return
	}

	interactions, err := repository.New(conn).ListInteractionsByArtist(r.Context(), repository.ListInteractionsByArtistParams{
		ArtistID: r.PathValue("id"),
		Since:    time.Now().UTC().Add(-repository.ListenerWindow),
	})
	if err != nil {
		sh.internalError(w, err, "Failed to list interactions")
		return
	}
	if interactions == nil {
		interactions = []repository.UserInteraction{}
	}
	json.NewEncoder(w).Encode(map[string]any{"results": interactions})
}

func (sh *StatsHandler) GetTopArtists(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "limit must be an integer between 1 and 100",
			})
			return
		}
		limit = parsed
	}

	agg, _, err := sh.aggregatorFor(r)
	if err != nil {
		sh.internalError(w, err, "Error while processing request")
		return
	}

	ranks, err := agg.TopArtists(r.Context(), limit)
	if err != nil {
		sh.internalError(w, err, "Failed to rank artists")
		return
	}
	if ranks == nil {
		ranks = []aggregator.ArtistRank{}
	}
	json.NewEncoder(w).Encode(map[string]any{"results": ranks})
}

func (sh *StatsHandler) GetMonthlyListeners(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	artistID := r.PathValue("id")
	region := r.URL.Query().Get("region")

	agg, _, err := sh.aggregatorFor(r)
	if err != nil {
		sh.internalError(w, err, "Error while processing request")
		return
	}

	count, err := agg.MonthlyListeners(r.Context(), artistID, region)
	if err != nil {
		sh.internalError(w, err, "Failed to count monthly listeners")
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"artist_id": artistID,
		"region":    region,
		"listeners": count,
	})
}

func (sh *StatsHandler) GetListenerVariation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	artistID := r.PathValue("id")

	agg, _, err := sh.aggregatorFor(r)
	if err != nil {
		sh.internalError(w, err, "Error while processing request")
		return
	}

	report, err := agg.ListenerVariation(r.Context(), artistID)
	if err != nil {
		sh.internalError(w, err, "Failed to compute listener variation")
		return
	}
	json.NewEncoder(w).Encode(report)
}

func (sh *StatsHandler) GetListenerRegions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	artistID := r.PathValue("id")

	agg, _, err := sh.aggregatorFor(r)
	if err != nil {
		sh.internalError(w, err, "Error while processing request")
		return
	}

	breakdown, err := agg.ListenerRegions(r.Context(), artistID)
	if err != nil {
		sh.internalError(w, err, "Failed to compute regional breakdown")
		return
	}
	json.NewEncoder(w).Encode(breakdown)
}

func (sh *StatsHandler) GetFollowers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	artistID := r.PathValue("id")

	conn, err := middleware.GetDBConnFromContext(r.Context())
	if err != nil {
		sh.internalError(w, err, "Error while processing request")
		return
	}
	repo := repository.New(conn)

	pageParams := pagination.ParsePageParams(r)

	totalCount, err := repo.CountArtistFollowers(r.Context(), artistID)
	if err != nil {
		sh.internalError(w, err, "Failed to count followers")
		return
	}

	followers, err := repo.ListArtistFollowersPage(r.Context(), repository.ListArtistFollowersPageParams{
		ArtistID: artistID,
		Limit:    int32(pageParams.PageSize),
		Offset:   int32(pageParams.Offset),
	})
	if err != nil {
		sh.internalError(w, err, "Failed to list followers")
		return
	}
	if followers == nil {
		followers = []repository.FollowerEntry{}
	}

	json.NewEncoder(w).Encode(pagination.BuildPaginatedResponse(r, totalCount, followers, pageParams))
}

// GetFollowerCount counts an artist's followers, optionally within one region.
func (sh *StatsHandler) GetFollowerCount(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	artistID := r.PathValue("id")
	region := r.URL.Query().Get("region")

	agg, _, err := sh.aggregatorFor(r)
	if err != nil {
		sh.internalError(w, err, "Error while processing request")
		return
	}

	count, err := agg.FollowerCount(r.Context(), artistID, region)
	if err != nil {
		sh.internalError(w, err, "Failed to count followers")
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"artist_id": artistID,
		"region":    region,
		"followers": count,
	})
}

func (sh *StatsHandler) GetRetention(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "from must be a YYYY-MM-DD date"})
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil || !to.After(from) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "to must be a YYYY-MM-DD date after from"})
		return
	}
	daysAfter, err := strconv.Atoi(r.URL.Query().Get("days_after"))
	if err != nil || daysAfter < 0 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "days_after must be a non-negative integer"})
		return
	}

	agg, _, err := sh.aggregatorFor(r)
	if err != nil {
		sh.internalError(w, err, "Error while processing request")
		return
	}

	report, err := agg.Retention(r.Context(), from, to, daysAfter)
	if err != nil {
		sh.internalError(w, err, "Failed to compute retention")
		return
	}
	json.NewEncoder(w).Encode(report)
}

func (sh *StatsHandler) GetArtistReportCSV(w http.ResponseWriter, r *http.Request) {
	artistID := r.URL.Query().Get("artist_id")
	if artistID == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "artist_id is required"})
		return
	}

	agg, _, err := sh.aggregatorFor(r)
	if err != nil {
		sh.internalError(w, err, "Error while processing request")
		return
	}

	report, err := agg.BuildArtistReport(r.Context(), artistID)
	if err != nil {
		sh.internalError(w, err, "Failed to build artist report")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "artist_report_"+artistID+".csv"))
	if err := aggregator.WriteArtistReportCSV(w, []aggregator.ArtistReport{report}); err != nil {
		sh.Logger.Error("Failed to stream artist report", slog.Any("error", err))
	}
}

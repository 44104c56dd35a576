package region

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Unknown is the placeholder region used whenever enrichment fails. The
// lookup is strictly best effort and must never fail or block the caller
// beyond its timeout.
const Unknown = "Unknown"

// Resolver queries the external profile service for a user's region.
type Resolver struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewResolver(baseURL string, timeout time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Resolve returns the user's region or Unknown. Absence of the profile, a
// non-2xx status, a malformed body and transport errors all degrade the same
// way; failures are logged at debug level since they are expected.
func (r *Resolver) Resolve(ctx context.Context, userID string) string {
	if r.baseURL == "" || userID == "" {
		return Unknown
	}

	endpoint := r.baseURL + "/profile/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Unknown
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("Region lookup failed", slog.String("user_id", userID), slog.Any("error", err))
		return Unknown
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Debug("Region lookup returned non-2xx",
			slog.String("user_id", userID),
			slog.Int("status", resp.StatusCode),
		)
		return Unknown
	}

	var profile struct {
		Pais string `json:"pais"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		r.logger.Debug("Region lookup body undecodable", slog.String("user_id", userID), slog.Any("error", err))
		return Unknown
	}
	if profile.Pais == "" {
		return Unknown
	}
	return profile.Pais
}

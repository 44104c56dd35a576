package app

import (
	"net/http"
	"time"

	"github.com/chordline-io/cadenza/internal/handlers"
)

func (a *App) loadRoutes() http.Handler {
	router := http.NewServeMux()

	// ping handler
	router.HandleFunc("GET /ping", handlers.PingHandler)

	// read-side analytics
	stats := &handlers.StatsHandler{
		Logger:   a.logger,
		Cache:    a.cache,
		CacheTTL: time.Duration(a.config.RedisConfig.CacheTTL) * time.Second,
	}
	stats.RegisterRoutes(router)

	return router
}

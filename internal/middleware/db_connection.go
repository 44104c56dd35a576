package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

type dbConnectionKey struct{}

// WithDBConnection acquires a pooled connection per request and stores it on
// the request context so handlers can build a repository around it.
func WithDBConnection(logger *slog.Logger, pool *pgxpool.Pool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := pool.Acquire(r.Context())
			if err != nil {
				logger.Error("Failed to acquire database connection from pool", slog.Any("error", err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{
					"message": "We ran into an issue connecting to our database",
				})
				return
			}
			defer conn.Release()

			ctx := context.WithValue(r.Context(), dbConnectionKey{}, conn)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetDBConnFromContext retrieves the pgxpool.Conn from the request context.
// This helper function makes it easier for handlers to access the connection.
func GetDBConnFromContext(ctx context.Context) (*pgxpool.Conn, error) {
	conn, ok := ctx.Value(dbConnectionKey{}).(*pgxpool.Conn)
	if !ok || conn == nil {
		return nil, errors.New("database connection not found in context")
	}
	return conn, nil
}

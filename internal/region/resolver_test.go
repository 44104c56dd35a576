package region

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveReturnsProfileRegion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile/user-42", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pais":"Chile","name":"ignored"}`))
	}))
	defer srv.Close()

	resolver := NewResolver(srv.URL, time.Second, testLogger())
	assert.Equal(t, "Chile", resolver.Resolve(context.Background(), "user-42"))
}

func TestResolveTrimsTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile/u1", r.URL.Path)
		_, _ = w.Write([]byte(`{"pais":"Peru"}`))
	}))
	defer srv.Close()

	resolver := NewResolver(srv.URL+"/", time.Second, testLogger())
	assert.Equal(t, "Peru", resolver.Resolve(context.Background(), "u1"))
}

func TestResolveUnknownOnNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	resolver := NewResolver(srv.URL, time.Second, testLogger())
	assert.Equal(t, Unknown, resolver.Resolve(context.Background(), "ghost"))
}

func TestResolveUnknownOnMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	resolver := NewResolver(srv.URL, time.Second, testLogger())
	assert.Equal(t, Unknown, resolver.Resolve(context.Background(), "u1"))
}

func TestResolveUnknownOnEmptyRegion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pais":""}`))
	}))
	defer srv.Close()

	resolver := NewResolver(srv.URL, time.Second, testLogger())
	assert.Equal(t, Unknown, resolver.Resolve(context.Background(), "u1"))
}

func TestResolveUnknownOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"pais":"Chile"}`))
	}))
	defer srv.Close()

	resolver := NewResolver(srv.URL, 20*time.Millisecond, testLogger())
	assert.Equal(t, Unknown, resolver.Resolve(context.Background(), "u1"))
}

func TestResolveUnconfigured(t *testing.T) {
	resolver := NewResolver("", time.Second, testLogger())
	assert.Equal(t, Unknown, resolver.Resolve(context.Background(), "u1"))
}

func TestResolveEmptyUserID(t *testing.T) {
	resolver := NewResolver("http://unreachable.invalid", time.Second, testLogger())
	assert.Equal(t, Unknown, resolver.Resolve(context.Background(), ""))
}

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRejectWhenDraining(t *testing.T) {
	r := chi.NewRouter()
	s := New(":0", r)
	r.With(s.RejectWhenDraining).Get("/authorize", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/callback", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/authorize").Code)

	s.draining.Store(true)
	rec := get("/authorize")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "temporarily_unavailable")
	assert.Equal(t, http.StatusOK, get("/callback").Code, "unguarded routes keep working")
}

func TestShutdownWaitsForInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	s := New("127.0.0.1:0", handler, WithShutdownTimeout(5*time.Second))
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(l)

	respCh := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + l.Addr().String() + "/slow")
		if err != nil {
			respCh <- 0
			return
		}
		resp.Body.Close()
		respCh <- resp.StatusCode
	}()

	<-started
	assert.Equal(t, int64(1), s.InFlight())

	done := make(chan error, 1)
	go func() { done <- s.Shutdown(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.Draining())
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, http.StatusOK, <-respCh)
	assert.Equal(t, int64(0), s.InFlight())
}

func TestShutdownAbandonsAtDeadline(t *testing.T) {
	started := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	})

	s := New("127.0.0.1:0", handler, WithShutdownTimeout(100*time.Millisecond))
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(l)

	go func() {
		resp, err := http.Get("http://" + l.Addr().String() + "/stuck")
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-started

	err = s.Shutdown(context.Background())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

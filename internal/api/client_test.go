package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/pelusa-live/internal/session"
)

func TestClient_Heartbeat(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/user-status/heartbeat", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", session.NewStatic(&session.Session{Token: "tok"}))
	require.NoError(t, c.Heartbeat(context.Background()))
	assert.EqualValues(t, 1, hits.Load())
}

func TestClient_HeartbeatErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, session.NewStatic(&session.Session{Token: "tok"}))
	err := c.Heartbeat(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)

	anon := NewClient(srv.URL, session.NewStatic(nil))
	assert.ErrorIs(t, anon.Heartbeat(context.Background()), session.ErrNoSession)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Heartbeat(ctx), context.Canceled)
}

func TestClient_HeartbeatUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", session.NewStatic(&session.Session{Token: "tok"}), WithTimeout(200*time.Millisecond))
	assert.Error(t, c.Heartbeat(context.Background()))
}

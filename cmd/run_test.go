package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/pelusa-live/internal/activity"
	"github.com/pelusa-v/pelusa-live/internal/notify"
	"github.com/pelusa-v/pelusa-live/internal/realtime"
	"github.com/pelusa-v/pelusa-live/internal/session"
	"github.com/pelusa-v/pelusa-live/internal/storage"
)

func newTestREPL(t *testing.T) (*repl, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	term := newTerminal(out)
	sess := &session.Session{Token: "tok", User: session.User{ID: "u1"}}

	flags, err := storage.OpenFlags("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = flags.Close() })

	presenter, err := notify.NewPresenter(notify.DefaultConfig(), term, term, flags)
	require.NoError(t, err)

	src := activity.NewEmitter()
	r := &repl{
		term:      term,
		sess:      sess,
		mgr:       realtime.NewManager(realtime.DefaultConfig(), nil),
		src:       src,
		tracker:   activity.NewTracker(activity.DefaultConfig(), session.NewStatic(sess), src, nil),
		presenter: presenter,
	}
	return r, out
}

func TestREPL_OfflineCommandsReportDrop(t *testing.T) {
	r, out := newTestREPL(t)
	ctx := context.Background()

	assert.False(t, r.handle(ctx, "/join c1"))
	assert.Contains(t, out.String(), "join not sent")
	assert.Equal(t, "c1", r.mgr.CurrentConversation(), "scope is kept while offline")

	out.Reset()
	r.handle(ctx, "/dm")
	assert.Contains(t, out.String(), "usage: /dm")

	out.Reset()
	r.handle(ctx, "/bogus")
	assert.Contains(t, out.String(), "unknown command /bogus")

	assert.True(t, r.handle(ctx, "/quit"))
}

func TestREPL_VisibilityCommands(t *testing.T) {
	r, _ := newTestREPL(t)
	ctx := context.Background()

	r.handle(ctx, "/hide")
	assert.True(t, r.term.Hidden())
	r.handle(ctx, "/show")
	assert.False(t, r.term.Hidden())
}

func TestREPL_LoopStopsOnEOF(t *testing.T) {
	r, out := newTestREPL(t)

	lines := scanLines(bytes.NewBufferString("hello\n/notifications\n"))
	require.NoError(t, r.loop(context.Background(), lines))
	assert.Contains(t, out.String(), "no notifications")
}

func TestTerminal_Permission(t *testing.T) {
	term := newTerminal(&bytes.Buffer{})
	assert.Equal(t, notify.PermissionDefault, term.Permission())

	got, err := term.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, notify.PermissionGranted, got)
	assert.Equal(t, notify.PermissionGranted, term.Permission())
}

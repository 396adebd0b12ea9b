package devserver_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/pelusa-live/internal/api"
	"github.com/pelusa-v/pelusa-live/internal/devserver"
	"github.com/pelusa-v/pelusa-live/internal/protocol"
	"github.com/pelusa-v/pelusa-live/internal/realtime"
	"github.com/pelusa-v/pelusa-live/internal/session"
)

const secret = "e2e-secret"

func startServer(t *testing.T) (*devserver.Server, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := devserver.New(devserver.Config{Secret: secret})
	go func() { _ = srv.Listener(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return srv, "http://" + ln.Addr().String()
}

func login(t *testing.T, id, name string) *session.Session {
	t.Helper()
	token, err := devserver.SignToken(secret, session.User{ID: id, Username: name})
	require.NoError(t, err)
	sess, err := session.FromToken(token)
	require.NoError(t, err)
	return sess
}

func newManager(t *testing.T, origin string) *realtime.Manager {
	t.Helper()
	cfg := realtime.DefaultConfig()
	cfg.RealtimeURL = origin
	m := realtime.NewManager(cfg, realtime.NewWebsocketDialer(cfg))
	t.Cleanup(m.Disconnect)
	return m
}

func TestEndToEnd_ConversationFlow(t *testing.T) {
	srv, origin := startServer(t)
	ana, bea := login(t, "u1", "ana"), login(t, "u2", "bea")

	anaMgr := newManager(t, origin)
	typing := make(chan realtime.TypingEvent, 4)
	statuses := make(chan realtime.StatusEvent, 16)
	anaMgr.OnTyping(func(ev realtime.TypingEvent) { typing <- ev })
	anaMgr.OnUserStatus(func(ev realtime.StatusEvent) { statuses <- ev })

	anaMgr.JoinConversation("c1")
	anaMgr.Connect(context.Background(), ana)
	require.Eventually(t, anaMgr.IsConnected, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(srv.Hub().Members("c1")) == 1 }, 2*time.Second, 10*time.Millisecond)

	beaMgr := newManager(t, origin)
	beaMgr.Connect(context.Background(), bea)
	require.Eventually(t, beaMgr.IsConnected, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return waitJoined(statuses, "u2") }, 2*time.Second, 10*time.Millisecond)

	require.True(t, beaMgr.JoinConversation("c1"))
	require.Eventually(t, func() bool { return len(srv.Hub().Members("c1")) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.True(t, beaMgr.StartTyping())

	var ev realtime.TypingEvent
	select {
	case ev = <-typing:
	case <-time.After(2 * time.Second):
		t.Fatal("typing indicator not relayed")
	}
	assert.Equal(t, "c1", ev.ConversationID)
	assert.Equal(t, "u2", ev.UserID)
	assert.True(t, ev.IsTyping)

	client := api.NewClient(origin, session.NewStatic(bea))
	require.NoError(t, client.Heartbeat(context.Background()))
}

// waitJoined drains statuses and reports whether userID was seen online.
func waitJoined(statuses <-chan realtime.StatusEvent, userID string) bool {
	for {
		select {
		case ev := <-statuses:
			if p, ok := ev.(realtime.PresenceChanged); ok && p.UserID == userID && p.IsOnline {
				return true
			}
		default:
			return false
		}
	}
}

func TestEndToEnd_QueuedNotificationsArriveInOrder(t *testing.T) {
	srv, origin := startServer(t)
	for _, title := range []string{"first", "second", "third"} {
		delivered, err := srv.Hub().Notify(context.Background(), "u3", protocol.Notification{Title: title})
		require.NoError(t, err)
		require.False(t, delivered)
	}

	sess := login(t, "u3", "cid")
	m := newManager(t, origin)
	got := make(chan realtime.NotificationReceived, 8)
	m.OnMessage(func(ev realtime.MessageEvent) {
		if n, ok := ev.(realtime.NotificationReceived); ok {
			got <- n
		}
	})
	m.Connect(context.Background(), sess)

	var titles []string
	for i := 0; i < 3; i++ {
		select {
		case n := <-got:
			assert.True(t, n.Queued)
			titles = append(titles, n.Notification.Title)
		case <-time.After(2 * time.Second):
			t.Fatal("queued notification not delivered")
		}
	}
	assert.Equal(t, []string{"first", "second", "third"}, titles)
}

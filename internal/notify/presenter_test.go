package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/pelusa-live/internal/protocol"
	"github.com/pelusa-v/pelusa-live/internal/realtime"
)

type fakeHandle struct {
	mu     sync.Mutex
	closed int
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	h.closed++
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

type fakeNative struct {
	mu         sync.Mutex
	supported  bool
	permission Permission
	answer     Permission
	err        error
	shown      []NativeNotification
	handles    []*fakeHandle
}

func (n *fakeNative) Supported() bool { return n.supported }

func (n *fakeNative) Permission() Permission { return n.permission }

func (n *fakeNative) RequestPermission(context.Context) (Permission, error) {
	if n.err != nil {
		return "", n.err
	}
	n.permission = n.answer
	return n.answer, nil
}

func (n *fakeNative) Show(nn NativeNotification) (NativeHandle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	h := &fakeHandle{}
	n.shown = append(n.shown, nn)
	n.handles = append(n.handles, h)
	return h, nil
}

type fakeEnv struct {
	secure  bool
	hidden  bool
	focused int
	paths   []string
}

func (e *fakeEnv) SecureContext() bool { return e.secure }
func (e *fakeEnv) Hidden() bool        { return e.hidden }
func (e *fakeEnv) Focus()              { e.focused++ }
func (e *fakeEnv) Navigate(p string)   { e.paths = append(e.paths, p) }

type memFlags map[string]string

func (f memFlags) Get(key string) (string, bool, error) {
	v, ok := f[key]
	return v, ok, nil
}

func (f memFlags) Set(key, value string) error {
	f[key] = value
	return nil
}

type fakeSource struct {
	cb           func(realtime.MessageEvent)
	unsubscribed bool
}

func (s *fakeSource) OnMessage(cb func(realtime.MessageEvent)) func() {
	s.cb = cb
	return func() { s.unsubscribed = true }
}

type harness struct {
	clock  *clock.Mock
	native *fakeNative
	env    *fakeEnv
	flags  memFlags
	src    *fakeSource
	p      *Presenter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:  clock.NewMock(),
		native: &fakeNative{supported: true, permission: PermissionDefault, answer: PermissionGranted},
		env:    &fakeEnv{secure: true},
		flags:  memFlags{},
		src:    &fakeSource{},
	}
	p, err := NewPresenter(DefaultConfig(), h.native, h.env, h.flags,
		WithClock(h.clock), WithIDGenerator(func() string { return "local" }))
	require.NoError(t, err)
	h.p = p
	t.Cleanup(p.Unmount)
	return h
}

func (h *harness) deliver(n protocol.Notification) {
	h.src.cb(realtime.NotificationReceived{Notification: n})
}

func ids(list []protocol.Notification) []string {
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.ID
	}
	return out
}

func TestPresenter_CapsAtMostRecent(t *testing.T) {
	h := newHarness(t)
	h.p.Mount(h.src)

	for i := 1; i <= 15; i++ {
		h.deliver(protocol.Notification{ID: fmt.Sprintf("n%d", i)})
	}

	visible := h.p.Visible()
	require.Len(t, visible, 10)
	assert.Equal(t, "n15", visible[0].ID)
	assert.Equal(t, "n6", visible[9].ID)
	assert.Equal(t, 10, h.p.UnreadCount())
}

func TestPresenter_ItemsExpireIndependently(t *testing.T) {
	h := newHarness(t)
	h.p.Mount(h.src)

	h.deliver(protocol.Notification{ID: "a"})
	h.deliver(protocol.Notification{ID: "b"})
	h.clock.Add(3 * time.Second)
	h.deliver(protocol.Notification{ID: "c"})
	require.True(t, h.p.MarkAsRead("b"))

	h.clock.Add(2 * time.Second)
	require.Eventually(t, func() bool { return len(h.p.Visible()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"c", "b"}, ids(h.p.Visible()), "read items stay")

	h.clock.Add(3 * time.Second)
	require.Eventually(t, func() bool { return len(h.p.Visible()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"b"}, ids(h.p.Visible()))
	assert.Zero(t, h.p.UnreadCount())
}

func TestPresenter_NormalizesPayload(t *testing.T) {
	h := newHarness(t)
	h.p.Mount(h.src)
	h.clock.Set(time.UnixMilli(1700000000000))

	h.deliver(protocol.Notification{
		Title: "New <b>order</b>",
		Body:  "<p>Hello <strong>Ana</strong></p><script>alert(1)</script>",
	})
	h.deliver(protocol.Notification{ID: "dup"})
	h.deliver(protocol.Notification{ID: "dup", Title: "again"})

	visible := h.p.Visible()
	require.Len(t, visible, 2)
	got := visible[1]
	assert.Equal(t, "1700000000000-local", got.ID)
	assert.Equal(t, "New order", got.Title)
	assert.Equal(t, "Hello Ana", got.Body)
	assert.Equal(t, h.clock.Now(), got.CreatedAt)
	assert.Empty(t, visible[0].Title, "duplicate id is ignored")
}

func TestPresenter_IgnoresOtherMessageEvents(t *testing.T) {
	h := newHarness(t)
	h.p.Mount(h.src)

	h.src.cb(realtime.NewMessage{})
	assert.Empty(t, h.p.Visible())

	h.p.Unmount()
	assert.True(t, h.src.unsubscribed)
}

func TestPresenter_NativeBridge(t *testing.T) {
	h := newHarness(t)
	h.native.permission = PermissionGranted
	h.p.Mount(h.src)

	h.deliver(protocol.Notification{ID: "visible-tab"})
	assert.Empty(t, h.native.shown, "no OS notification while the app is visible")

	h.env.hidden = true
	h.deliver(protocol.Notification{ID: "n1", Title: "Message", Data: map[string]any{"conversationId": "c7"}})
	require.Len(t, h.native.shown, 1)
	shown := h.native.shown[0]
	assert.Equal(t, "n1", shown.Tag)
	assert.False(t, shown.Silent)
	assert.Equal(t, DefaultConfig().Icon, shown.Icon)

	shown.OnClick()
	assert.Equal(t, 1, h.env.focused)
	assert.Equal(t, []string{"/messages/c7"}, h.env.paths)
	assert.Equal(t, 1, h.native.handles[0].closeCount())
	assert.Equal(t, 1, h.p.UnreadCount(), "clicked item is read")

	h.deliver(protocol.Notification{ID: "n2"})
	h.clock.Add(4 * time.Second)
	require.Eventually(t, func() bool { return h.native.handles[1].closeCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPresenter_PermissionFlow(t *testing.T) {
	tests := []struct {
		name          string
		secure        bool
		supported     bool
		answer        Permission
		wantMessage   BannerMessage
		wantVisible   bool
		wantPersisted bool
	}{
		{name: "insecure context", secure: false, supported: true, wantMessage: BannerInsecure, wantVisible: true, wantPersisted: true},
		{name: "unsupported platform", secure: true, supported: false, wantMessage: BannerUnsupported, wantVisible: true, wantPersisted: true},
		{name: "granted", secure: true, supported: true, answer: PermissionGranted, wantMessage: BannerNone},
		{name: "declined keeps banner", secure: true, supported: true, answer: PermissionDenied, wantMessage: BannerPrompt, wantVisible: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.env.secure = tt.secure
			h.native.supported = tt.supported
			h.native.answer = tt.answer
			h.native.permission = PermissionDefault
			h.p.Mount(h.src)

			h.p.RequestPermission(context.Background())

			assert.Equal(t, tt.wantMessage, h.p.BannerMessage())
			assert.Equal(t, tt.wantVisible, h.p.BannerVisible())
			_, persisted := h.flags[BannerDismissedKey]
			assert.Equal(t, tt.wantPersisted, persisted)
		})
	}
}

func TestPresenter_PermissionErrorIsSwallowed(t *testing.T) {
	h := newHarness(t)
	h.native.err = errors.New("prompt blocked")
	h.p.Mount(h.src)

	assert.NotPanics(t, func() { h.p.RequestPermission(context.Background()) })
	assert.Equal(t, PermissionDefault, h.p.Permission())
	assert.True(t, h.p.BannerVisible())
}

func TestPresenter_DismissalPersistsAcrossMounts(t *testing.T) {
	h := newHarness(t)
	h.p.Mount(h.src)
	require.True(t, h.p.BannerVisible())

	h.p.DismissBanner()
	assert.False(t, h.p.BannerVisible())
	assert.Equal(t, "true", h.flags[BannerDismissedKey])

	next, err := NewPresenter(DefaultConfig(), h.native, h.env, h.flags, WithClock(h.clock))
	require.NoError(t, err)
	next.Mount(&fakeSource{})
	defer next.Unmount()
	assert.False(t, next.BannerVisible())
}

func TestPresenter_LocalMutationsNotify(t *testing.T) {
	h := newHarness(t)
	h.p.Mount(h.src)
	changes := 0
	stop := h.p.OnChange(func() { changes++ })

	h.deliver(protocol.Notification{ID: "a"})
	h.deliver(protocol.Notification{ID: "b"})
	assert.True(t, h.p.Dismiss("a"))
	assert.False(t, h.p.Dismiss("a"))
	h.p.ClearAll()
	assert.Empty(t, h.p.Visible())
	assert.Equal(t, 4, changes)

	stop()
	h.deliver(protocol.Notification{ID: "c"})
	assert.Equal(t, 4, changes)
}

func TestPresenter_RemountStartsEmptyAndExpires(t *testing.T) {
	h := newHarness(t)
	h.p.Mount(h.src)
	h.deliver(protocol.Notification{ID: "old"})

	changes := 0
	stop := h.p.OnChange(func() { changes++ })
	defer stop()

	h.p.Unmount()
	assert.Empty(t, h.p.Visible())
	assert.Equal(t, 1, changes)

	h.p.Mount(h.src)
	h.deliver(protocol.Notification{ID: "new"})
	require.Equal(t, []string{"new"}, ids(h.p.Visible()))

	h.clock.Add(DefaultConfig().DisplayWindow)
	require.Eventually(t, func() bool { return len(h.p.Visible()) == 0 }, time.Second, 5*time.Millisecond)
}

// Package notify surfaces notifications from the realtime stream as an
// in-app list and, when the app is hidden, as OS notifications.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	nanoid "github.com/jaevor/go-nanoid"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-live/internal/protocol"
	"github.com/pelusa-v/pelusa-live/internal/realtime"
	"github.com/pelusa-v/pelusa-live/internal/telemetry"
)

// BannerDismissedKey is the persisted flag hiding the permission banner.
const (
	BannerDismissedKey = "notification-banner-dismissed"
	dismissedValue     = "true"
)

// BannerMessage selects what the permission banner shows.
type BannerMessage string

const (
	BannerNone        BannerMessage = ""
	BannerPrompt      BannerMessage = "prompt"
	BannerInsecure    BannerMessage = "insecure"
	BannerUnsupported BannerMessage = "unsupported"
)

// MessageSource is the subscription half of realtime.Manager.
type MessageSource interface {
	OnMessage(cb func(realtime.MessageEvent)) func()
}

type Config struct {
	MaxVisible    int
	DisplayWindow time.Duration
	NativeWindow  time.Duration
	Icon          string
	Badge         string
}

func DefaultConfig() Config {
	return Config{
		MaxVisible:    10,
		DisplayWindow: 5 * time.Second,
		NativeWindow:  4 * time.Second,
		Icon:          "/icon-192.png",
		Badge:         "/badge-72.png",
	}
}

type item struct {
	n     protocol.Notification
	timer *clock.Timer
}

type Presenter struct {
	cfg     Config
	native  Native
	env     Environment
	flags   FlagStore
	clock   clock.Clock
	logger  *zap.Logger
	metrics *telemetry.Metrics
	newID   func() string

	mu          sync.Mutex
	items       []*item
	permission  Permission
	dismissed   bool
	banner      BannerMessage
	unsubscribe func()
	listeners   map[uint64]func()
	nextID      uint64
}

type Option func(*Presenter)

func WithClock(c clock.Clock) Option          { return func(p *Presenter) { p.clock = c } }
func WithLogger(l *zap.Logger) Option         { return func(p *Presenter) { p.logger = l } }
func WithMetrics(m *telemetry.Metrics) Option { return func(p *Presenter) { p.metrics = m } }

// WithIDGenerator replaces the random part of local ids.
func WithIDGenerator(gen func() string) Option { return func(p *Presenter) { p.newID = gen } }

func NewPresenter(cfg Config, native Native, env Environment, flags FlagStore, opts ...Option) (*Presenter, error) {
	def := DefaultConfig()
	if cfg.MaxVisible <= 0 {
		cfg.MaxVisible = def.MaxVisible
	}
	if cfg.DisplayWindow <= 0 {
		cfg.DisplayWindow = def.DisplayWindow
	}
	if cfg.NativeWindow <= 0 {
		cfg.NativeWindow = def.NativeWindow
	}

	p := &Presenter{
		cfg:        cfg,
		native:     native,
		env:        env,
		flags:      flags,
		clock:      clock.New(),
		logger:     zap.NewNop(),
		permission: PermissionUnsupported,
		listeners:  map[uint64]func(){},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.newID == nil {
		gen, err := nanoid.Standard(12)
		if err != nil {
			return nil, fmt.Errorf("notification id generator: %w", err)
		}
		p.newID = gen
	}
	return p, nil
}

// Mount reads the permission state and the dismissal flag, then starts
// listening for notifications on src. Mounting twice is a no-op.
func (p *Presenter) Mount(src MessageSource) {
	perm := p.currentPermission()
	dismissed := false
	if p.flags != nil {
		v, ok, err := p.flags.Get(BannerDismissedKey)
		if err != nil {
			p.logger.Warn("read banner flag", zap.Error(err))
		}
		dismissed = ok && v == dismissedValue
	}

	p.mu.Lock()
	if p.unsubscribe != nil {
		p.mu.Unlock()
		return
	}
	p.permission = perm
	p.dismissed = dismissed
	p.banner = BannerNone
	if perm == PermissionDefault {
		p.banner = BannerPrompt
	}
	p.unsubscribe = src.OnMessage(p.onMessage)
	p.mu.Unlock()

	p.logger.Debug("notification presenter mounted",
		zap.String("permission", string(perm)), zap.Bool("bannerDismissed", dismissed))
	p.changed()
}

// Unmount stops listening and drops the visible list along with its
// pending auto-removals. A later Mount starts from an empty list.
func (p *Presenter) Unmount() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	dropped := len(p.items) > 0
	for _, it := range p.items {
		it.stop()
	}
	p.items = nil
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if dropped {
		p.changed()
	}
}

func (p *Presenter) onMessage(ev realtime.MessageEvent) {
	if n, ok := ev.(realtime.NotificationReceived); ok {
		p.Push(n.Notification)
	}
}

// Push normalizes n and adds it to the visible list. A notification whose
// id is already visible is ignored.
func (p *Presenter) Push(n protocol.Notification) {
	n.Body = StripMarkup(n.Body)
	n.Title = StripMarkup(n.Title)
	now := p.clock.Now()
	if n.ID == "" {
		n.ID = fmt.Sprintf("%d-%s", now.UnixMilli(), p.newID())
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}

	p.mu.Lock()
	if p.indexLocked(n.ID) >= 0 {
		p.mu.Unlock()
		return
	}
	it := &item{n: n}
	id := n.ID
	it.timer = p.clock.AfterFunc(p.cfg.DisplayWindow, func() { p.expire(id) })
	p.items = append([]*item{it}, p.items...)
	for len(p.items) > p.cfg.MaxVisible {
		last := p.items[len(p.items)-1]
		last.stop()
		p.items = p.items[:len(p.items)-1]
	}
	showNative := p.permission == PermissionGranted && p.env != nil && p.env.Hidden()
	p.mu.Unlock()

	p.metrics.Notification(telemetry.SurfaceInApp)
	if showNative {
		p.showNative(n)
	}
	p.changed()
}

func (p *Presenter) expire(id string) {
	p.mu.Lock()
	i := p.indexLocked(id)
	if i < 0 || p.items[i].n.Read {
		p.mu.Unlock()
		return
	}
	p.items = append(p.items[:i], p.items[i+1:]...)
	p.mu.Unlock()
	p.changed()
}

func (p *Presenter) showNative(n protocol.Notification) {
	var (
		once   sync.Once
		handle NativeHandle
		hmu    sync.Mutex
	)
	closeIt := func() {
		once.Do(func() {
			hmu.Lock()
			h := handle
			hmu.Unlock()
			if h != nil {
				_ = h.Close()
			}
		})
	}

	path := NavigationPath(n)
	h, err := p.native.Show(NativeNotification{
		Title: n.Title,
		Body:  n.Body,
		Icon:  p.cfg.Icon,
		Badge: p.cfg.Badge,
		Tag:   n.ID,
		OnClick: func() {
			p.env.Focus()
			p.env.Navigate(path)
			p.MarkAsRead(n.ID)
			closeIt()
		},
	})
	if err != nil {
		p.logger.Warn("native notification failed", zap.String("id", n.ID), zap.Error(err))
		return
	}
	hmu.Lock()
	handle = h
	hmu.Unlock()
	p.metrics.Notification(telemetry.SurfaceNative)
	p.clock.AfterFunc(p.cfg.NativeWindow, closeIt)
}

// RequestPermission runs the permission flow. Insecure or unsupported
// environments switch the banner to an informational message and persist
// its dismissal. Errors are logged only.
func (p *Presenter) RequestPermission(ctx context.Context) {
	switch {
	case p.env == nil || !p.env.SecureContext():
		p.settle(BannerInsecure, PermissionUnsupported)
		return
	case p.native == nil || !p.native.Supported():
		p.settle(BannerUnsupported, PermissionUnsupported)
		return
	}

	perm, err := p.native.RequestPermission(ctx)
	if err != nil {
		p.logger.Warn("notification permission request failed", zap.Error(err))
		return
	}

	p.mu.Lock()
	p.permission = perm
	switch perm {
	case PermissionDefault:
		p.banner = BannerPrompt
	case PermissionGranted:
		p.banner = BannerNone
	}
	p.mu.Unlock()
	p.logger.Info("notification permission updated", zap.String("permission", string(perm)))
	p.changed()
}

func (p *Presenter) settle(msg BannerMessage, perm Permission) {
	p.mu.Lock()
	p.banner = msg
	p.permission = perm
	p.mu.Unlock()
	p.persistDismissal()
	p.changed()
}

func (p *Presenter) persistDismissal() {
	if p.flags == nil {
		return
	}
	if err := p.flags.Set(BannerDismissedKey, dismissedValue); err != nil {
		p.logger.Warn("persist banner flag", zap.Error(err))
	}
}

// BannerVisible reports whether the permission banner should show.
func (p *Presenter) BannerVisible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bannerVisibleLocked()
}

func (p *Presenter) bannerVisibleLocked() bool {
	switch p.banner {
	case BannerInsecure, BannerUnsupported:
		return true
	case BannerNone:
		return false
	}
	return !p.dismissed && p.permission != PermissionGranted
}

func (p *Presenter) BannerMessage() BannerMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.bannerVisibleLocked() {
		return BannerNone
	}
	return p.banner
}

// DismissBanner hides the banner and remembers it across runs.
func (p *Presenter) DismissBanner() {
	p.mu.Lock()
	p.dismissed = true
	p.banner = BannerNone
	p.mu.Unlock()
	p.persistDismissal()
	p.changed()
}

func (p *Presenter) Permission() Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permission
}

// MarkAsRead keeps the item visible past its display window.
func (p *Presenter) MarkAsRead(id string) bool {
	p.mu.Lock()
	i := p.indexLocked(id)
	if i < 0 || p.items[i].n.Read {
		p.mu.Unlock()
		return false
	}
	p.items[i].n.Read = true
	p.items[i].stop()
	p.mu.Unlock()
	p.changed()
	return true
}

func (p *Presenter) Dismiss(id string) bool {
	p.mu.Lock()
	i := p.indexLocked(id)
	if i < 0 {
		p.mu.Unlock()
		return false
	}
	p.items[i].stop()
	p.items = append(p.items[:i], p.items[i+1:]...)
	p.mu.Unlock()
	p.changed()
	return true
}

func (p *Presenter) ClearAll() {
	p.mu.Lock()
	for _, it := range p.items {
		it.stop()
	}
	p.items = nil
	p.mu.Unlock()
	p.changed()
}

// Visible returns the list, most recent first.
func (p *Presenter) Visible() []protocol.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]protocol.Notification, len(p.items))
	for i, it := range p.items {
		out[i] = it.n
	}
	return out
}

func (p *Presenter) UnreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, it := range p.items {
		if !it.n.Read {
			n++
		}
	}
	return n
}

// OnChange registers fn to run after every list or banner change.
func (p *Presenter) OnChange(fn func()) func() {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Presenter) changed() {
	p.mu.Lock()
	fns := make([]func(), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (p *Presenter) currentPermission() Permission {
	if p.native == nil || !p.native.Supported() {
		return PermissionUnsupported
	}
	return p.native.Permission()
}

func (p *Presenter) indexLocked(id string) int {
	for i, it := range p.items {
		if it.n.ID == id {
			return i
		}
	}
	return -1
}

func (it *item) stop() {
	if it.timer != nil {
		it.timer.Stop()
	}
}

// Package activity infers whether the local user is present and reports
// liveness to the heartbeat endpoint without flooding it.
package activity

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-live/internal/session"
	"github.com/pelusa-v/pelusa-live/internal/telemetry"
	"github.com/pelusa-v/pelusa-live/internal/throttle"
)

// HeartbeatSender delivers one heartbeat. api.Client implements it.
type HeartbeatSender interface {
	Heartbeat(ctx context.Context) error
}

type Config struct {
	HeartbeatInterval   time.Duration
	InactivityThreshold time.Duration
	ThrottleInterval    time.Duration
	RecentWindow        time.Duration
	RequestTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:   60 * time.Second,
		InactivityThreshold: 5 * time.Minute,
		ThrottleInterval:    time.Second,
		RecentWindow:        60 * time.Second,
		RequestTimeout:      10 * time.Second,
	}
}

// Status is a point-in-time view of local activity.
type Status struct {
	IsActive              bool          `json:"isActive"`
	TimeSinceLastActivity time.Duration `json:"timeSinceLastActivity"`
	IsRecentlyActive      bool          `json:"isRecentlyActive"`
}

type Tracker struct {
	cfg      Config
	sessions session.Provider
	src      Source
	sender   HeartbeatSender
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *telemetry.Metrics

	mu           sync.Mutex
	lastActivity time.Time
	visible      bool
	running      bool
	detach       []func()
	throttle     *throttle.Throttle[Kind]
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

type Option func(*Tracker)

func WithClock(c clock.Clock) Option          { return func(t *Tracker) { t.clock = c } }
func WithLogger(l *zap.Logger) Option         { return func(t *Tracker) { t.logger = l } }
func WithMetrics(m *telemetry.Metrics) Option { return func(t *Tracker) { t.metrics = m } }

func NewTracker(cfg Config, sessions session.Provider, src Source, sender HeartbeatSender, opts ...Option) *Tracker {
	def := DefaultConfig()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.InactivityThreshold <= 0 {
		cfg.InactivityThreshold = def.InactivityThreshold
	}
	if cfg.ThrottleInterval <= 0 {
		cfg.ThrottleInterval = def.ThrottleInterval
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = def.RecentWindow
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}

	t := &Tracker{
		cfg:      cfg,
		sessions: sessions,
		src:      src,
		sender:   sender,
		clock:    clock.New(),
		logger:   zap.NewNop(),
		visible:  true,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.lastActivity = t.clock.Now()
	return t
}

// Init attaches listeners and starts the heartbeat ticker. It does nothing
// without a session or when already running.
func (t *Tracker) Init() {
	if _, ok := t.sessions.Current(); !ok {
		t.logger.Debug("activity tracker not started: no session")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.lastActivity = t.clock.Now()
	t.visible = true

	t.throttle = throttle.New(t.cfg.ThrottleInterval, t.touch, throttle.WithClock(t.clock))
	t.detach = []func(){
		t.src.Listen(TrackedKinds, t.throttle.Call),
		t.src.OnVisibilityChange(t.onVisibility),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	ticker := t.clock.Ticker(t.cfg.HeartbeatInterval)
	t.wg.Add(1)
	go t.loop(ctx, ticker)

	t.logger.Info("activity tracker started",
		zap.Duration("interval", t.cfg.HeartbeatInterval),
		zap.Duration("inactivityThreshold", t.cfg.InactivityThreshold))
}

// Stop cancels the ticker and any heartbeat in flight, then detaches
// listeners. Safe when not running.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.cancel()
	for _, detach := range t.detach {
		detach()
	}
	t.detach = nil
	t.throttle.Stop()
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info("activity tracker stopped")
}

// Running reports whether Init has started the tracker.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// ForceUpdate sends one heartbeat now, ignoring inactivity and cadence.
func (t *Tracker) ForceUpdate(ctx context.Context) {
	t.send(ctx, "forced")
}

// ActivityStatus has no side effects and may be called before Init.
func (t *Tracker) ActivityStatus() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	since := t.clock.Since(t.lastActivity)
	return Status{
		IsActive:              t.visible && since <= t.cfg.InactivityThreshold,
		TimeSinceLastActivity: since,
		IsRecentlyActive:      since <= t.cfg.RecentWindow,
	}
}

// LastActivity returns the time of the last observed interaction.
func (t *Tracker) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActivity
}

func (t *Tracker) loop(ctx context.Context, ticker *clock.Ticker) {
	defer t.wg.Done()
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Tracker) tick(ctx context.Context) {
	t.mu.Lock()
	idle := t.clock.Since(t.lastActivity)
	t.mu.Unlock()

	if idle > t.cfg.InactivityThreshold {
		t.metrics.Heartbeat(telemetry.HeartbeatSkipped)
		t.logger.Debug("heartbeat skipped: user inactive", zap.Duration("idle", idle))
		return
	}
	t.send(ctx, "tick")
}

func (t *Tracker) send(parent context.Context, reason string) {
	ctx, cancel := context.WithTimeout(parent, t.cfg.RequestTimeout)
	defer cancel()

	if err := t.sender.Heartbeat(ctx); err != nil {
		t.metrics.Heartbeat(telemetry.HeartbeatFailed)
		t.logger.Warn("heartbeat failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	t.metrics.Heartbeat(telemetry.HeartbeatSent)
}

func (t *Tracker) touch(Kind) {
	t.mu.Lock()
	t.lastActivity = t.clock.Now()
	t.mu.Unlock()
}

func (t *Tracker) onVisibility(visible bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible = visible
	if visible {
		t.lastActivity = t.clock.Now()
	}
}

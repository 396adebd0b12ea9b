// Package debugpanel serves a local view of the realtime layer: connection
// glyph, activity, the visible notifications and prometheus metrics.
package debugpanel

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-live/internal/activity"
	"github.com/pelusa-v/pelusa-live/internal/protocol"
	"github.com/pelusa-v/pelusa-live/internal/realtime"
)

type Connection interface {
	State() realtime.State
	IsConnected() bool
	CurrentConversation() string
}

type Activity interface {
	ActivityStatus() activity.Status
}

type Notifications interface {
	Visible() []protocol.Notification
	UnreadCount() int
	MarkAsRead(id string) bool
	ClearAll()
}

// Glyph is the colored indicator for a connection state.
func Glyph(s realtime.State) (glyph, color string) {
	switch s {
	case realtime.StateConnected:
		return "●", "green"
	case realtime.StateConnecting:
		return "◐", "yellow"
	case realtime.StateClosed:
		return "○", "gray"
	default:
		return "●", "red"
	}
}

type Panel struct {
	app    *fiber.App
	conn   Connection
	act    Activity
	notes  Notifications
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Panel)

func WithLogger(l *zap.Logger) Option { return func(p *Panel) { p.logger = l } }

// New wires the routes. act and notes may be nil when the component is not
// running; gatherer may be nil to omit /metrics.
func New(conn Connection, act Activity, notes Notifications, gatherer prometheus.Gatherer, opts ...Option) *Panel {
	p := &Panel{conn: conn, act: act, notes: notes, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	p.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	p.app.Get("/status", p.StatusHandler)
	p.app.Get("/notifications", p.NotificationsHandler)
	p.app.Post("/notifications/clear", p.ClearHandler)
	p.app.Post("/notifications/:id/read", p.MarkReadHandler)
	if gatherer != nil {
		p.app.Get("/metrics", wrapHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return p
}

func wrapHTTPHandler(h http.Handler) fiber.Handler {
	serve := fasthttpadaptor.NewFastHTTPHandler(h)
	return func(c *fiber.Ctx) error {
		serve(c.Context())
		return nil
	}
}

func (p *Panel) App() *fiber.App { return p.app }

func (p *Panel) Listen(addr string) error {
	p.logger.Info("debug panel listening", zap.String("addr", addr))
	return p.app.Listen(addr)
}

func (p *Panel) Shutdown() error { return p.app.Shutdown() }

type activityJSON struct {
	IsActive         bool   `json:"isActive"`
	IsRecentlyActive bool   `json:"isRecentlyActive"`
	IdleSeconds      int64  `json:"idleSeconds"`
	LastActivity     string `json:"lastActivity"`
}

type statusJSON struct {
	State        string        `json:"state"`
	Glyph        string        `json:"glyph"`
	Color        string        `json:"color"`
	Connected    bool          `json:"connected"`
	Conversation string        `json:"conversation,omitempty"`
	Unread       int           `json:"unread"`
	Activity     *activityJSON `json:"activity,omitempty"`
}

// StatusHandler GET /status
func (p *Panel) StatusHandler(c *fiber.Ctx) error {
	state := p.conn.State()
	glyph, color := Glyph(state)
	out := statusJSON{
		State:        state.String(),
		Glyph:        glyph,
		Color:        color,
		Connected:    p.conn.IsConnected(),
		Conversation: p.conn.CurrentConversation(),
	}
	if p.notes != nil {
		out.Unread = p.notes.UnreadCount()
	}
	if p.act != nil {
		st := p.act.ActivityStatus()
		now := p.now()
		out.Activity = &activityJSON{
			IsActive:         st.IsActive,
			IsRecentlyActive: st.IsRecentlyActive,
			IdleSeconds:      int64(st.TimeSinceLastActivity / time.Second),
			LastActivity:     humanize.RelTime(now.Add(-st.TimeSinceLastActivity), now, "ago", "from now"),
		}
	}
	return c.JSON(out)
}

// NotificationsHandler GET /notifications
func (p *Panel) NotificationsHandler(c *fiber.Ctx) error {
	if p.notes == nil {
		return c.JSON([]protocol.Notification{})
	}
	return c.JSON(p.notes.Visible())
}

// MarkReadHandler POST /notifications/:id/read
func (p *Panel) MarkReadHandler(c *fiber.Ctx) error {
	if p.notes == nil || !p.notes.MarkAsRead(c.Params("id")) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ClearHandler POST /notifications/clear
func (p *Panel) ClearHandler(c *fiber.Ctx) error {
	if p.notes != nil {
		p.notes.ClearAll()
	}
	return c.SendStatus(fiber.StatusNoContent)
}

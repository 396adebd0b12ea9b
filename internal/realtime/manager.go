// Package realtime owns the single live connection to the realtime endpoint:
// inbound events are fanned out to subscribers, outbound intents are sent
// only when a connection and the required conversation scope exist.
package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-live/internal/protocol"
	"github.com/pelusa-v/pelusa-live/internal/session"
	"github.com/pelusa-v/pelusa-live/internal/telemetry"
)

type Config struct {
	RealtimeURL     string
	APIURL          string
	PageHost        string
	ProductionURL   string
	ProductionHosts []string
	LocalURL        string
	Path            string

	HandshakeTimeout time.Duration
	PingPeriod       time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	ReadLimit        int64
	SendBuffer       int

	Reconnect ReconnectConfig
}

type ReconnectConfig struct {
	Enabled    bool
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries uint64
}

func DefaultConfig() Config {
	return Config{
		ProductionURL:    "https://api.pelusa.app",
		ProductionHosts:  []string{"pelusa.app", "www.pelusa.app"},
		LocalURL:         "http://localhost:5000",
		Path:             "/ws",
		HandshakeTimeout: 10 * time.Second,
		PingPeriod:       54 * time.Second,
		PongWait:         60 * time.Second,
		WriteWait:        10 * time.Second,
		ReadLimit:        1 << 20,
		SendBuffer:       64,
		Reconnect: ReconnectConfig{
			Enabled:    true,
			BaseDelay:  time.Second,
			MaxDelay:   30 * time.Second,
			MaxRetries: 8,
		},
	}
}

type Manager struct {
	cfg     Config
	dialer  Dialer
	logger  *zap.Logger
	metrics *telemetry.Metrics

	messages  *registry[func(MessageEvent)]
	statuses  *registry[func(StatusEvent)]
	typing    *registry[func(TypingEvent)]
	lifecycle *registry[func(State)]

	mu           sync.Mutex
	state        State
	gen          uint64
	cancel       context.CancelFunc
	conn         *liveConn
	conversation string
}

type Option func(*Manager)

func WithLogger(l *zap.Logger) Option          { return func(m *Manager) { m.logger = l } }
func WithMetrics(mt *telemetry.Metrics) Option { return func(m *Manager) { m.metrics = mt } }

func NewManager(cfg Config, dialer Dialer, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.LocalURL == "" {
		cfg.LocalURL = def.LocalURL
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = def.PingPeriod
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.Reconnect.BaseDelay <= 0 {
		cfg.Reconnect.BaseDelay = def.Reconnect.BaseDelay
	}
	if cfg.Reconnect.MaxDelay <= 0 {
		cfg.Reconnect.MaxDelay = def.Reconnect.MaxDelay
	}

	m := &Manager{
		cfg:       cfg,
		dialer:    dialer,
		logger:    zap.NewNop(),
		messages:  newRegistry[func(MessageEvent)]("message"),
		statuses:  newRegistry[func(StatusEvent)]("status"),
		typing:    newRegistry[func(TypingEvent)]("typing"),
		lifecycle: newRegistry[func(State)]("lifecycle"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.metrics.ConnectionState(int(StateIdle))
	return m
}

// Connect starts connecting with the session's token and returns at once.
// It is ignored while connecting or connected. Failures are reported through
// OnStateChange and the log, never to the caller. The connection lives until
// Disconnect or until ctx is cancelled; cancellation leaves the manager idle.
func (m *Manager) Connect(ctx context.Context, sess *session.Session) {
	if sess == nil || sess.Token == "" {
		m.logger.Debug("realtime connect skipped: no session")
		return
	}

	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return
	}
	endpoint, err := ResolveEndpoint(m.cfg)
	if err != nil {
		m.mu.Unlock()
		m.logger.Error("realtime connect failed", zap.Error(err))
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.gen++
	gen := m.gen
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.state = StateConnecting
	m.mu.Unlock()

	m.announce(StateConnecting)
	m.logger.Info("realtime connecting", zap.String("endpoint", endpoint), zap.String("userId", sess.User.ID))
	go m.run(runCtx, gen, endpoint, sess.Token)
}

// Disconnect closes the connection, forgets the conversation and removes
// every subscriber. Lifecycle subscribers see StateClosed before removal.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.gen++
	cancel, lc := m.cancel, m.conn
	m.cancel, m.conn = nil, nil
	m.conversation = ""
	m.state = StateClosed
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if lc != nil {
		lc.close()
	}
	m.announce(StateClosed)

	m.messages.clear()
	m.statuses.clear()
	m.typing.clear()
	m.lifecycle.clear()
	m.logger.Info("realtime disconnected")
}

func (m *Manager) OnMessage(cb func(MessageEvent)) func()   { return m.messages.add(cb) }
func (m *Manager) OnUserStatus(cb func(StatusEvent)) func() { return m.statuses.add(cb) }
func (m *Manager) OnTyping(cb func(TypingEvent)) func()     { return m.typing.add(cb) }
func (m *Manager) OnStateChange(cb func(State)) func()      { return m.lifecycle.add(cb) }

// IsConnected reports the last-known connection flag.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentConversation returns the joined conversation id, or "".
func (m *Manager) CurrentConversation() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversation
}

// JoinConversation records id as the current scope and announces it when
// connected. The scope is kept while offline and re-announced on connect.
func (m *Manager) JoinConversation(id string) bool {
	if id == "" {
		return false
	}
	m.mu.Lock()
	m.conversation = id
	m.mu.Unlock()
	return m.emit(protocol.EventJoinConversation, protocol.ConversationRef{ConversationID: id})
}

// LeaveConversation always clears the scope; it announces only when there
// was one and the connection is up.
func (m *Manager) LeaveConversation() bool {
	m.mu.Lock()
	id := m.conversation
	m.conversation = ""
	m.mu.Unlock()
	if id == "" {
		return false
	}
	return m.emit(protocol.EventLeaveConversation, protocol.ConversationRef{ConversationID: id})
}

func (m *Manager) StartTyping() bool {
	return m.emitScoped(protocol.EventTypingStart, func(id string) any {
		return protocol.ConversationRef{ConversationID: id}
	})
}

func (m *Manager) StopTyping() bool {
	return m.emitScoped(protocol.EventTypingStop, func(id string) any {
		return protocol.ConversationRef{ConversationID: id}
	})
}

func (m *Manager) MarkMessageAsRead(messageID string) bool {
	return m.emitScoped(protocol.EventMessageRead, func(id string) any {
		return protocol.MessageReadRequest{ConversationID: id, MessageID: messageID}
	})
}

func (m *Manager) SendDirectMessage(recipientID, content string) bool {
	if recipientID == "" {
		return false
	}
	return m.emit(protocol.EventSendDirectMessage, protocol.DirectMessageRequest{
		RecipientID: recipientID,
		Content:     content,
	})
}

func (m *Manager) RequestConversationStatus(conversationID string) bool {
	if conversationID == "" {
		return false
	}
	return m.emit(protocol.EventGetConversationStatus, protocol.ConversationRef{ConversationID: conversationID})
}

func (m *Manager) emitScoped(event string, payload func(conversationID string) any) bool {
	id := m.CurrentConversation()
	if id == "" {
		m.metrics.Dropped(event)
		return false
	}
	return m.emit(event, payload(id))
}

// emit queues a frame on the live connection. Without one the intent is
// dropped.
func (m *Manager) emit(event string, payload any) bool {
	m.mu.Lock()
	lc := m.conn
	m.mu.Unlock()
	if lc == nil {
		m.metrics.Dropped(event)
		return false
	}

	frame, err := protocol.Encode(event, payload)
	if err != nil {
		m.logger.Error("encode outbound event", zap.String("event", event), zap.Error(err))
		return false
	}
	if !lc.enqueue(frame) {
		m.metrics.Dropped(event)
		m.logger.Warn("outbound event dropped", zap.String("event", event))
		return false
	}
	return true
}

// transition moves to st unless a newer Connect or a Disconnect superseded gen.
func (m *Manager) transition(gen uint64, st State) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.state = st
	m.mu.Unlock()
	m.announce(st)
}

func (m *Manager) announce(st State) {
	m.metrics.ConnectionState(int(st))
	dispatch(m, m.lifecycle, st)
}

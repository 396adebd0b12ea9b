package realtime

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-live/internal/protocol"
)

// run owns one Connect call: dial, serve, and redial after drops until ctx is
// cancelled or retries run out. Every exit leaves the manager idle unless a
// newer Connect or a Disconnect took over.
func (m *Manager) run(ctx context.Context, gen uint64, endpoint, token string) {
	conn, err := m.dialer.Dial(ctx, endpoint, token)
	if err != nil {
		m.connectFailed(ctx, gen, err)
		return
	}

	for {
		m.serve(ctx, gen, conn)
		if ctx.Err() != nil {
			m.transition(gen, StateIdle)
			return
		}
		if !m.cfg.Reconnect.Enabled {
			m.transition(gen, StateIdle)
			return
		}

		m.transition(gen, StateConnecting)
		conn, err = m.redial(ctx, endpoint, token)
		if err != nil {
			m.connectFailed(ctx, gen, err)
			return
		}
	}
}

// serve publishes conn as the live connection and blocks until it drops.
func (m *Manager) serve(ctx context.Context, gen uint64, conn Conn) {
	lc := newLiveConn(conn, m.cfg.SendBuffer)

	m.mu.Lock()
	if m.gen != gen || ctx.Err() != nil {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = lc
	m.state = StateConnected
	conversation := m.conversation
	m.mu.Unlock()

	m.logger.Info("realtime connected")
	m.announce(StateConnected)
	if conversation != "" {
		m.emit(protocol.EventJoinConversation, protocol.ConversationRef{ConversationID: conversation})
	}

	go m.writePump(lc)
	m.readPump(ctx, lc)
	lc.close()

	m.mu.Lock()
	if m.conn == lc {
		m.conn = nil
	}
	m.mu.Unlock()
}

func (m *Manager) redial(ctx context.Context, endpoint, token string) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.cfg.Reconnect.BaseDelay):
	}

	var conn Conn
	attempt := 0
	err := retry.Do(ctx, m.backoff(), func(ctx context.Context) error {
		attempt++
		m.metrics.Reconnect()
		c, err := m.dialer.Dial(ctx, endpoint, token)
		if err != nil {
			m.logger.Debug("realtime reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	return conn, err
}

func (m *Manager) backoff() retry.Backoff {
	b := retry.NewExponential(m.cfg.Reconnect.BaseDelay)
	b = retry.WithCappedDuration(m.cfg.Reconnect.MaxDelay, b)
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(m.cfg.Reconnect.MaxRetries, b)
}

func (m *Manager) connectFailed(ctx context.Context, gen uint64, err error) {
	if ctx.Err() == nil {
		m.logger.Warn("realtime connect failed", zap.Error(err))
	}
	m.transition(gen, StateIdle)
}

package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"
)

// liveConn is one served connection: its transport, the outbound queue and
// a done channel closed exactly once when either pump gives up.
type liveConn struct {
	conn Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newLiveConn(conn Conn, buffer int) *liveConn {
	return &liveConn{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (lc *liveConn) close() {
	lc.once.Do(func() {
		close(lc.done)
		_ = lc.conn.Close()
	})
}

// enqueue never blocks; a full queue drops the frame.
func (lc *liveConn) enqueue(frame []byte) bool {
	select {
	case <-lc.done:
		return false
	default:
	}
	select {
	case lc.send <- frame:
		return true
	default:
		return false
	}
}

// readPump routes frames in arrival order until the connection fails or ctx
// is cancelled.
func (m *Manager) readPump(ctx context.Context, lc *liveConn) {
	go func() {
		select {
		case <-ctx.Done():
			lc.close()
		case <-lc.done:
		}
	}()

	for {
		_, data, err := lc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Warn("realtime connection lost", zap.Error(err))
			} else {
				m.logger.Debug("realtime read stopped", zap.Error(err))
			}
			return
		}
		m.route(data)
	}
}

func (m *Manager) writePump(lc *liveConn) {
	ticker := time.NewTicker(m.cfg.PingPeriod)
	defer ticker.Stop()
	defer lc.close()

	for {
		select {
		case <-lc.done:
			return
		case frame := <-lc.send:
			if err := lc.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				m.logger.Warn("realtime write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := lc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.logger.Debug("realtime ping failed", zap.Error(err))
				return
			}
		}
	}
}

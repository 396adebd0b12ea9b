// Package devserver is a local realtime endpoint speaking the same protocol
// as production, for development and end-to-end tests.
package devserver

import (
	"context"
	"net"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-live/internal/protocol"
)

type Config struct {
	Secret     string
	RateLimit  int
	QueueLimit int
	SendBuffer int
}

type Server struct {
	cfg    Config
	app    *fiber.App
	hub    *Hub
	auth   *Authenticator
	logger *zap.Logger
	cancel context.CancelFunc
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.logger = l } }

// New builds the server and starts its hub; Shutdown stops both.
func New(cfg Config, opts ...Option) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = 100
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}
	s := &Server{cfg: cfg, auth: NewAuthenticator(cfg.Secret), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	s.hub = NewHub(cfg.QueueLimit, s.logger)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.hub.Run(ctx)

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.app.Get("/ws", upgradeOnly, s.requireSession, websocket.New(s.SocketHandler))
	s.app.Post(protocol.HeartbeatPath, s.requireSession, s.HeartbeatHandler)

	api := s.app.Group("/api")
	api.Post("/notify", s.NotifyHandler)
	api.Get("/clients", s.ShowClientsHandler) // ?exclude=idOrUserId
	api.Get("/conversations/:id", s.ConversationHandler)
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

// App exposes the fiber app, mostly for app.Test in tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.logger.Info("devserver listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Listener(ln net.Listener) error {
	s.logger.Info("devserver listening", zap.String("addr", ln.Addr().String()))
	return s.app.Listener(ln)
}

func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}

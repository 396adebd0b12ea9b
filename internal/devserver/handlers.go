package devserver

import (
	"errors"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pelusa-v/pelusa-live/internal/protocol"
	"github.com/pelusa-v/pelusa-live/internal/session"
)

const sessionLocal = "session"

// requireSession authenticates the bearer token and stores the session in
// the request locals.
func (s *Server) requireSession(c *fiber.Ctx) error {
	token := c.Get(fiber.HeaderAuthorization)
	if token == "" {
		token = c.Query("token")
	}
	sess, err := s.auth.Authenticate(token)
	if err != nil {
		s.logger.Debug("rejected request", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	c.Locals(sessionLocal, sess)
	return c.Next()
}

// upgradeOnly rejects plain HTTP requests on the websocket route.
func upgradeOnly(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func currentSession(c *fiber.Ctx) *session.Session {
	sess, _ := c.Locals(sessionLocal).(*session.Session)
	return sess
}

// SocketHandler GET /ws
func (s *Server) SocketHandler(conn *websocket.Conn) {
	sess, _ := conn.Locals(sessionLocal).(*session.Session)
	if sess == nil {
		return
	}
	client := NewClient(uuid.NewString(), sess.User, conn, s.cfg.SendBuffer,
		rate.Limit(s.cfg.RateLimit), s.cfg.RateLimit*2)
	if !s.hub.Register(client) {
		return
	}
	go client.WritePump()
	client.ReadPump(s.hub)
}

// HeartbeatHandler POST /user-status/heartbeat
func (s *Server) HeartbeatHandler(c *fiber.Ctx) error {
	s.hub.Heartbeat(currentSession(c).User.ID)
	return c.SendStatus(fiber.StatusNoContent)
}

type notifyRequestBody struct {
	UserID       string                `json:"userId"`
	Notification protocol.Notification `json:"notification"`
}

// NotifyHandler POST /api/notify
func (s *Server) NotifyHandler(c *fiber.Ctx) error {
	var body notifyRequestBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	body.UserID = strings.TrimSpace(body.UserID)
	if body.UserID == "" || body.Notification.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing userId or title"})
	}
	delivered, err := s.hub.Notify(c.UserContext(), body.UserID, body.Notification)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"delivered": delivered, "queued": !delivered})
}

// ShowClientsHandler GET /api/clients?exclude=idOrUserId
func (s *Server) ShowClientsHandler(c *fiber.Ctx) error {
	return c.JSON(s.hub.ListClients(c.Query("exclude")))
}

// ConversationHandler GET /api/conversations/:id
func (s *Server) ConversationHandler(c *fiber.Ctx) error {
	id := normalizeConversation(c.Params("id"))
	if id == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	members := s.hub.Members(id)
	online := make(map[string]bool, len(members))
	for _, m := range members {
		online[m] = s.hub.Online(m)
	}
	return c.JSON(fiber.Map{"conversationId": id, "members": members, "online": online})
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

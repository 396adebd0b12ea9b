package devserver

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/pelusa-live/internal/session"
)

const testSecret = "dev-secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := New(Config{Secret: testSecret})
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestHandlers_HeartbeatRequiresToken(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest(fiber.MethodPost, "/user-status/heartbeat", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	forged, err := SignToken("other-secret", session.User{ID: "u1"})
	require.NoError(t, err)
	req := httptest.NewRequest(fiber.MethodPost, "/user-status/heartbeat", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, err := SignToken(testSecret, session.User{ID: "u1", Username: "ana"})
	require.NoError(t, err)
	req = httptest.NewRequest(fiber.MethodPost, "/user-status/heartbeat", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestHandlers_NotifyQueuesForOfflineUser(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{`, fiber.StatusBadRequest},
		{"missing user", `{"notification":{"title":"x"}}`, fiber.StatusBadRequest},
		{"queued", `{"userId":"u9","notification":{"title":"Order shipped","data":{"orderId":"7"}}}`, fiber.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodPost, "/api/notify", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
			resp, err := s.App().Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
	assert.Equal(t, 1, s.Hub().inbox.Len("u9"))
}

func TestHandlers_ClientsAndConversations(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest(fiber.MethodGet, "/api/clients", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `[]`, string(body))

	resp, err = s.App().Test(httptest.NewRequest(fiber.MethodGet, "/api/conversations/c1", nil))
	require.NoError(t, err)
	var out struct {
		ConversationID string   `json:"conversationId"`
		Members        []string `json:"members"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "c1", out.ConversationID)
	assert.Empty(t, out.Members)

	resp, err = s.App().Test(httptest.NewRequest(fiber.MethodGet, "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestAuthenticator_WithoutSecretReadsClaims(t *testing.T) {
	token, err := SignToken("anything", session.User{ID: "42", Username: "sol", Role: session.RoleSeller})
	require.NoError(t, err)

	sess, err := NewAuthenticator("").Authenticate("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "42", sess.User.ID)
	assert.True(t, sess.User.IsSeller())

	_, err = NewAuthenticator("").Authenticate("")
	assert.ErrorIs(t, err, session.ErrNoSession)
}

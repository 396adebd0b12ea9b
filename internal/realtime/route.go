package realtime

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-live/internal/protocol"
)

func (m *Manager) route(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.logger.Debug("dropping malformed frame", zap.Error(err))
		return
	}
	m.metrics.Event(env.Event)

	switch env.Event {
	case protocol.EventNewMessage:
		if p, ok := decode[protocol.NewMessagePayload](m, env); ok {
			dispatch[MessageEvent](m, m.messages, NewMessage{p})
		}
	case protocol.EventReactionUpdate:
		if p, ok := decode[protocol.ReactionUpdatePayload](m, env); ok {
			dispatch[MessageEvent](m, m.messages, ReactionUpdate{p})
		}
	case protocol.EventMessageUpdate:
		if p, ok := decode[protocol.MessageUpdatePayload](m, env); ok {
			dispatch[MessageEvent](m, m.messages, MessageUpdate{p})
		}
	case protocol.EventMessageReadUpdate:
		if p, ok := decode[protocol.ReadUpdatePayload](m, env); ok {
			dispatch[MessageEvent](m, m.messages, ReadReceiptUpdate{p})
		}
	case protocol.EventNotification:
		if p, ok := decode[protocol.Notification](m, env); ok {
			dispatch[MessageEvent](m, m.messages, NotificationReceived{Notification: p})
		}
	case protocol.EventQueuedNotifications:
		if batch, ok := decode[[]protocol.Notification](m, env); ok {
			for _, n := range batch {
				dispatch[MessageEvent](m, m.messages, NotificationReceived{Notification: n, Queued: true})
			}
		}

	case protocol.EventUserStatusUpdate:
		if p, ok := decode[protocol.UserStatusPayload](m, env); ok {
			dispatch[StatusEvent](m, m.statuses, PresenceChanged{p})
		}
	case protocol.EventUserJoinedConversation:
		if p, ok := decode[protocol.ParticipantPayload](m, env); ok {
			dispatch[StatusEvent](m, m.statuses, ParticipantJoined{p})
		}
	case protocol.EventUserLeftConversation:
		if p, ok := decode[protocol.ParticipantPayload](m, env); ok {
			dispatch[StatusEvent](m, m.statuses, ParticipantLeft{p})
		}

	case protocol.EventUserTyping:
		if p, ok := decode[protocol.TypingPayload](m, env); ok {
			dispatch(m, m.typing, p)
		}

	default:
		m.logger.Debug("ignoring unknown event", zap.String("event", env.Event))
	}
}

func decode[T any](m *Manager, env protocol.Envelope) (T, bool) {
	var v T
	if err := env.Decode(&v); err != nil {
		m.logger.Debug("dropping undecodable event", zap.String("event", env.Event), zap.Error(err))
		return v, false
	}
	return v, true
}

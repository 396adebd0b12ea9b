package realtime

import "github.com/pelusa-v/pelusa-live/internal/protocol"

// State is the connection lifecycle seen by subscribers.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MessageKind tells the message-class events apart.
type MessageKind string

const (
	KindNewMessage     MessageKind = "new-message"
	KindReactionUpdate MessageKind = "reaction-update"
	KindMessageUpdate  MessageKind = "message-update"
	KindReadReceipt    MessageKind = "read-receipt"
	KindNotification   MessageKind = "notification"
)

// MessageEvent is delivered to OnMessage subscribers. The set of
// implementations is closed.
type MessageEvent interface {
	Kind() MessageKind
	messageEvent()
}

type NewMessage struct {
	protocol.NewMessagePayload
}

type ReactionUpdate struct {
	protocol.ReactionUpdatePayload
}

type MessageUpdate struct {
	protocol.MessageUpdatePayload
}

type ReadReceiptUpdate struct {
	protocol.ReadUpdatePayload
}

// NotificationReceived carries one notification. Queued is set when it was
// replayed from the batch delivered on connect.
type NotificationReceived struct {
	Notification protocol.Notification
	Queued       bool
}

func (NewMessage) Kind() MessageKind           { return KindNewMessage }
func (ReactionUpdate) Kind() MessageKind       { return KindReactionUpdate }
func (MessageUpdate) Kind() MessageKind        { return KindMessageUpdate }
func (ReadReceiptUpdate) Kind() MessageKind    { return KindReadReceipt }
func (NotificationReceived) Kind() MessageKind { return KindNotification }

func (NewMessage) messageEvent()           {}
func (ReactionUpdate) messageEvent()       {}
func (MessageUpdate) messageEvent()        {}
func (ReadReceiptUpdate) messageEvent()    {}
func (NotificationReceived) messageEvent() {}

// StatusEvent is delivered to OnUserStatus subscribers: presence changes and
// conversation participation changes.
type StatusEvent interface {
	statusEvent()
}

type PresenceChanged struct {
	protocol.UserStatusPayload
}

type ParticipantJoined struct {
	protocol.ParticipantPayload
}

type ParticipantLeft struct {
	protocol.ParticipantPayload
}

func (ParticipantJoined) Event() string { return "joined" }
func (ParticipantLeft) Event() string   { return "left" }

func (PresenceChanged) statusEvent()   {}
func (ParticipantJoined) statusEvent() {}
func (ParticipantLeft) statusEvent()   {}

// TypingEvent is delivered to OnTyping subscribers.
type TypingEvent = protocol.TypingPayload

// Package protocol holds the wire format shared by the realtime client and
// the development server.
package protocol

// server -> client
const (
	EventNewMessage             = "new-message"
	EventReactionUpdate         = "reaction-update"
	EventMessageUpdate          = "message-update"
	EventUserStatusUpdate       = "user-status-update"
	EventUserTyping             = "user-typing"
	EventMessageReadUpdate      = "message-read-update"
	EventUserJoinedConversation = "user-joined-conversation"
	EventUserLeftConversation   = "user-left-conversation"
	EventNotification           = "notification"
	EventQueuedNotifications    = "queued-notifications"
)

// client -> server
const (
	EventJoinConversation      = "join-conversation"
	EventLeaveConversation     = "leave-conversation"
	EventTypingStart           = "typing-start"
	EventTypingStop            = "typing-stop"
	EventMessageRead           = "message-read"
	EventSendDirectMessage     = "send-direct-message"
	EventGetConversationStatus = "get-conversation-status"
)

// HeartbeatPath is the REST endpoint refreshing the caller's last-seen time.
const HeartbeatPath = "/user-status/heartbeat"

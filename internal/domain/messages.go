package domain

import "encoding/json"

// WebSocket message types from client.
const (
	MsgTypeJoinUser     = "join_user"
	MsgTypeLeaveUser    = "leave_user"
	MsgTypeJoinChannel  = "join_channel"
	MsgTypeLeaveChannel = "leave_channel"
	MsgTypeJoinGlobal   = "join_global"
	MsgTypeLeaveGlobal  = "leave_global"
	MsgTypePing         = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeConnected    = "connected"
	MsgTypeJoined       = "joined"
	MsgTypeLeft         = "left"
	MsgTypeNotification = "notification"
	MsgTypeError        = "error"
	MsgTypePong         = "pong"
)

// Error codes
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeBadRequest   = "BAD_REQUEST"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

// JoinUserMessage requests membership in a user's private notification room.
// Only the connection's own identity is accepted.
type JoinUserMessage struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// JoinChannelMessage requests membership in a public channel room.
type JoinChannelMessage struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id"`
}

// Server -> Client messages

// ConnectedMessage is the welcome sent once the connection is open.
type ConnectedMessage struct {
	Type    string `json:"type"`
	ConnID  string `json:"conn_id"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// JoinedMessage confirms a room join.
type JoinedMessage struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// LeftMessage confirms a room leave.
type LeftMessage struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// NotificationMessage relays a published notification verbatim.
type NotificationMessage struct {
	Type    string          `json:"type"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// ErrorMessage is sent when an error occurs.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorMessage creates a new error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}

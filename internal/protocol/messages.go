// Package protocol defines the WebSocket message protocol between chat clients
// and the chat gateway.
package protocol

// Message types from client to gateway
const (
	TypeHello         = "hello"
	TypeSelectProfile = "select_profile"
	TypeUserMessage   = "user_message"
	TypePing          = "ping"
)

// Message types from gateway to client
const (
	TypeHelloAck        = "hello_ack"
	TypeProfileSelected = "profile_selected"
	TypeDelta           = "delta"
	TypeDone            = "done"
	TypePong            = "pong"
	TypeError           = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// HelloMessage is sent by the client to log in.
type HelloMessage struct {
	BaseMessage
	Username string `json:"username"`
	Password string `json:"password"`
}

// Profile describes one selectable chat profile.
type Profile struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
	EntityType  string `json:"entity_type,omitempty"`
}

// HelloAckMessage is sent after a successful hello.
type HelloAckMessage struct {
	BaseMessage
	UserID   string    `json:"user_id"`
	Profiles []Profile `json:"profiles"`
	Profile  string    `json:"profile"`
}

// SelectProfileMessage switches the chat target.
type SelectProfileMessage struct {
	BaseMessage
	Profile string `json:"profile"`
}

// ProfileSelectedMessage confirms a profile switch. Notice carries a failure
// to show, for instance when no backend session could be created.
type ProfileSelectedMessage struct {
	BaseMessage
	Profile string `json:"profile"`
	Notice  string `json:"notice,omitempty"`
}

// UserMessage is one chat turn from the user.
type UserMessage struct {
	BaseMessage
	Content string `json:"content"`
}

// DeltaMessage carries a fragment of the reply.
type DeltaMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// DoneMessage ends a reply and repeats its full text.
type DoneMessage struct {
	BaseMessage
	Content string `json:"content"`
}

// ErrorMessage is sent by the gateway when a request cannot be served.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeUnauthorized    = "unauthorized"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeUnknownProfile  = "unknown_profile"
	ErrorCodeBusy            = "busy"
	ErrorCodeInternalError   = "internal_error"
)

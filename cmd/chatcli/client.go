package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pessini/superpod-blog/internal/protocol"
)

// Client is a chat gateway connection.
type Client struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	sessionID string
	profile   string
	profiles  []protocol.Profile
	nextID    int
}

// Dial connects to the gateway at addr.
func Dial(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// Hello logs in and waits for hello_ack.
func (c *Client) Hello(username, password string) error {
	msg := protocol.HelloMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeHello, Ts: time.Now().UnixMilli()},
		Username:    username,
		Password:    password,
	}
	if err := c.write(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}
	var ack protocol.HelloAckMessage
	if err := json.Unmarshal(data, &ack); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	if ack.Type == protocol.TypeError {
		return decodeError(data)
	}
	if ack.Type != protocol.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", ack.Type)
	}
	c.sessionID = ack.SessionID
	c.profile = ack.Profile
	c.profiles = ack.Profiles
	return nil
}

// SelectProfile asks the gateway to switch profile. The answer arrives
// through Read.
func (c *Client) SelectProfile(name string) (string, error) {
	base := c.base(protocol.TypeSelectProfile)
	return base.RequestID, c.write(protocol.SelectProfileMessage{BaseMessage: base, Profile: name})
}

// Send sends one chat turn and returns its request id.
func (c *Client) Send(content string) (string, error) {
	base := c.base(protocol.TypeUserMessage)
	return base.RequestID, c.write(protocol.UserMessage{BaseMessage: base, Content: content})
}

// Event is one decoded gateway frame.
type Event struct {
	Type      string
	RequestID string
	Text      string
	Profile   string
	Err       error
}

// Read blocks for the next frame.
func (c *Client) Read() (Event, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return Event{}, err
	}
	var raw struct {
		protocol.BaseMessage
		Text    string `json:"text"`
		Content string `json:"content"`
		Profile string `json:"profile"`
		Notice  string `json:"notice"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, fmt.Errorf("unmarshal frame: %w", err)
	}
	ev := Event{Type: raw.Type, RequestID: raw.RequestID}
	switch raw.Type {
	case protocol.TypeDelta:
		ev.Text = raw.Text
	case protocol.TypeDone:
		ev.Text = raw.Content
	case protocol.TypeProfileSelected:
		c.profile = raw.Profile
		ev.Profile = raw.Profile
		ev.Text = raw.Notice
	case protocol.TypeError:
		ev.Err = decodeError(data)
	}
	return ev, nil
}

func (c *Client) base(msgType string) protocol.BaseMessage {
	c.nextID++
	return protocol.BaseMessage{
		Type:      msgType,
		Ts:        time.Now().UnixMilli(),
		SessionID: c.sessionID,
		RequestID: fmt.Sprintf("req_%d", c.nextID),
	}
}

func (c *Client) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// GatewayError is an error frame sent by the gateway.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return e.Code + ": " + e.Message
}

func decodeError(data []byte) error {
	var msg protocol.ErrorMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return errors.New("malformed error frame")
	}
	return &GatewayError{Code: msg.Code, Message: msg.Message}
}

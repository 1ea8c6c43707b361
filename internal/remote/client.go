// ABOUTME: WebSocket client for remote control
// ABOUTME: Handles connection, handshake, and command round trips
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/noodler-audio/noodler/internal/version"
)

// DefaultTimeout bounds a command round trip when ctx has no deadline
const DefaultTimeout = 30 * time.Second

// ErrCommandFailed wraps errors reported by the player
var ErrCommandFailed = errors.New("remote command failed")

// Client is a remote control session with one player
type Client struct {
	id    string
	conn  *websocket.Conn
	hello ServerHello
	state PlayerState

	// mu serializes round trips; the connection has one reader
	mu sync.Mutex
}

// Dial connects to a player at addr (host:port) and performs the handshake
func Dial(ctx context.Context, addr, name string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: Path}
	log.Debug("Connecting to player", "url", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c := &Client{id: uuid.New().String(), conn: conn}
	if err := c.handshake(ctx, name); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake failed: %w", err)
	}
	return c, nil
}

func (c *Client) handshake(ctx context.Context, name string) error {
	hello := ClientHello{
		ClientID:  c.id,
		Name:      name,
		Version:   ProtocolVersion,
		UserAgent: version.UserAgent(),
	}
	if err := c.conn.WriteJSON(Message{Type: TypeHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send hello: %w", err)
	}

	c.conn.SetReadDeadline(deadline(ctx))
	defer c.conn.SetReadDeadline(time.Time{})

	var msg Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("failed to read hello: %w", err)
	}
	if msg.Type == TypeError {
		return replyError(msg)
	}
	if msg.Type != TypeHello {
		return fmt.Errorf("expected %s, got %s", TypeHello, msg.Type)
	}
	if err := decodePayload(msg, &c.hello); err != nil {
		return err
	}

	// the player follows its hello with the current state
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("failed to read initial state: %w", err)
	}
	if msg.Type != TypeState {
		return fmt.Errorf("expected %s, got %s", TypeState, msg.Type)
	}
	return decodePayload(msg, &c.state)
}

// ID returns this client's session identifier
func (c *Client) ID() string {
	return c.id
}

// Server returns the player's hello
func (c *Client) Server() ServerHello {
	return c.hello
}

// State returns the most recently received player state
func (c *Client) State() PlayerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Do sends one command and waits for the player's reply
func (c *Client) Do(ctx context.Context, msgType string, payload interface{}) (PlayerState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.New().String()
	c.conn.SetWriteDeadline(deadline(ctx))
	if err := c.conn.WriteJSON(Message{Type: msgType, ID: id, Payload: payload}); err != nil {
		return PlayerState{}, fmt.Errorf("failed to send %s: %w", msgType, err)
	}

	c.conn.SetReadDeadline(deadline(ctx))
	defer c.conn.SetReadDeadline(time.Time{})
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return PlayerState{}, fmt.Errorf("failed to read reply: %w", err)
		}

		switch msg.Type {
		case TypeState:
			var state PlayerState
			if err := decodePayload(msg, &state); err != nil {
				return PlayerState{}, err
			}
			c.state = state
			if msg.ID == id {
				return state, nil
			}
		case TypeError:
			if msg.ID == id {
				return PlayerState{}, replyError(msg)
			}
		}
	}
}

// Play starts playback
func (c *Client) Play(ctx context.Context) (PlayerState, error) {
	return c.Do(ctx, TypePlay, nil)
}

// Stop pauses playback
func (c *Client) Stop(ctx context.Context) (PlayerState, error) {
	return c.Do(ctx, TypeStop, nil)
}

// Restart plays from the loop start
func (c *Client) Restart(ctx context.Context) (PlayerState, error) {
	return c.Do(ctx, TypeRestart, nil)
}

// Seek moves the cursor
func (c *Client) Seek(ctx context.Context, position string) (PlayerState, error) {
	return c.Do(ctx, TypeSeek, SeekCommand{Position: position})
}

// Loop edits the loop window
func (c *Client) Loop(ctx context.Context, cmd LoopCommand) (PlayerState, error) {
	return c.Do(ctx, TypeLoop, cmd)
}

// SetRate changes the playback rate
func (c *Client) SetRate(ctx context.Context, rate float64) (PlayerState, error) {
	return c.Do(ctx, TypeRate, RateCommand{Rate: rate})
}

// Shift moves the loop window
func (c *Client) Shift(ctx context.Context, delta string) (PlayerState, error) {
	return c.Do(ctx, TypeShift, ShiftCommand{Delta: delta})
}

// Close ends the session
func (c *Client) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

func replyError(msg Message) error {
	var payload ErrorPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrCommandFailed, payload.Message)
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(DefaultTimeout)
}

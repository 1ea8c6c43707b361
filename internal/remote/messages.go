// ABOUTME: Remote control message type definitions
// ABOUTME: JSON envelopes exchanged between the player and remote clients
package remote

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is bumped on incompatible message changes
const ProtocolVersion = 1

// Message types
const (
	TypeHello   = "hello"
	TypeState   = "state"
	TypeError   = "error"
	TypePlay    = "play"
	TypeStop    = "stop"
	TypeRestart = "restart"
	TypeSeek    = "seek"
	TypeLoop    = "loop"
	TypeRate    = "rate"
	TypeShift   = "shift"
)

// Message is the top-level wrapper for all remote messages
type Message struct {
	Type string `json:"type"`
	// ID correlates a command with its reply
	ID      string      `json:"id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// ClientHello is sent by clients to open a session
type ClientHello struct {
	ClientID  string `json:"client_id"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	UserAgent string `json:"user_agent,omitempty"`
}

// ServerHello is the player's response to a client hello
type ServerHello struct {
	ServerID  string `json:"server_id"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	UserAgent string `json:"user_agent"`
}

// SeekCommand moves the cursor. Position accepts musictime strings.
type SeekCommand struct {
	Position string `json:"position"`
}

// LoopCommand edits the loop window; empty fields are left alone
type LoopCommand struct {
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// RateCommand changes the playback rate
type RateCommand struct {
	Rate float64 `json:"rate"`
}

// ShiftCommand moves the loop window by Delta
type ShiftCommand struct {
	Delta string `json:"delta"`
}

// PlayerState is broadcast whenever playback state changes
type PlayerState struct {
	Playing     bool    `json:"playing"`
	Position    float64 `json:"position"`
	Duration    float64 `json:"duration"`
	LoopStart   float64 `json:"loop_start"`
	LoopEnd     float64 `json:"loop_end"`
	HasLoopEnd  bool    `json:"has_loop_end"`
	LoopEnabled bool    `json:"loop_enabled"`
	Rate        float64 `json:"rate"`
	Mode        string  `json:"mode"`
}

// ErrorPayload reports a rejected command
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// decodePayload re-decodes a generic payload into v
func decodePayload(msg Message, v interface{}) error {
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", msg.Type, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}
	return nil
}

// Package live relays browser WebSocket clients to Gemini Live API sessions.
package live

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"geminilab/pkg/errors"
)

// Server to client message types
const (
	TypeConnected     = "connected"
	TypeDisconnected  = "disconnected"
	TypeError         = "error"
	TypeAudio         = "audio"
	TypeText          = "text"
	TypeToolCallStart = "tool_call_start"
	TypeToolResult    = "tool_result"
	TypeInterrupted   = "interrupted"
	TypeTurnComplete  = "turn_complete"
	TypeStateChange   = "state_change"
	TypeSessionReset  = "session_reset"
	TypePong          = "pong"
)

// Client to server message types
const (
	TypeReset = "reset"
	TypePing  = "ping"
)

// Message is one JSON frame sent to the browser
type Message map[string]any

// Type returns the message's type tag
func (m Message) Type() string {
	t, _ := m["type"].(string)
	return t
}

// ToolInvocation describes a call in a tool_call_start message
type ToolInvocation struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

func connectedMessage(sessionID string) Message {
	return Message{"type": TypeConnected, "session_id": sessionID, "state": "connected"}
}

func disconnectedMessage(sessionID string) Message {
	return Message{"type": TypeDisconnected, "session_id": sessionID}
}

func errorMessage(prefix string, err error) Message {
	return Message{"type": TypeError, "error": prefix + err.Error()}
}

func audioMessage(pcm []byte) Message {
	return Message{"type": TypeAudio, "data": hex.EncodeToString(pcm)}
}

func textMessage(text string) Message {
	return Message{"type": TypeText, "text": text}
}

func toolCallStartMessage(calls []ToolInvocation) Message {
	return Message{"type": TypeToolCallStart, "tools": calls}
}

func toolResultMessage(tool string, result any) Message {
	return Message{"type": TypeToolResult, "tool": tool, "result": result}
}

func turnCompleteMessage(turn int) Message {
	return Message{"type": TypeTurnComplete, "turn_number": turn}
}

func stateChangeMessage(state string) Message {
	return Message{"type": TypeStateChange, "state": state}
}

func sessionResetMessage(sessionID string) Message {
	return Message{"type": TypeSessionReset, "session_id": sessionID}
}

// ClientMessage is a JSON frame from the browser
type ClientMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Text string `json:"text,omitempty"`
}

// parseClientFrame decodes a text frame. Anything that is not JSON is
// treated as hex-encoded PCM audio.
func parseClientFrame(frame []byte) ClientMessage {
	var msg ClientMessage
	if err := json.Unmarshal(frame, &msg); err == nil {
		return msg
	}
	return ClientMessage{Type: TypeAudio, Data: strings.TrimSpace(string(frame))}
}

// decodeAudio converts the hex payload of an audio message
func decodeAudio(data string) ([]byte, error) {
	pcm, err := hex.DecodeString(data)
	if err != nil {
		return nil, errors.NewValidationError("data", "audio must be hex encoded", len(data))
	}
	return pcm, nil
}

package websocket

import (
	"time"

	"github.com/timone-gs/timone-link/internal/protocol"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Telemetry pushed from the board
	MessageTypeTelemetry MessageType = "telemetry"

	// Link state messages
	MessageTypeLinkState MessageType = "link_state"

	// Replies to client-issued commands
	MessageTypeCommandResult MessageType = "command_result"
	MessageTypeCommandError  MessageType = "command_error"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// TelemetryData represents a decoded telemetry record pushed to clients
type TelemetryData struct {
	Peripheral int             `json:"peripheral"`
	Name       string          `json:"name"`
	Kind       string          `json:"kind"`
	Record     protocol.Record `json:"record"`
	ReceivedAt time.Time       `json:"received_at"`
}

// LinkStateData represents a link state change
type LinkStateData struct {
	State    string `json:"state"`
	Previous string `json:"previous_state"`
}

// CommandResultData represents the outcome of a client-issued command
type CommandResultData struct {
	RequestID  string          `json:"request_id,omitempty"`
	Peripheral int             `json:"peripheral"`
	Command    int             `json:"command"`
	Kind       string          `json:"kind,omitempty"`
	Record     protocol.Record `json:"record,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// Helper functions for creating specific message types

func NewTelemetryMessage(tm protocol.Telemetry) Message {
	return NewMessage(MessageTypeTelemetry, TelemetryData{
		Peripheral: int(tm.Peripheral),
		Name:       tm.Name,
		Kind:       tm.Kind,
		Record:     tm.Record,
		ReceivedAt: tm.ReceivedAt,
	})
}

func NewLinkStateMessage(newState, previousState string) Message {
	return NewMessage(MessageTypeLinkState, LinkStateData{
		State:    newState,
		Previous: previousState,
	})
}

// Package stream multiplexes reasoning-loop progress into one ordered event
// sequence with bounded buffering, and records the step log of a turn.
package stream

import (
	"github.com/yanmxa/finsight/internal/client"
	"github.com/yanmxa/finsight/internal/message"
)

// EventType names an event on the wire. Consumers ignore types they do not
// know.
type EventType string

const (
	EventTextDelta      EventType = "text-delta"
	EventReasoningDelta EventType = "reasoning-delta"
	EventToolCallStart  EventType = "tool-call-start"
	EventToolCallDone   EventType = "tool-call-done"
	EventStepTiming     EventType = "step-timing"
	EventFinish         EventType = "finish"
	EventError          EventType = "error"
)

// Event is one multiplexed event. Only the fields of its type are set.
type Event struct {
	Type  EventType `json:"type"`
	Round int       `json:"round,omitempty"`

	// text-delta, reasoning-delta
	Text string `json:"text,omitempty"`

	// tool-call-start, tool-call-done
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
	Input      string `json:"input,omitempty"`
	Output     string `json:"output,omitempty"`
	IsError    bool   `json:"isError,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`

	// step-timing
	Steps   []message.StepEntry `json:"steps,omitempty"`
	Timings []ToolTiming        `json:"timings,omitempty"`

	// finish
	Finish *FinishInfo `json:"finish,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ToolTiming is the measured duration of one tool call.
type ToolTiming struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	Round      int    `json:"round"`
	DurationMs int64  `json:"durationMs"`
	IsError    bool   `json:"isError,omitempty"`
}

// FinishInfo summarizes a completed turn.
type FinishInfo struct {
	MessageID        string            `json:"messageId"`
	StopReason       string            `json:"stopReason"`
	Model            string            `json:"model"`
	Rounds           int               `json:"rounds"`
	ProcessingTimeMs int64             `json:"processingTimeMs"`
	Usage            client.TokenUsage `json:"usage"`
}

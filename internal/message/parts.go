package message

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PartType discriminates the closed set of content parts.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool-call"
	PartToolResult PartType = "tool-result"
	PartStepLog    PartType = "step-log"
)

// Part is one piece of a stored message. The set of implementations is
// closed: Text, ToolCall, ToolResult and StepLog.
type Part interface {
	Type() PartType
	sealed()
}

// Text is plain model or user text.
type Text struct {
	Text string `json:"text"`
}

// ToolCall represents a tool call from the model.
type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input string `json:"input"`
}

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name,omitempty"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// StepLog is the ordered record of tool activity for one assistant turn.
type StepLog struct {
	Entries []StepEntry `json:"entries"`
}

// StepPhase is the phase of a step log entry.
type StepPhase string

const (
	StepStart StepPhase = "start"
	StepDone  StepPhase = "done"
)

// StepEntry is a single start or done record in a StepLog.
type StepEntry struct {
	Phase      StepPhase `json:"phase"`
	ToolName   string    `json:"toolName"`
	ToolCallID string    `json:"toolCallId"`
	Detail     string    `json:"detail,omitempty"`
	NextStep   string    `json:"nextStep,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func (Text) Type() PartType       { return PartText }
func (ToolCall) Type() PartType   { return PartToolCall }
func (ToolResult) Type() PartType { return PartToolResult }
func (StepLog) Type() PartType    { return PartStepLog }

func (Text) sealed()       {}
func (ToolCall) sealed()   {}
func (ToolResult) sealed() {}
func (StepLog) sealed()    {}

// Message is a persisted conversation message made of ordered parts.
type Message struct {
	ID               string    `json:"id"`
	Role             Role      `json:"role"`
	Parts            []Part    `json:"parts"`
	ProcessingTimeMs int64     `json:"processingTimeMs,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NewUserMessage creates a user message with a single text part.
func NewUserMessage(text string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleUser,
		Parts:     []Part{Text{Text: text}},
		CreatedAt: time.Now(),
	}
}

// PlainText concatenates the text parts of the message in order.
func (m Message) PlainText() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(Text); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// HasToolCalls reports whether any tool call part is present.
func (m Message) HasToolCalls() bool {
	for _, p := range m.Parts {
		if _, ok := p.(ToolCall); ok {
			return true
		}
	}
	return false
}

type wireMessage struct {
	ID               string            `json:"id"`
	Role             Role              `json:"role"`
	Content          string            `json:"content,omitempty"`
	Parts            []json.RawMessage `json:"parts,omitempty"`
	ProcessingTimeMs int64             `json:"processingTimeMs,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

type wirePart struct {
	Type PartType `json:"type"`
}

// MarshalJSON encodes parts with a "type" discriminator.
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		ID:               m.ID,
		Role:             m.Role,
		ProcessingTimeMs: m.ProcessingTimeMs,
		CreatedAt:        m.CreatedAt,
	}
	for _, p := range m.Parts {
		raw, err := MarshalPart(p)
		if err != nil {
			return nil, err
		}
		w.Parts = append(w.Parts, raw)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes discriminated parts. A bare "content" string is
// accepted as a single text part for clients that send plain messages.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parts := make([]Part, 0, len(w.Parts)+1)
	for i, raw := range w.Parts {
		p, err := UnmarshalPart(raw)
		if err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 && w.Content != "" {
		parts = append(parts, Text{Text: w.Content})
	}
	*m = Message{
		ID:               w.ID,
		Role:             w.Role,
		Parts:            parts,
		ProcessingTimeMs: w.ProcessingTimeMs,
		CreatedAt:        w.CreatedAt,
	}
	return nil
}

// MarshalPart encodes a single part with its discriminator.
func MarshalPart(p Part) ([]byte, error) {
	switch v := p.(type) {
	case Text:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			Text
		}{PartText, v})
	case ToolCall:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			ToolCall
		}{PartToolCall, v})
	case ToolResult:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			ToolResult
		}{PartToolResult, v})
	case StepLog:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			StepLog
		}{PartStepLog, v})
	default:
		return nil, fmt.Errorf("unknown part %T", p)
	}
}

// UnmarshalPart decodes a single discriminated part.
func UnmarshalPart(raw []byte) (Part, error) {
	var head wirePart
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case PartText:
		var v Text
		err := json.Unmarshal(raw, &v)
		return v, err
	case PartToolCall:
		var v ToolCall
		err := json.Unmarshal(raw, &v)
		return v, err
	case PartToolResult:
		var v ToolResult
		err := json.Unmarshal(raw, &v)
		return v, err
	case PartStepLog:
		var v StepLog
		err := json.Unmarshal(raw, &v)
		return v, err
	default:
		return nil, fmt.Errorf("unknown part type %q", head.Type)
	}
}

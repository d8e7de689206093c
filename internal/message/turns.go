package message

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh message identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id is a canonical UUID string.
func ValidID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// NormalizeID returns id unchanged when valid, otherwise a fresh one.
func NormalizeID(id string) string {
	if ValidID(id) {
		return id
	}
	return NewID()
}

// Turns flattens stored messages into provider-level turns.
//
// An assistant message holding [text, call A, call B, result A, result B, text]
// becomes assistant(text, A, B), tool_result(A), tool_result(B), assistant(text).
// Step log parts carry no model-visible content and are skipped.
func Turns(msgs []Message) []Turn {
	var turns []Turn
	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			if text := m.PlainText(); strings.TrimSpace(text) != "" {
				turns = append(turns, UserTurn(text))
			}
		case RoleAssistant:
			turns = append(turns, assistantTurns(m.Parts)...)
		}
	}
	return turns
}

func assistantTurns(parts []Part) []Turn {
	var (
		turns []Turn
		text  strings.Builder
		calls []ToolCall
	)
	flush := func() {
		if text.Len() > 0 || len(calls) > 0 {
			turns = append(turns, AssistantTurn(text.String(), "", calls))
		}
		text.Reset()
		calls = nil
	}
	for _, p := range parts {
		switch v := p.(type) {
		case Text:
			if len(calls) > 0 {
				flush()
			}
			text.WriteString(v.Text)
		case ToolCall:
			calls = append(calls, v)
		case ToolResult:
			flush()
			turns = append(turns, ToolResultTurn(v))
		case StepLog:
		}
	}
	flush()
	return turns
}

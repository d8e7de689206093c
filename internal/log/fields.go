package log

import (
	"encoding/json"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/provider"
)

// toolMarshaler wraps a Tool for zap logging
type toolMarshaler provider.Tool

func (t toolMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("name", t.Name)
	enc.AddString("description", t.Description)
	// Marshal parameters as JSON string for readability
	if t.Parameters != nil {
		paramsJSON, err := json.Marshal(t.Parameters)
		if err == nil {
			enc.AddString("parameters", string(paramsJSON))
		}
	}
	return nil
}

// toolsMarshaler wraps a slice of Tools for zap logging
type toolsMarshaler []provider.Tool

func (t toolsMarshaler) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, tool := range t {
		_ = enc.AppendObject(toolMarshaler(tool))
	}
	return nil
}

// ToolsField creates a zap field for tools
func ToolsField(tools []provider.Tool) zap.Field {
	return zap.Array("tools", toolsMarshaler(tools))
}

// toolCallMarshaler wraps a ToolCall for zap logging
type toolCallMarshaler message.ToolCall

func (tc toolCallMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", tc.ID)
	enc.AddString("name", tc.Name)
	enc.AddString("input", tc.Input)
	return nil
}

// toolCallsMarshaler wraps a slice of ToolCalls for zap logging
type toolCallsMarshaler []message.ToolCall

func (tc toolCallsMarshaler) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, call := range tc {
		_ = enc.AppendObject(toolCallMarshaler(call))
	}
	return nil
}

// ToolCallsField creates a zap field for tool calls
func ToolCallsField(toolCalls []message.ToolCall) zap.Field {
	return zap.Array("tool_calls", toolCallsMarshaler(toolCalls))
}

// stepMarshaler wraps a StepEntry for zap logging
type stepMarshaler message.StepEntry

func (s stepMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("phase", string(s.Phase))
	enc.AddString("tool", s.ToolName)
	enc.AddString("id", s.ToolCallID)
	if s.Detail != "" {
		enc.AddString("detail", s.Detail)
	}
	enc.AddTime("at", s.Timestamp)
	return nil
}

type stepsMarshaler []message.StepEntry

func (s stepsMarshaler) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, e := range s {
		_ = enc.AppendObject(stepMarshaler(e))
	}
	return nil
}

// StepsField creates a zap field for a step log
func StepsField(entries []message.StepEntry) zap.Field {
	return zap.Array("steps", stepsMarshaler(entries))
}

// usageMarshaler wraps Usage for zap logging
type usageMarshaler message.Usage

func (u usageMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("input_tokens", u.InputTokens)
	enc.AddInt("output_tokens", u.OutputTokens)
	return nil
}

// UsageField creates a zap field for usage
func UsageField(usage message.Usage) zap.Field {
	return zap.Object("usage", usageMarshaler(usage))
}

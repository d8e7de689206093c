// Package tool holds the fixed set of capabilities the model may call.
package tool

import (
	"context"
	"errors"
	"fmt"
)

// Tool names.
const (
	FinanceSearch   = "finance_search"
	SECSearch       = "sec_search"
	EconomicsSearch = "economics_search"
	WebSearch       = "web_search"
	FetchURL        = "fetch_url"
	CodeExecution   = "code_execution"
	CreateChart     = "create_chart"
)

// Tool is one invocable capability.
type Tool interface {
	// Name returns the tool name the model calls it by
	Name() string

	// Description tells the model when to use the tool
	Description() string

	// Schema returns the JSON schema of the tool arguments
	Schema() map[string]any

	// Execute runs the tool. The returned string is fed back to the model.
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// ErrUnknownTool is returned when a call names no registered tool.
var ErrUnknownTool = errors.New("unknown tool")

// ParamError reports a missing or malformed tool argument.
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Param, e.Reason)
}

func requireString(params map[string]any, name string) (string, error) {
	v, ok := params[name].(string)
	if !ok || v == "" {
		return "", &ParamError{Param: name, Reason: "required"}
	}
	return v, nil
}

func optString(params map[string]any, name, def string) string {
	if v, ok := params[name].(string); ok && v != "" {
		return v
	}
	return def
}

// optInt accepts JSON numbers, which decode as float64.
func optInt(params map[string]any, name string, def int) int {
	switch v := params[name].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return def
}

func optStrings(params map[string]any, name string) []string {
	raw, ok := params[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

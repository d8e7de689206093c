package log

import (
	"fmt"
	"strings"

	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/provider"
)

// LogRequest logs an LLM request in human-readable format when debug
// logging is on
func LogRequest(providerName, model string, opts provider.CompletionOptions) {
	if !IsDebug() {
		return
	}

	turn := NextTurn()

	var sb strings.Builder
	fmt.Fprintf(&sb, "──────────── Round %d ────────────\n", turn)
	fmt.Fprintf(&sb, ">>> [%s] %s | max_tokens=%d temp=%.1f reasoning=%t\n", providerName, model, opts.MaxTokens, opts.Temperature, opts.Reasoning)

	if opts.SystemPrompt != "" {
		fmt.Fprintf(&sb, "    System: %s\n", truncate(escapeForLog(opts.SystemPrompt), 200))
	}

	if len(opts.Tools) > 0 {
		toolNames := make([]string, len(opts.Tools))
		for i, t := range opts.Tools {
			toolNames[i] = t.Name
		}
		fmt.Fprintf(&sb, "    Tools(%d): [%s]\n", len(opts.Tools), strings.Join(toolNames, ", "))
	}

	fmt.Fprintf(&sb, "    Turns(%d):\n", len(opts.Turns))
	for i, t := range opts.Turns {
		switch t.Role {
		case message.RoleUser:
			fmt.Fprintf(&sb, "      [%d] User: %s\n", i, truncate(escapeForLog(t.Content), 500))
		case message.RoleToolResult:
			if t.ToolResult == nil {
				continue
			}
			status := ""
			if t.ToolResult.IsError {
				status = " ERROR"
			}
			fmt.Fprintf(&sb, "      [%d] ToolResult[%s]%s: %s\n", i, t.ToolResult.ToolCallID, status, truncate(escapeForLog(t.ToolResult.Content), 500))
		case message.RoleAssistant:
			if t.Content != "" {
				fmt.Fprintf(&sb, "      [%d] Assistant: %s\n", i, truncate(escapeForLog(t.Content), 500))
			}
			for _, tc := range t.ToolCalls {
				fmt.Fprintf(&sb, "      [%d] ToolCall: %s(%s)\n", i, tc.Name, escapeForLog(tc.Input))
			}
		}
	}

	Logger().Debug(sb.String())
}

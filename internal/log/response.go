package log

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yanmxa/finsight/internal/message"
)

// LogResponse logs an LLM response in human-readable format when debug
// logging is on
func LogResponse(providerName string, resp message.CompletionResponse) {
	if !IsDebug() {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<<< [round %d] %s stop=%s | in=%d out=%d\n", CurrentTurn(), providerName, resp.StopReason, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	if resp.Content != "" {
		sb.WriteString("    Content:\n")
		for _, line := range strings.Split(resp.Content, "\n") {
			fmt.Fprintf(&sb, "        %s\n", line)
		}
	}

	if len(resp.ToolCalls) > 0 {
		fmt.Fprintf(&sb, "    ToolCalls(%d):\n", len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			fmt.Fprintf(&sb, "      [%s] %s(%s)\n", tc.ID, tc.Name, escapeForLog(tc.Input))
		}
	}

	Logger().Debug(sb.String())
}

// LogError logs an error with the component it came from
func LogError(component string, err error) {
	Logger().Error("error", zap.String("component", component), zap.Error(err))
}

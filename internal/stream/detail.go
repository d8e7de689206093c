package stream

import (
	"strings"

	"github.com/yanmxa/finsight/internal/message"
)

// detailKeys are the tool arguments that best describe a call, in order.
var detailKeys = []string{"query", "url", "description", "title", "code"}

func inputDetail(input string) string {
	params, err := message.ParseToolInput(input)
	if err != nil {
		return ""
	}
	for _, k := range detailKeys {
		if v, ok := params[k].(string); ok && v != "" {
			return truncate(oneLine(v), maxDetail)
		}
	}
	return ""
}

func resultDetail(r message.ToolResult) string {
	if r.IsError {
		return truncate(oneLine(r.Content), maxDetail)
	}
	return "completed"
}

func nextStep(r message.ToolResult) string {
	if r.IsError {
		return "explain or retry"
	}
	return "analyze results"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

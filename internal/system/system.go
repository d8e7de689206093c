// Package system selects a response format for a request: the system
// instruction and the tool subset offered to the model.
package system

import (
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/yanmxa/finsight/internal/tool"
)

//go:embed prompts/*.txt
var promptFS embed.FS

// Format is a named prompt and tool-set variant.
type Format string

const (
	FormatChat     Format = "chat"
	FormatCards    Format = "cards"
	FormatExternal Format = "external"
)

// ParseFormat maps a request token to a Format. Absent and unknown tokens
// select FormatChat.
func ParseFormat(token string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(token))) {
	case FormatCards:
		return FormatCards
	case FormatExternal:
		return FormatExternal
	default:
		return FormatChat
	}
}

// Profile is the per-request parameterization of the reasoning loop.
type Profile struct {
	Format Format
	Prompt string
	// Tools names the tools offered to the model.
	Tools []string
	// PlainText is true when the output channel cannot render charts.
	PlainText bool
}

var dataTools = []string{
	tool.FinanceSearch,
	tool.SECSearch,
	tool.EconomicsSearch,
	tool.WebSearch,
	tool.FetchURL,
	tool.CodeExecution,
}

// Select returns the profile for a format token.
func Select(token string) Profile {
	return SelectAt(token, time.Now())
}

// SelectAt is Select with an explicit clock for the date line.
func SelectAt(token string, now time.Time) Profile {
	f := ParseFormat(token)
	p := Profile{Format: f, PlainText: f != FormatChat}

	p.Tools = append([]string(nil), dataTools...)
	if !p.PlainText {
		p.Tools = append(p.Tools, tool.CreateChart)
	}
	p.Prompt = build(load("base.txt"), load(string(f)+".txt"), dateLine(now))
	return p
}

// CardProfile returns the profile for symbol summary cards: the base
// instruction and the plain-text tool set. The output shape is set by
// CardPrompt.
func CardProfile() Profile {
	return Profile{
		Format:    FormatCards,
		Prompt:    build(load("base.txt"), dateLine(time.Now())),
		Tools:     append([]string(nil), dataTools...),
		PlainText: true,
	}
}

// CardPrompt returns the user instruction for a symbol summary card.
func CardPrompt(symbol string) string {
	return fmt.Sprintf(load("card.txt"), strings.ToUpper(strings.TrimSpace(symbol)))
}

func dateLine(now time.Time) string {
	return "Today's date is " + now.Format("Monday, January 2, 2006") + "."
}

func build(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func load(name string) string {
	data, err := promptFS.ReadFile("prompts/" + name)
	if err != nil {
		return ""
	}
	return string(data)
}

package chat

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Card is a symbol summary card.
type Card struct {
	Title   string `json:"title" validate:"required"`
	Emoji   string `json:"emoji" validate:"required"`
	Content string `json:"content" validate:"required"`
}

var cardValidator = validator.New()

// ParseCard extracts the first valid card object from raw model output,
// tolerating code fences and surrounding prose.
func ParseCard(raw string) (*Card, error) {
	text := stripFences(raw)
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		var c Card
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&c); err != nil {
			continue
		}
		c.Title = strings.TrimSpace(c.Title)
		c.Emoji = strings.TrimSpace(c.Emoji)
		c.Content = strings.TrimSpace(c.Content)
		if cardValidator.Struct(&c) == nil {
			return &c, nil
		}
	}
	return nil, &Error{Code: CodeUnparseable, Message: "model output did not contain a valid card", Err: errors.New(truncate(raw, 200))}
}

// stripFences removes ``` and ```json fence lines.
func stripFences(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

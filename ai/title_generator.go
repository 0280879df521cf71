package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
)

// Title generation parameters.
const (
	titleTimeout      = 15 * time.Second
	titleInputMaxLen  = 500
	titleMaxRuneCount = 50
	fallbackTitleLen  = 40
)

// TitleGenerator produces short display titles for conversations with the
// summarization persona. It shares the Invoker with the chat path, so the
// caller is responsible for spacing title calls out (cooldown scheduling).
type TitleGenerator struct {
	invoker Invoker
}

func NewTitleGenerator(invoker Invoker) *TitleGenerator {
	return &TitleGenerator{invoker: invoker}
}

// Generate summarizes the first user message into a title. The result is
// quote-stripped and capped at 50 runes.
func (tg *TitleGenerator) Generate(ctx context.Context, firstUserMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	input := firstUserMessage
	if len(input) > titleInputMaxLen {
		input = input[:titleInputMaxLen] + "..."
	}

	segments := []Segment{{Text: "Generate a short title for this message:\n\n" + input}}

	start := time.Now()
	result, err := tg.invoker.GenerateContent(ctx, segments, summaryPersona)
	if err != nil {
		return "", fmt.Errorf("title generation: %w", err)
	}

	title := sanitizeTitle(result.Text)
	if title == "" {
		return "", fmt.Errorf("title generation: empty title in response")
	}

	slog.Debug("title generated",
		"title", title,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return title, nil
}

// sanitizeTitle strips surrounding quotes and whitespace and enforces the
// rune cap. Models like to quote their titles despite instructions.
func sanitizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`+"“”‘’")
	title = strings.TrimSpace(title)
	// Keep only the first line if the model rambles.
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = strings.TrimSpace(title[:idx])
	}
	runes := []rune(title)
	if len(runes) > titleMaxRuneCount {
		title = string(runes[:titleMaxRuneCount])
	}
	return title
}

// FallbackTitle derives the synchronous default title from the first user
// message: the first 40 characters with the first letter capitalized. It is
// written at creation time and stays authoritative until (and unless)
// summarization succeeds.
func FallbackTitle(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return "New chat"
	}
	if len(runes) > fallbackTitleLen {
		runes = runes[:fallbackTitleLen]
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

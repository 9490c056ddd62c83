package providers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// systemPromptTemplate instructs the model to answer with a numbered list so
// translations can be mapped back onto segments by position.
const systemPromptTemplate = "You are a subtitle translator. Translate each numbered line into %s. " +
	"Reply with a numbered list using the same numbers, exactly one translation per line. " +
	"Preserve the meaning and tone. Do not merge, split, or reorder lines. " +
	"Do not add commentary, notes, or anything besides the numbered translations."

// BuildSystemPrompt returns the instruction prompt for a target language.
func BuildSystemPrompt(targetLanguage string) string {
	return fmt.Sprintf(systemPromptTemplate, targetLanguage)
}

// BuildUserPrompt renders the batch texts as a numbered list.
func BuildUserPrompt(texts []string) string {
	var b strings.Builder
	for i, text := range texts {
		if i > 0 {
			b.WriteByte('\n')
		}
		// Newlines inside a subtitle line would break the list framing.
		flattened := strings.Join(strings.Fields(text), " ")
		fmt.Fprintf(&b, "%d. %s", i+1, flattened)
	}
	return b.String()
}

var numberedLinePattern = regexp.MustCompile(`^\s*(\d+)\s*[.)]\s*(.*)$`)

// ParseNumberedList extracts translations from a numbered-list reply. It
// requires exactly want entries numbered 1..want in order; continuation lines
// without a number are appended to the previous entry. Any mismatch is a
// ResponseError.
func ParseNumberedList(provider, content string, want int) ([]string, error) {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if trimmed == "" {
		return nil, &ResponseError{Provider: provider, Reason: "empty content"}
	}

	var entries []string
	for _, line := range strings.Split(trimmed, "\n") {
		match := numberedLinePattern.FindStringSubmatch(line)
		if match == nil {
			if len(entries) == 0 {
				continue
			}
			if extra := strings.TrimSpace(line); extra != "" {
				entries[len(entries)-1] += " " + extra
			}
			continue
		}
		index, err := strconv.Atoi(match[1])
		if err != nil || index != len(entries)+1 {
			return nil, &ResponseError{
				Provider: provider,
				Reason:   fmt.Sprintf("expected entry %d, got %q", len(entries)+1, match[1]),
				Snippet:  snippet(trimmed),
			}
		}
		entries = append(entries, strings.TrimSpace(match[2]))
	}

	if len(entries) != want {
		return nil, &ResponseError{
			Provider: provider,
			Reason:   fmt.Sprintf("expected %d translations, got %d", want, len(entries)),
			Snippet:  snippet(trimmed),
		}
	}
	for i, entry := range entries {
		if entry == "" {
			return nil, &ResponseError{
				Provider: provider,
				Reason:   fmt.Sprintf("entry %d is empty", i+1),
				Snippet:  snippet(trimmed),
			}
		}
	}
	return entries, nil
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		body = body[idx+1:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}

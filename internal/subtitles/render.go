package subtitles

import (
	"fmt"
	"strings"
)

// Format identifies a subtitle output format.
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatTXT Format = "txt"
)

// ParseFormat converts a string into a known Format.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatSRT:
		return FormatSRT, nil
	case FormatVTT:
		return FormatVTT, nil
	case FormatTXT:
		return FormatTXT, nil
	default:
		return "", fmt.Errorf("unsupported subtitle format %q", value)
	}
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// RenderOptions controls rendering behavior.
type RenderOptions struct {
	// UseOriginal renders the transcript text instead of translations.
	UseOriginal bool
	// TxtTimestamps prefixes each TXT line with its time range.
	TxtTimestamps bool
}

// Render produces a subtitle document from a finished segment list. When
// rendering translations, every segment must carry one; a missing translation
// is an error rather than an empty cue, so gaps are surfaced instead of
// silently shipped.
func Render(format Format, segments []Segment, opts RenderOptions) (string, error) {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		if opts.UseOriginal {
			texts[i] = seg.Text
			continue
		}
		if seg.Translated == nil {
			return "", fmt.Errorf("segment %d has no translation", i+1)
		}
		texts[i] = *seg.Translated
	}

	switch format {
	case FormatSRT:
		return renderSRT(segments, texts), nil
	case FormatVTT:
		return renderVTT(segments, texts), nil
	case FormatTXT:
		return renderTXT(segments, texts, opts.TxtTimestamps), nil
	default:
		return "", fmt.Errorf("unsupported subtitle format %q", format)
	}
}

func renderSRT(segments []Segment, texts []string) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", FormatSRTTimestamp(seg.Start), FormatSRTTimestamp(seg.End))
		b.WriteString(texts[i])
		b.WriteString("\n\n")
	}
	return b.String()
}

func renderVTT(segments []Segment, texts []string) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", FormatVTTTimestamp(seg.Start), FormatVTTTimestamp(seg.End))
		b.WriteString(texts[i])
		b.WriteString("\n\n")
	}
	return b.String()
}

func renderTXT(segments []Segment, texts []string, timestamps bool) string {
	var b strings.Builder
	for i, seg := range segments {
		if timestamps {
			fmt.Fprintf(&b, "[%s --> %s] ", FormatSRTTimestamp(seg.Start), FormatSRTTimestamp(seg.End))
		}
		b.WriteString(texts[i])
		b.WriteString("\n")
	}
	return b.String()
}

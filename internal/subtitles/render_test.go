package subtitles

import (
	"strings"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func sampleSegments() []Segment {
	return []Segment{
		{Start: 0, End: 1500 * time.Millisecond, Text: "Hello", Translated: strPtr("Halo")},
		{Start: 2 * time.Second, End: 3700 * time.Millisecond, Text: "Goodbye", Translated: strPtr("Selamat tinggal")},
	}
}

func TestRenderSRT(t *testing.T) {
	out, err := Render(FormatSRT, sampleSegments(), RenderOptions{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\nHalo\n\n2\n00:00:02,000 --> 00:00:03,700\nSelamat tinggal\n\n"
	if out != want {
		t.Fatalf("SRT output mismatch:\n%q\nwant:\n%q", out, want)
	}
}

func TestRenderVTTHeaderAndDots(t *testing.T) {
	out, err := Render(FormatVTT, sampleSegments(), RenderOptions{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(out, "WEBVTT\n\n") {
		t.Fatalf("VTT output missing header: %q", out)
	}
	if !strings.Contains(out, "00:00:01.500") {
		t.Fatalf("VTT output missing dot timestamps: %q", out)
	}
	if strings.Contains(out, ",") {
		t.Fatalf("VTT output contains comma timestamps: %q", out)
	}
}

func TestRenderTXTWithAndWithoutTimestamps(t *testing.T) {
	withTS, err := Render(FormatTXT, sampleSegments(), RenderOptions{TxtTimestamps: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(withTS, "[00:00:00,000 --> 00:00:01,500] Halo\n") {
		t.Fatalf("TXT output = %q", withTS)
	}

	without, err := Render(FormatTXT, sampleSegments(), RenderOptions{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if without != "Halo\nSelamat tinggal\n" {
		t.Fatalf("TXT output = %q", without)
	}
}

func TestRenderMissingTranslationFails(t *testing.T) {
	segments := sampleSegments()
	segments[1].Translated = nil
	if _, err := Render(FormatSRT, segments, RenderOptions{}); err == nil {
		t.Fatal("expected error for missing translation")
	}
	// The transcript view still renders.
	if _, err := Render(FormatSRT, segments, RenderOptions{UseOriginal: true}); err != nil {
		t.Fatalf("transcript render: %v", err)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	d := 1*time.Hour + 2*time.Minute + 3*time.Second + 456*time.Millisecond
	srt := FormatSRTTimestamp(d)
	if srt != "01:02:03,456" {
		t.Fatalf("FormatSRTTimestamp = %q", srt)
	}
	parsed, err := ParseSRTTimestamp(srt)
	if err != nil {
		t.Fatalf("ParseSRTTimestamp: %v", err)
	}
	if parsed != d {
		t.Fatalf("round trip = %s, want %s", parsed, d)
	}
	if _, err := ParseSRTTimestamp("01:02:03.456"); err != nil {
		t.Fatalf("dot-separated parse: %v", err)
	}
}

func TestValidateSequence(t *testing.T) {
	good := sampleSegments()
	if err := ValidateSequence(good); err != nil {
		t.Fatalf("valid sequence rejected: %v", err)
	}

	inverted := []Segment{{Start: 2 * time.Second, End: time.Second, Text: "x"}}
	if err := ValidateSequence(inverted); err == nil {
		t.Fatal("expected error for end before start")
	}

	overlapping := []Segment{
		{Start: 0, End: 2 * time.Second, Text: "a"},
		{Start: time.Second, End: 3 * time.Second, Text: "b"},
	}
	if err := ValidateSequence(overlapping); err == nil {
		t.Fatal("expected error for overlapping segments")
	}
}

func TestSegmentJSONRoundTrip(t *testing.T) {
	segments := sampleSegments()
	segments[1].Translated = nil

	encoded, err := EncodeSegments(segments)
	if err != nil {
		t.Fatalf("EncodeSegments: %v", err)
	}
	decoded, err := DecodeSegments(encoded)
	if err != nil {
		t.Fatalf("DecodeSegments: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d segments", len(decoded))
	}
	if decoded[0].Start != 0 || decoded[0].End != 1500*time.Millisecond {
		t.Fatalf("decoded timing = %s..%s", decoded[0].Start, decoded[0].End)
	}
	if decoded[0].Translated == nil || *decoded[0].Translated != "Halo" {
		t.Fatal("decoded translation lost")
	}
	if decoded[1].Translated != nil {
		t.Fatal("absent translation decoded as present")
	}
	if TranslatedCount(decoded) != 1 {
		t.Fatalf("TranslatedCount = %d", TranslatedCount(decoded))
	}
}

package subtitles

import (
	"encoding/json"
	"fmt"
	"time"
)

// Segment is a timed unit of transcribed text with an optional translation.
// Translated stays nil until the batch translator fills it in; an empty
// string is never used to stand in for "not yet translated".
type Segment struct {
	Start      time.Duration
	End        time.Duration
	Text       string
	Translated *string
}

type segmentJSON struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Translated *string `json:"translated,omitempty"`
}

// MarshalJSON encodes timings as seconds so segment payloads stay readable
// in project files and transcriber output alike.
func (s Segment) MarshalJSON() ([]byte, error) {
	return json.Marshal(segmentJSON{
		Start:      s.Start.Seconds(),
		End:        s.End.Seconds(),
		Text:       s.Text,
		Translated: s.Translated,
	})
}

func (s *Segment) UnmarshalJSON(data []byte) error {
	var raw segmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Start = time.Duration(raw.Start * float64(time.Second))
	s.End = time.Duration(raw.End * float64(time.Second))
	s.Text = raw.Text
	s.Translated = raw.Translated
	return nil
}

// ValidateSequence checks the segment invariants: positive duration per
// segment, ascending start order, and no overlap between neighbors.
func ValidateSequence(segments []Segment) error {
	for i, seg := range segments {
		if seg.End <= seg.Start {
			return fmt.Errorf("segment %d: end %s not after start %s", i+1, seg.End, seg.Start)
		}
		if seg.Start < 0 {
			return fmt.Errorf("segment %d: negative start %s", i+1, seg.Start)
		}
		if i > 0 && seg.Start < segments[i-1].End {
			return fmt.Errorf("segment %d: starts at %s before previous segment ends at %s", i+1, seg.Start, segments[i-1].End)
		}
	}
	return nil
}

// EncodeSegments serializes a segment list for queue or project persistence.
func EncodeSegments(segments []Segment) (string, error) {
	data, err := json.Marshal(segments)
	if err != nil {
		return "", fmt.Errorf("encode segments: %w", err)
	}
	return string(data), nil
}

// DecodeSegments deserializes a segment payload. An empty payload decodes to
// a nil slice.
func DecodeSegments(payload string) ([]Segment, error) {
	if payload == "" {
		return nil, nil
	}
	var segments []Segment
	if err := json.Unmarshal([]byte(payload), &segments); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	return segments, nil
}

// TranslatedCount returns how many segments carry a translation.
func TranslatedCount(segments []Segment) int {
	count := 0
	for _, seg := range segments {
		if seg.Translated != nil {
			count++
		}
	}
	return count
}

package stage

import (
	"subtide/internal/services"
	"subtide/internal/subtitles"
)

// ParseSegments decodes a queue item's segment payload.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func ParseSegments(raw string) ([]subtitles.Segment, error) {
	segments, err := subtitles.DecodeSegments(raw)
	if err != nil || len(segments) == 0 {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "parse segments",
			"Segment payload missing or invalid; rerun transcription", err)
	}
	return segments, nil
}

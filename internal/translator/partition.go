package translator

import (
	"subtide/internal/services/providers"
	"subtide/internal/subtitles"
)

// Batch groups untranslated segments destined for a single provider request.
// Indices point back into the source slice.
type Batch struct {
	Indices []int
	Texts   []string
	Chars   int
}

// Partition greedily packs untranslated segments into batches bounded by the
// provider limits. A segment is never split: a batch closes when adding the
// next segment would exceed either bound, and a single segment larger than
// MaxBatchChars still forms its own batch.
func Partition(segments []subtitles.Segment, limits providers.Limits) []Batch {
	maxItems := limits.MaxBatchItems
	if maxItems <= 0 {
		maxItems = 1
	}
	maxChars := limits.MaxBatchChars

	var batches []Batch
	var current Batch
	flush := func() {
		if len(current.Indices) > 0 {
			batches = append(batches, current)
			current = Batch{}
		}
	}

	for i, segment := range segments {
		if segment.Translated != nil {
			continue
		}
		size := len(segment.Text)
		if len(current.Indices) >= maxItems {
			flush()
		}
		if maxChars > 0 && len(current.Indices) > 0 && current.Chars+size > maxChars {
			flush()
		}
		current.Indices = append(current.Indices, i)
		current.Texts = append(current.Texts, segment.Text)
		current.Chars += size
	}
	flush()
	return batches
}

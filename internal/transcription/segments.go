package transcription

import (
	"strings"

	"github.com/codebuildervaibhav/video-transcript/internal/types"
)

// SegmentSize is the number of words grouped under one timestamp.
const SegmentSize = 5

const itemPronunciation = "pronunciation"

// GroupSegments renders the pronunciation items of a transcription result
// as "start: w1 w2 w3 w4 w5" lines. The last line may hold fewer words.
func GroupSegments(doc *types.TranscriptDocument) []string {
	if doc == nil {
		return []string{}
	}
	return GroupItems(doc.Results.Items, SegmentSize)
}

// GroupItems groups consecutive pronunciation items into chunks of size
// words, each prefixed with the start time of its first word.
func GroupItems(items []types.TranscriptItem, size int) []string {
	if size <= 0 {
		size = SegmentSize
	}

	segments := []string{}
	words := make([]string, 0, size)
	var start string

	flush := func() {
		segments = append(segments, start+": "+strings.Join(words, " "))
		words = words[:0]
	}

	for _, item := range items {
		if item.Type != itemPronunciation {
			continue
		}
		if len(words) == 0 {
			start = item.StartTime
		}
		words = append(words, item.Word())
		if len(words) == size {
			flush()
		}
	}
	if len(words) > 0 {
		flush()
	}
	return segments
}

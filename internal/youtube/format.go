package youtube

import (
	"strconv"
	"strings"

	"github.com/codebuildervaibhav/video-transcript/internal/types"
)

// FormatCaptions renders caption entries as "start: text" lines, one per entry.
func FormatCaptions(entries []types.CaptionEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, FormatSeconds(e.Start)+": "+e.Text)
	}
	return lines
}

// FormatSeconds prints an offset in seconds the way it appears in caption
// tracks: shortest decimal form, always with a fractional part ("3.0", "12.34").
func FormatSeconds(sec float64) string {
	s := strconv.FormatFloat(sec, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

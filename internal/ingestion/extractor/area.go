package extractor

import (
	"strings"

	"github.com/yungbote/docqa-backend/internal/domain"
)

// A4 in points; areas are measured against it regardless of the real page box.
const (
	pageWidth  = 595.0
	pageHeight = 842.0

	smallAreaRatio = 0.1
	minAreaWords   = 10
)

// AreaFromPageText is a proportional stand-in for region extraction. Areas
// covering at least a tenth of the page get the whole page text. Smaller ones
// get a run of max(10, words*ratio*2) words starting at the word offset
// matching the area's vertical position.
func AreaFromPageText(text string, c domain.Coordinates) string {
	ratio := (c.Width * c.Height) / (pageWidth * pageHeight)
	if ratio >= smallAreaRatio {
		return text
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	n := max(minAreaWords, int(float64(len(words))*ratio*2))
	start := int(c.Y / pageHeight * float64(len(words)))
	start = min(max(start, 0), len(words))
	end := min(start+n, len(words))
	return strings.Join(words[start:end], " ")
}

package resume

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

// Split cuts text into chunks of at most chunkSize runes, consecutive chunks
// sharing about overlap runes. A cut prefers the last whitespace in the second
// half of the window so words stay whole.
func Split(text string, chunkSize, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := min(start+chunkSize, len(runes))
		if end < len(runes) {
			for cut := end; cut > start+chunkSize/2; cut-- {
				if unicode.IsSpace(runes[cut-1]) {
					end = cut
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

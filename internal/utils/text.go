package utils

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

const listMarkerChars = "1234567890.-) "

// StripListMarker removes leading numbering such as "1.", "2)" or "- ".
func StripListMarker(s string) string {
	return strings.TrimLeft(strings.TrimSpace(s), listMarkerChars)
}

// ParseLines splits free-form model output into non-empty, unnumbered lines.
func ParseLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(StripListMarker(line))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// CleanJSON strips markdown fences and anything outside the outermost object.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// TruncateForLog shortens s for log fields, marking the cut.
func TruncateForLog(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return Truncate(s, n) + "..."
}

func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// UnixNow returns the current time as fractional epoch seconds, the format
// persisted in session and evaluation records.
func UnixNow() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

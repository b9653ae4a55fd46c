package slug

import (
	"regexp"
	"strings"
)

var (
	apostrophes = strings.NewReplacer("'", "", "’", "")
	nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)
)

const maxLen = 64

// Make lowercases input and joins alphanumeric runs with dashes, so
// "Grounding 5-4-3-2-1" becomes "grounding-5-4-3-2-1".
func Make(input string) string {
	s := apostrophes.Replace(strings.ToLower(strings.TrimSpace(input)))
	s = nonAlphaNum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

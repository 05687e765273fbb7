package ingest

import (
	"regexp"
	"strings"
)

var productCodePattern = regexp.MustCompile(`(?i)\bC\d{1,6}\b`)

// ExtractCodes returns the product codes in text, upper-cased, in order of
// first appearance with repeats collapsed.
func ExtractCodes(text string) []string {
	matches := productCodePattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	codes := make([]string, 0, len(matches))
	for _, match := range matches {
		code := strings.ToUpper(match)
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

package match

import (
	"regexp"
	"strconv"
	"strings"
)

// Count notations, one per line: "Garlic x3", "Garlic ×3", "Garlic (3)",
// "Garlic: 3". Case-insensitive, whitespace-tolerant around the separator.
var countPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(.+?)\s*[x×]\s*(\d+)\s*$`),
	regexp.MustCompile(`^(.+?)\s*\(\s*(\d+)\s*\)\s*$`),
	regexp.MustCompile(`^(.+?)\s*:\s*(\d+)\s*$`),
}

// ExtractCounts parses per-line stack counts from recognized text. Keys are
// normalized lowercase entity names; non-positive or non-numeric counts are
// ignored. When the same name appears more than once the last count wins.
func ExtractCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, pat := range countPatterns {
			groups := pat.FindStringSubmatch(line)
			if groups == nil {
				continue
			}
			n, err := strconv.Atoi(groups[2])
			if err != nil || n <= 0 {
				continue
			}
			name := Normalize(groups[1])
			if name == "" {
				continue
			}
			counts[name] = n
			break
		}
	}
	return counts
}

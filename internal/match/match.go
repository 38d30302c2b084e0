// Package match scores raw recognized text against the entity catalog. The
// scoring is deterministic and tiered: exact name matches beat prefix
// matches beat substring matches beat character-overlap fuzzy matches. No
// trained model is involved.
package match

import (
	"sort"
	"strings"
	"unicode"

	"github.com/lootlens/lootlens/internal/catalog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Score tiers. The raw segment score is normalized by scoreExact to produce
// the confidence exposed to callers.
const (
	scoreExact    = 2000
	scorePrefix   = 1500
	scoreContains = 1000
	scoreFuzzyMax = 999
)

const (
	// maxSegmentLen is the line length above which a line is further split
	// on comma/semicolon/pipe delimiters.
	maxSegmentLen = 50
	// minSegmentLen drops trimmed segments at or below this length.
	minSegmentLen = 2

	// minFuzzyRatio is the least character-overlap ratio that still counts
	// as a fuzzy match. Below it a candidate scores zero.
	minFuzzyRatio = 0.6
	// minConfidence is the confidence floor; weaker matches are dropped.
	minConfidence = 0.30
)

// Result is one scored catalog match for a text segment.
type Result struct {
	Entity     catalog.Entity `json:"entity"`
	Confidence float64        `json:"confidence"`
	Kind       catalog.Kind   `json:"kind"`
	RawText    string         `json:"rawText,omitempty"`
}

// Penalizer supplies the feedback-derived score adjustment for a candidate.
// A nil Penalizer means no adjustment.
type Penalizer interface {
	TotalPenalty(detectedID string) float64
}

// Matcher scores text against one catalog. Safe for concurrent use; all
// state is read-only after construction.
type Matcher struct {
	catalog  *catalog.Catalog
	penalty  Penalizer
	normName map[string]string // entity id -> normalized name
}

// New creates a matcher over the given catalog. penalty may be nil.
func New(c *catalog.Catalog, penalty Penalizer) *Matcher {
	m := &Matcher{
		catalog:  c,
		penalty:  penalty,
		normName: make(map[string]string, c.Len()),
	}
	for _, kind := range catalog.Kinds() {
		for _, e := range c.ByKind(kind) {
			m.normName[e.ID] = Normalize(e.Name)
		}
	}
	return m
}

// stripMarks removes combining marks after NFD decomposition, folding
// accented characters to their base form.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases a name and folds diacritics so OCR output and
// catalog names compare on equal footing.
func Normalize(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// Segments splits raw recognized text into candidate segments: one per
// line, with long lines further split on comma/semicolon/pipe, and short
// leftovers discarded.
func Segments(text string) []string {
	var segs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := []string{line}
		if len(line) > maxSegmentLen {
			parts = strings.FieldsFunc(line, func(r rune) bool {
				return r == ',' || r == ';' || r == '|'
			})
		}
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if len(p) > minSegmentLen {
				segs = append(segs, p)
			}
		}
	}
	return segs
}

// scoreSegment returns the tiered raw score of a segment against a
// normalized entity name. Zero means no match.
func scoreSegment(normSeg, normName string) int {
	if normSeg == "" || normName == "" {
		return 0
	}
	switch {
	case normSeg == normName:
		return scoreExact
	case strings.HasPrefix(normSeg, normName):
		// OCR often appends stats or counts after the name
		return scorePrefix
	case strings.Contains(normSeg, normName):
		return scoreContains
	}
	ratio := lcsRatio(normSeg, normName)
	if ratio < minFuzzyRatio {
		return 0
	}
	return int(ratio * scoreFuzzyMax)
}

// lcsRatio computes the longest-common-subsequence length of a and b
// relative to the longer string, yielding a character-overlap ratio in
// [0,1].
func lcsRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	// single-row DP over the shorter string
	if len(rb) > len(ra) {
		ra, rb = rb, ra
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]
	return float64(lcs) / float64(len(ra))
}

// DetectEntities scores every segment of text against every entity of the
// given kind and returns one result per distinct entity, ordered by
// descending confidence. Matches below the confidence floor are dropped.
func (m *Matcher) DetectEntities(text string, kind catalog.Kind) []Result {
	segments := Segments(text)
	if len(segments) == 0 {
		return nil
	}

	best := make(map[string]Result)
	for _, seg := range segments {
		normSeg := Normalize(seg)
		for _, e := range m.catalog.ByKind(kind) {
			score := scoreSegment(normSeg, m.normName[e.ID])
			if score == 0 {
				continue
			}
			conf := float64(score) / scoreExact
			if m.penalty != nil {
				conf += m.penalty.TotalPenalty(e.ID)
			}
			if conf < minConfidence {
				continue
			}
			if conf > 1 {
				conf = 1
			}
			if prev, ok := best[e.ID]; !ok || conf > prev.Confidence {
				best[e.ID] = Result{Entity: e, Confidence: conf, Kind: kind, RawText: seg}
			}
		}
	}

	results := make([]Result, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Entity.Name < results[j].Entity.Name
	})
	return results
}

// DetectSingleEntity returns the best match for the text, or nil when
// nothing clears the confidence floor.
func (m *Matcher) DetectSingleEntity(text string, kind catalog.Kind) *Result {
	results := m.DetectEntities(text, kind)
	if len(results) == 0 {
		return nil
	}
	return &results[0]
}

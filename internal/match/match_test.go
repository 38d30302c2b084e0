package match

import (
	"strings"
	"testing"

	"github.com/lootlens/lootlens/internal/catalog"
	"github.com/lootlens/lootlens/internal/feedback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	return catalog.New(map[catalog.Kind][]catalog.Entity{
		catalog.KindItem: {
			{ID: "garlic", Name: "Garlic", Rarity: catalog.RarityCommon},
			{ID: "garlic-bread", Name: "Garlic Bread", Rarity: catalog.RarityRare},
			{ID: "holy-water", Name: "Holy Water", Rarity: catalog.RarityEpic},
			{ID: "crown", Name: "Crown", Rarity: catalog.RarityLegendary},
		},
		catalog.KindWeapon: {
			{ID: "whip", Name: "Whip"},
			{ID: "fire-wand", Name: "Fire Wand"},
		},
	})
}

func TestSegments(t *testing.T) {
	text := "Garlic\n\n  Whip  \nab\n" +
		strings.Repeat("Holy Water, Fire Wand, Crown, filler filler fill", 2)
	segs := Segments(text)
	assert.Contains(t, segs, "Garlic")
	assert.Contains(t, segs, "Whip")
	// two-char segment dropped
	assert.NotContains(t, segs, "ab")
	// long line was split on commas
	assert.Contains(t, segs, "Holy Water")
	assert.Contains(t, segs, "Fire Wand")
}

func TestSegments_ShortLineNotSplit(t *testing.T) {
	segs := Segments("Holy Water, Fire Wand")
	// under the length threshold the line stays whole
	assert.Equal(t, []string{"Holy Water, Fire Wand"}, segs)
}

func TestDetectEntities_Exact(t *testing.T) {
	m := New(testCatalog(t), nil)
	results := m.DetectEntities("Garlic", catalog.KindItem)
	require.Len(t, results, 1)
	assert.Equal(t, "garlic", results[0].Entity.ID)
	assert.Greater(t, results[0].Confidence, 0.9)
	assert.Equal(t, "Garlic", results[0].RawText)
}

func TestDetectEntities_Unrelated(t *testing.T) {
	m := New(testCatalog(t), nil)
	assert.Empty(t, m.DetectEntities("zzz qqq completely different", catalog.KindItem))
}

func TestDetectEntities_Tiers(t *testing.T) {
	m := New(testCatalog(t), nil)

	// prefix: name followed by trailing OCR junk
	results := m.DetectEntities("Holy Water +2 damage", catalog.KindItem)
	require.NotEmpty(t, results)
	assert.Equal(t, "holy-water", results[0].Entity.ID)
	assert.InDelta(t, 0.75, results[0].Confidence, 1e-9)

	// contains: name embedded mid-segment
	results = m.DetectEntities("owns a Crown today", catalog.KindItem)
	require.NotEmpty(t, results)
	assert.Equal(t, "crown", results[0].Entity.ID)
	assert.InDelta(t, 0.5, results[0].Confidence, 1e-9)

	// fuzzy: single OCR misread
	results = m.DetectEntities("Gar1ic", catalog.KindItem)
	require.NotEmpty(t, results)
	assert.Equal(t, "garlic", results[0].Entity.ID)
	assert.Less(t, results[0].Confidence, 0.5)
}

func TestDetectEntities_DedupeKeepsBest(t *testing.T) {
	m := New(testCatalog(t), nil)
	results := m.DetectEntities("Garlic\nGarlic x3\nGarlic", catalog.KindItem)
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Entity.ID)
	}
	// one result per distinct entity, exact occurrence wins
	assert.Equal(t, []string{"garlic"}, ids)
	assert.InDelta(t, 1.0, results[0].Confidence, 1e-9)
}

func TestDetectEntities_Ordering(t *testing.T) {
	m := New(testCatalog(t), nil)
	results := m.DetectEntities("Crown\nHoly Water of something", catalog.KindItem)
	require.Len(t, results, 2)
	assert.Equal(t, "crown", results[0].Entity.ID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Confidence, results[i].Confidence)
	}
}

func TestDetectEntities_KindIsolation(t *testing.T) {
	m := New(testCatalog(t), nil)
	assert.Empty(t, m.DetectEntities("Whip", catalog.KindItem))
	require.Len(t, m.DetectEntities("Whip", catalog.KindWeapon), 1)
}

func TestDetectEntities_DiacriticsFold(t *testing.T) {
	c := catalog.New(map[catalog.Kind][]catalog.Entity{
		catalog.KindCharacter: {{ID: "rene", Name: "René"}},
	})
	m := New(c, nil)
	results := m.DetectEntities("Rene", catalog.KindCharacter)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Confidence, 1e-9)
}

func TestDetectSingleEntity(t *testing.T) {
	m := New(testCatalog(t), nil)
	r := m.DetectSingleEntity("Fire Wand", catalog.KindWeapon)
	require.NotNil(t, r)
	assert.Equal(t, "fire-wand", r.Entity.ID)

	assert.Nil(t, m.DetectSingleEntity("nothing here", catalog.KindWeapon))
}

func TestDetectEntities_PenaltyApplied(t *testing.T) {
	ledger := feedback.NewLedger()
	// garlic detected three times when the truth was garlic-bread
	ledger.RecordCorrection("garlic", "garlic-bread", 0.8, "h1")
	ledger.RecordCorrection("garlic", "garlic-bread", 0.8, "h2")
	ledger.RecordCorrection("garlic", "garlic-bread", 0.8, "h3")

	plain := New(testCatalog(t), nil)
	penalized := New(testCatalog(t), ledger)

	base := plain.DetectEntities("Garlic", catalog.KindItem)[0].Confidence
	adjusted := penalized.DetectEntities("Garlic", catalog.KindItem)[0].Confidence
	assert.InDelta(t, base-0.09, adjusted, 1e-9)
}

func TestLCSRatio(t *testing.T) {
	assert.InDelta(t, 1.0, lcsRatio("garlic", "garlic"), 1e-9)
	assert.InDelta(t, 0.0, lcsRatio("abc", ""), 1e-9)
	assert.InDelta(t, 5.0/6.0, lcsRatio("gar1ic", "garlic"), 1e-9)
}

func TestExtractCounts(t *testing.T) {
	text := "Garlic x3\nWhip ×2\nCrown (4)\nHoly Water: 5\nFire Wand x0\nplain line"
	counts := ExtractCounts(text)
	assert.Equal(t, map[string]int{
		"garlic":     3,
		"whip":       2,
		"crown":      4,
		"holy water": 5,
	}, counts)
}

func TestExtractCounts_CaseAndWhitespace(t *testing.T) {
	counts := ExtractCounts("GARLIC X 7\nCrown   :   2")
	assert.Equal(t, 7, counts["garlic"])
	assert.Equal(t, 2, counts["crown"])
}

func TestExtractCounts_Empty(t *testing.T) {
	assert.Empty(t, ExtractCounts(""))
	assert.Empty(t, ExtractCounts("no counts in here"))
}

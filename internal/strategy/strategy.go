// Package strategy holds the named detection configuration presets and the
// process-wide active strategy, along with the confidence-threshold policies
// the matching passes use.
package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lootlens/lootlens/internal/catalog"
)

// ErrUnknownPreset is returned when a strategy name does not match any preset.
var ErrUnknownPreset = errors.New("unknown strategy preset")

// ColorFiltering selects how color signatures narrow the candidate set.
type ColorFiltering string

const (
	ColorFilterRarityFirst ColorFiltering = "rarity-first"
	ColorFilterColorFirst  ColorFiltering = "color-first"
	ColorFilterNone        ColorFiltering = "none"
)

// ColorAnalysis selects how a region's color signature is computed.
type ColorAnalysis string

const (
	ColorAnalysisSingleDominant ColorAnalysis = "single-dominant"
	ColorAnalysisMultiRegion    ColorAnalysis = "multi-region"
	ColorAnalysisHSV            ColorAnalysis = "hsv-based"
)

// ThresholdPolicy selects how per-pass confidence thresholds are derived.
type ThresholdPolicy string

const (
	ThresholdsFixed          ThresholdPolicy = "fixed"
	ThresholdsAdaptiveRarity ThresholdPolicy = "adaptive-rarity"
	ThresholdsAdaptiveGap    ThresholdPolicy = "adaptive-gap"
)

// MatchingAlgorithm selects the template-matching score function.
type MatchingAlgorithm string

const (
	MatchNCC  MatchingAlgorithm = "ncc"
	MatchSSD  MatchingAlgorithm = "ssd"
	MatchSSIM MatchingAlgorithm = "ssim"
)

// Strategy is an immutable detection configuration. Callers always receive
// copies; the preset table itself is never handed out.
type Strategy struct {
	Name                  string            `json:"name"`
	ColorFiltering        ColorFiltering    `json:"colorFiltering"`
	ColorAnalysis         ColorAnalysis     `json:"colorAnalysis"`
	ConfidenceThresholds  ThresholdPolicy   `json:"confidenceThresholds"`
	MatchingAlgorithm     MatchingAlgorithm `json:"matchingAlgorithm"`
	UseContextBoosting    bool              `json:"useContextBoosting"`
	UseBorderValidation   bool              `json:"useBorderValidation"`
	UseFeedbackLoop       bool              `json:"useFeedbackLoop"`
	UseEmptyCellDetection bool              `json:"useEmptyCellDetection"`
	MultiPassEnabled      bool              `json:"multiPassEnabled"`
}

// presets is the fixed table of named strategies. Only copies ever leave
// this package.
var presets = map[string]Strategy{
	"current": {
		Name:                  "current",
		ColorFiltering:        ColorFilterRarityFirst,
		ColorAnalysis:         ColorAnalysisMultiRegion,
		ConfidenceThresholds:  ThresholdsFixed,
		MatchingAlgorithm:     MatchNCC,
		UseContextBoosting:    true,
		UseBorderValidation:   true,
		UseFeedbackLoop:       true,
		UseEmptyCellDetection: true,
		MultiPassEnabled:      true,
	},
	"optimized": {
		Name:                  "optimized",
		ColorFiltering:        ColorFilterRarityFirst,
		ColorAnalysis:         ColorAnalysisHSV,
		ConfidenceThresholds:  ThresholdsAdaptiveRarity,
		MatchingAlgorithm:     MatchNCC,
		UseContextBoosting:    true,
		UseBorderValidation:   true,
		UseFeedbackLoop:       true,
		UseEmptyCellDetection: true,
		MultiPassEnabled:      true,
	},
	"fast": {
		Name:                 "fast",
		ColorFiltering:       ColorFilterColorFirst,
		ColorAnalysis:        ColorAnalysisSingleDominant,
		ConfidenceThresholds: ThresholdsFixed,
		MatchingAlgorithm:    MatchSSD,
		UseFeedbackLoop:      true,
	},
	"accurate": {
		Name:                  "accurate",
		ColorFiltering:        ColorFilterRarityFirst,
		ColorAnalysis:         ColorAnalysisHSV,
		ConfidenceThresholds:  ThresholdsAdaptiveRarity,
		MatchingAlgorithm:     MatchSSIM,
		UseContextBoosting:    true,
		UseBorderValidation:   true,
		UseFeedbackLoop:       true,
		UseEmptyCellDetection: true,
		MultiPassEnabled:      true,
	},
	"balanced": {
		Name:                 "balanced",
		ColorFiltering:       ColorFilterRarityFirst,
		ColorAnalysis:        ColorAnalysisMultiRegion,
		ConfidenceThresholds: ThresholdsAdaptiveGap,
		MatchingAlgorithm:    MatchNCC,
		UseBorderValidation:  true,
		UseFeedbackLoop:      true,
		MultiPassEnabled:     true,
	},
}

// DefaultPreset is the preset the engine starts with.
const DefaultPreset = "current"

// Preset returns a copy of the named preset.
func Preset(name string) (Strategy, error) {
	s, ok := presets[name]
	if !ok {
		return Strategy{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return s, nil
}

// PresetNames returns all preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Presets returns a copy of the preset table.
func Presets() map[string]Strategy {
	out := make(map[string]Strategy, len(presets))
	for name, s := range presets {
		out[name] = s
	}
	return out
}

// Engine owns the active strategy. Switching strategies never mutates the
// preset table; Active always returns a copy.
type Engine struct {
	mu     sync.RWMutex
	active Strategy
}

// NewEngine creates an engine with the default preset active.
func NewEngine() *Engine {
	s, _ := Preset(DefaultPreset)
	return &Engine{active: s}
}

// Active returns a copy of the currently active strategy.
func (e *Engine) Active() Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

// SetActiveName activates the named preset. Unknown names fail with
// ErrUnknownPreset and leave the active strategy unchanged.
func (e *Engine) SetActiveName(name string) error {
	s, err := Preset(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.active = s
	e.mu.Unlock()
	return nil
}

// SetActive activates a fully custom strategy.
func (e *Engine) SetActive(s Strategy) {
	if s.Name == "" {
		s.Name = "custom"
	}
	e.mu.Lock()
	e.active = s
	e.mu.Unlock()
}

// Thresholds are the per-pass confidence cutoffs. Pass1 > Pass2 > Pass3
// always holds.
type Thresholds struct {
	Pass1 float64 `json:"pass1"`
	Pass2 float64 `json:"pass2"`
	Pass3 float64 `json:"pass3"`
}

// fixedThresholds are the defaults used by the fixed policy and by
// adaptive-gap, which intentionally falls back to fixed for now.
var fixedThresholds = Thresholds{Pass1: 0.85, Pass2: 0.70, Pass3: 0.60}

// rarityThresholds maps entity rarity to pass cutoffs under adaptive-rarity.
// Common entities get stricter cutoffs than legendary ones: the common pool
// is larger and visually far more confusable, so a higher bar is needed to
// keep false positives down.
var rarityThresholds = map[catalog.Rarity]Thresholds{
	catalog.RarityCommon:    {Pass1: 0.88, Pass2: 0.75, Pass3: 0.65},
	catalog.RarityUncommon:  {Pass1: 0.86, Pass2: 0.72, Pass3: 0.62},
	catalog.RarityRare:      {Pass1: 0.84, Pass2: 0.70, Pass3: 0.60},
	catalog.RarityEpic:      {Pass1: 0.82, Pass2: 0.68, Pass3: 0.58},
	catalog.RarityLegendary: {Pass1: 0.80, Pass2: 0.65, Pass3: 0.55},
}

// ConfidenceThresholdsFor returns the pass cutoffs for a strategy and an
// optional entity rarity (empty rarity is treated as common).
func ConfidenceThresholdsFor(s Strategy, rarity catalog.Rarity) Thresholds {
	switch s.ConfidenceThresholds {
	case ThresholdsAdaptiveRarity:
		if rarity == "" {
			rarity = catalog.RarityCommon
		}
		if t, ok := rarityThresholds[rarity]; ok {
			return t
		}
		return rarityThresholds[catalog.RarityCommon]
	case ThresholdsAdaptiveGap:
		// Behaves like fixed until a gap heuristic is settled on.
		return fixedThresholds
	default:
		return fixedThresholds
	}
}

package pipeline

import (
	"context"
	"image"
	"log/slog"
	"sort"
	"strings"

	"github.com/lootlens/lootlens/internal/catalog"
	"github.com/lootlens/lootlens/internal/colorprofile"
	"github.com/lootlens/lootlens/internal/common"
	"github.com/lootlens/lootlens/internal/match"
	"github.com/lootlens/lootlens/internal/ocr"
	"github.com/lootlens/lootlens/internal/strategy"
	xdraw "golang.org/x/image/draw"
)

// contextBoost is added to a candidate whose rarity color agrees with the
// cell's border color.
const contextBoost = 0.05

// Detection is the outcome of one pipeline run.
type Detection struct {
	Fingerprint string               `json:"fingerprint"`
	Results     []match.Result       `json:"results"`
	Counts      map[string]int       `json:"counts,omitempty"`
	Profile     colorprofile.Profile `json:"profile"`
	RawText     string               `json:"rawText,omitempty"`
	FromCache   bool                 `json:"fromCache"`
	ElapsedMS   int64                `json:"elapsedMs"`
}

// rarityColors maps entity rarity to the border color the game renders.
var rarityColors = map[catalog.Rarity]colorprofile.Category{
	catalog.RarityCommon:    colorprofile.Gray,
	catalog.RarityUncommon:  colorprofile.Green,
	catalog.RarityRare:      colorprofile.Blue,
	catalog.RarityEpic:      colorprofile.Purple,
	catalog.RarityLegendary: colorprofile.Orange,
}

// rarityFor is the reverse of rarityColors: the rarity a border color
// encodes, if any.
func rarityFor(c colorprofile.Category) (catalog.Rarity, bool) {
	for rarity, cat := range rarityColors {
		if cat == c {
			return rarity, true
		}
	}
	return "", false
}

// maxSignatureDistance is the profile distance beyond which a candidate's
// rarity coloring is considered absent from the cell.
const maxSignatureDistance = 1.0 / colorprofile.NumFields

// Detect runs the full pipeline over one screenshot for the given entity
// kinds (all kinds when none are named). Previously seen fingerprints
// short-circuit to the cached results within the TTL window. Recognition
// failure still returns the color profile so callers can degrade
// gracefully; the typed error rides alongside.
func (d *Detector) Detect(ctx context.Context, img image.Image, kinds ...catalog.Kind) (*Detection, error) {
	timer := common.StartStage("detect")
	if len(kinds) == 0 {
		kinds = catalog.Kinds()
	}

	fp := Fingerprint(img)
	// Results depend on the requested kinds, so the cache key carries them
	// alongside the image fingerprint.
	cacheKey := fp + "|" + kindsKey(kinds)
	if cached, ok := d.detCache.Get(cacheKey); ok {
		slog.Debug("detection cache hit", "fingerprint", fp)
		return &Detection{
			Fingerprint: fp,
			Results:     cached,
			FromCache:   true,
			ElapsedMS:   timer.Stop().Milliseconds(),
		}, nil
	}

	strat := d.Strategies.Active()

	// Color profiling runs alongside the (much slower) recognition call.
	profileCh := make(chan colorprofile.Profile, 1)
	go func() { profileCh <- colorprofile.Extract(img) }()

	recognized, ocrErr := d.Worker.Recognize(ctx, img, ocr.Options{
		Timeout:    d.cfg.Timeout,
		MaxRetries: d.cfg.MaxRetries,
	})
	profile := <-profileCh

	det := &Detection{
		Fingerprint: fp,
		Profile:     profile,
		RawText:     recognized.Text,
	}
	if ocrErr != nil {
		det.ElapsedMS = timer.Stop().Milliseconds()
		return det, ocrErr
	}

	if strat.UseEmptyCellDetection && d.looksEmpty(recognized.Text, profile) {
		det.ElapsedMS = timer.Stop().Milliseconds()
		d.detCache.Put(cacheKey, nil)
		return det, nil
	}

	var results []match.Result
	for _, kind := range kinds {
		results = append(results, d.Matcher.DetectEntities(recognized.Text, kind)...)
	}
	results = d.applyStrategy(img, profile, strat, results)

	det.Results = results
	det.Counts = match.ExtractCounts(recognized.Text)
	det.ElapsedMS = timer.Stop().Milliseconds()
	d.detCache.Put(cacheKey, results)
	return det, nil
}

// looksEmpty reports whether a cell is most likely an empty inventory slot:
// no recognized text over a flat dark fill.
func (d *Detector) looksEmpty(text string, profile colorprofile.Profile) bool {
	if strings.TrimSpace(text) != "" {
		return false
	}
	dom := profile.Dominant
	return dom == colorprofile.Black || dom == colorprofile.Gray
}

// applyStrategy runs the strategy-dependent adjustment passes: color
// filtering, ledger penalties when the feedback loop is on, border
// validation boosting, template validation when multi-pass is on, and the
// final threshold filter. Results stay ordered by descending confidence.
func (d *Detector) applyStrategy(img image.Image, profile colorprofile.Profile, strat strategy.Strategy, results []match.Result) []match.Result {
	results = colorFilter(profile, strat, results)
	if len(results) == 0 {
		return nil
	}

	var cell *image.NRGBA
	if strat.MultiPassEnabled {
		cell = toNRGBA(img)
	}

	kept := results[:0]
	for _, r := range results {
		conf := r.Confidence
		if strat.UseFeedbackLoop {
			conf += d.Ledger.TotalPenalty(r.Entity.ID)
		}
		if strat.UseBorderValidation || strat.UseContextBoosting {
			if want, ok := rarityColors[r.Entity.Rarity]; ok && want == profile.Border {
				conf += contextBoost
			}
		}

		th := strategy.ConfidenceThresholdsFor(strat, r.Entity.Rarity)
		if strat.MultiPassEnabled && conf < th.Pass1 && d.Validator.Has(r.Entity.ID) {
			// Second pass: let the visual evidence pull a borderline text
			// match up or down.
			if best, ok := d.Validator.Best(cell, []string{r.Entity.ID}, strat.MatchingAlgorithm); ok {
				conf = (conf + best.Score) / 2
			}
		}
		if conf > 1 {
			conf = 1
		}

		floor := th.Pass2
		if strat.MultiPassEnabled {
			floor = th.Pass3
		}
		if conf < floor {
			continue
		}
		r.Confidence = conf
		kept = append(kept, r)
	}

	sortResults(kept)
	return kept
}

// colorFilter narrows the candidate set using the cell's color signature
// before any scoring adjustments run. Rarity-first trusts the border ring:
// when it renders a rarity color, candidates of a different known rarity
// are dropped. Color-first trusts the overall signature: candidates whose
// rarity coloring is too far from the observed profile are dropped.
func colorFilter(profile colorprofile.Profile, strat strategy.Strategy, results []match.Result) []match.Result {
	if len(results) == 0 {
		return results
	}
	switch strat.ColorFiltering {
	case strategy.ColorFilterRarityFirst:
		observed, ok := rarityFor(profile.Border)
		if !ok {
			return results
		}
		kept := results[:0]
		for _, r := range results {
			if r.Entity.Rarity == "" || r.Entity.Rarity == observed {
				kept = append(kept, r)
			}
		}
		return kept
	case strategy.ColorFilterColorFirst:
		kept := results[:0]
		for _, r := range results {
			if signatureDistance(profile, r.Entity.Rarity, strat.ColorAnalysis) <= maxSignatureDistance {
				kept = append(kept, r)
			}
		}
		return kept
	default:
		return results
	}
}

// signatureDistance measures how far the observed cell colors sit from the
// expected rendering of the given rarity. The analysis mode decides how
// much of the profile participates: single-dominant only checks the
// dominant and border categories, multi-region compares the full profile
// with the border swapped for the rarity color, and hsv-based additionally
// expects the rarity color to dominate.
func signatureDistance(profile colorprofile.Profile, rarity catalog.Rarity, analysis strategy.ColorAnalysis) float64 {
	want, ok := rarityColors[rarity]
	if !ok {
		// unknown rarity constrains nothing
		return 0
	}
	switch analysis {
	case strategy.ColorAnalysisSingleDominant:
		if profile.Dominant == want || profile.Border == want {
			return 0
		}
		return 1
	case strategy.ColorAnalysisHSV:
		sig := profile
		sig.Border = want
		sig.Dominant = want
		return colorprofile.Distance(profile, sig)
	default:
		sig := profile
		sig.Border = want
		return colorprofile.Distance(profile, sig)
	}
}

// sortResults orders by descending confidence with a stable name tiebreak.
func sortResults(results []match.Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Entity.Name < results[j].Entity.Name
	})
}

// kindsKey renders the requested kinds as a stable cache-key suffix.
func kindsKey(kinds []catalog.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// toNRGBA converts any image into an NRGBA buffer.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}

// Package templatematch scores image regions against catalog reference
// templates. Three score functions are supported (normalized cross
// correlation, sum of squared differences, and a global SSIM), all returning
// scores in [0,1]. Templates are pre-scaled through the bounded template
// cache so repeated passes over the catalog stay cheap.
package templatematch

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/lootlens/lootlens/internal/cache"
	"github.com/lootlens/lootlens/internal/mempool"
	"github.com/lootlens/lootlens/internal/strategy"
)

var errSizeMismatch = errors.New("region and template dimensions differ")

// Score compares two equally-sized images with the given algorithm.
func Score(region, tmpl *image.NRGBA, algo strategy.MatchingAlgorithm) (float64, error) {
	if region == nil || tmpl == nil {
		return 0, errors.New("nil image")
	}
	rb, tb := region.Bounds(), tmpl.Bounds()
	if rb.Dx() != tb.Dx() || rb.Dy() != tb.Dy() {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d",
			errSizeMismatch, rb.Dx(), rb.Dy(), tb.Dx(), tb.Dy())
	}
	n := rb.Dx() * rb.Dy()
	a := mempool.GetFloat64(n)
	b := mempool.GetFloat64(n)
	defer mempool.PutFloat64(a)
	defer mempool.PutFloat64(b)
	grayValues(region, a)
	grayValues(tmpl, b)
	switch algo {
	case strategy.MatchSSD:
		return ssd(a, b), nil
	case strategy.MatchSSIM:
		return ssim(a, b), nil
	case strategy.MatchNCC, "":
		return ncc(a, b), nil
	default:
		return 0, fmt.Errorf("unknown matching algorithm: %q", algo)
	}
}

// grayValues flattens an image to Rec.709 luma values in [0,1], writing
// into the caller-provided buffer of exactly width*height elements.
func grayValues(img *image.NRGBA, out []float64) {
	b := img.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			off := img.PixOffset(x, y)
			r := float64(img.Pix[off]) / 255.0
			g := float64(img.Pix[off+1]) / 255.0
			bl := float64(img.Pix[off+2]) / 255.0
			out[i] = 0.2126*r + 0.7152*g + 0.0722*bl
			i++
		}
	}
}

func meanOf(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// ncc computes normalized cross correlation, mapped from [-1,1] to [0,1].
// Two constant images correlate perfectly when their values are equal and
// not at all otherwise.
func ncc(a, b []float64) float64 {
	ma, mb := meanOf(a), meanOf(b)
	var num, va, vb float64
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		num += da * db
		va += da * da
		vb += db * db
	}
	if va < 1e-12 || vb < 1e-12 {
		if va < 1e-12 && vb < 1e-12 {
			if math.Abs(ma-mb) < 1e-9 {
				return 1
			}
			return 0
		}
		return 0
	}
	corr := num / math.Sqrt(va*vb)
	return (corr + 1) / 2
}

// ssd converts the mean squared difference into a similarity in [0,1].
func ssd(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return 1 - sum/float64(len(a))
}

// SSIM stabilizing constants for unit-range signals.
const (
	ssimC1 = 0.01 * 0.01
	ssimC2 = 0.03 * 0.03
)

// ssim computes a single global SSIM value over the whole region rather
// than a windowed mean; cells are small enough that windowing adds nothing.
func ssim(a, b []float64) float64 {
	ma, mb := meanOf(a), meanOf(b)
	var va, vb, cov float64
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		va += da * da
		vb += db * db
		cov += da * db
	}
	n := float64(len(a))
	va, vb, cov = va/n, vb/n, cov/n

	s := ((2*ma*mb + ssimC1) * (2*cov + ssimC2)) /
		((ma*ma + mb*mb + ssimC1) * (va + vb + ssimC2))
	// numerical noise can push s a hair outside [0,1]
	return math.Min(1, math.Max(0, s))
}

// Match is one template comparison outcome.
type Match struct {
	TemplateID string  `json:"templateId"`
	Score      float64 `json:"score"`
}

// Validator scores cells against registered reference templates, rescaling
// them through the shared FIFO template cache.
type Validator struct {
	templates map[string]image.Image
	cache     *cache.TemplateCache
}

// NewValidator creates a validator backed by the given template cache.
func NewValidator(c *cache.TemplateCache) *Validator {
	return &Validator{
		templates: make(map[string]image.Image),
		cache:     c,
	}
}

// Register adds a reference template under the given id, replacing any
// previous registration.
func (v *Validator) Register(templateID string, img image.Image) {
	v.templates[templateID] = img
}

// Has reports whether a template is registered under the id.
func (v *Validator) Has(templateID string) bool {
	_, ok := v.templates[templateID]
	return ok
}

// ScoreCandidates scores the cell against each candidate template and
// returns the matches in candidate order; candidates without a registered
// template are skipped. The cell's dimensions pick the cached template
// scale.
func (v *Validator) ScoreCandidates(cell *image.NRGBA, candidateIDs []string, algo strategy.MatchingAlgorithm) []Match {
	if cell == nil || len(candidateIDs) == 0 {
		return nil
	}
	w, h := cell.Bounds().Dx(), cell.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil
	}
	matches := make([]Match, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		src, ok := v.templates[id]
		if !ok {
			continue
		}
		tmpl := v.cache.GetOrResize(id, src, w, h)
		score, err := Score(cell, tmpl, algo)
		if err != nil {
			continue
		}
		matches = append(matches, Match{TemplateID: id, Score: score})
	}
	return matches
}

// Best returns the highest-scoring candidate, if any cleared zero.
func (v *Validator) Best(cell *image.NRGBA, candidateIDs []string, algo strategy.MatchingAlgorithm) (Match, bool) {
	matches := v.ScoreCandidates(cell, candidateIDs, algo)
	best := Match{Score: -1}
	for _, m := range matches {
		if m.Score > best.Score {
			best = m
		}
	}
	return best, best.Score >= 0
}

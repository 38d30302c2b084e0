package templatematch

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/lootlens/lootlens/internal/cache"
	"github.com/lootlens/lootlens/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(c color.Color, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func checkerboard(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			c := color.NRGBA{A: 255}
			if (x+y)%2 == 0 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestScore_IdenticalImages(t *testing.T) {
	img := checkerboard(16, 16)
	for _, algo := range []strategy.MatchingAlgorithm{strategy.MatchNCC, strategy.MatchSSD, strategy.MatchSSIM} {
		score, err := Score(img, img, algo)
		require.NoError(t, err, string(algo))
		assert.InDelta(t, 1.0, score, 0.01, string(algo))
	}
}

func TestScore_OppositeImages(t *testing.T) {
	black := fill(color.NRGBA{A: 255}, 16, 16)
	white := fill(color.NRGBA{R: 255, G: 255, B: 255, A: 255}, 16, 16)
	for _, algo := range []strategy.MatchingAlgorithm{strategy.MatchNCC, strategy.MatchSSD, strategy.MatchSSIM} {
		score, err := Score(black, white, algo)
		require.NoError(t, err, string(algo))
		assert.Less(t, score, 0.2, string(algo))
	}
}

func TestScore_InvertedPattern(t *testing.T) {
	a := checkerboard(16, 16)
	b := image.NewNRGBA(a.Bounds())
	for y := range 16 {
		for x := range 16 {
			c := color.NRGBA{A: 255}
			if (x+y)%2 == 1 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			b.Set(x, y, c)
		}
	}
	// perfectly anti-correlated pattern maps to ~0 under NCC
	score, err := Score(a, b, strategy.MatchNCC)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score, 0.05)
}

func TestScore_SizeMismatch(t *testing.T) {
	_, err := Score(fill(color.Black, 8, 8), fill(color.Black, 16, 16), strategy.MatchNCC)
	assert.Error(t, err)
}

func TestScore_UnknownAlgorithm(t *testing.T) {
	img := fill(color.Black, 4, 4)
	_, err := Score(img, img, strategy.MatchingAlgorithm("phase-corr"))
	assert.Error(t, err)
}

func TestScore_DefaultsToNCC(t *testing.T) {
	img := checkerboard(8, 8)
	score, err := Score(img, img, "")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 0.01)
}

func TestValidator_ScoreCandidates(t *testing.T) {
	tc := cache.NewTemplateCache(10)
	v := NewValidator(tc)
	v.Register("white", fill(color.NRGBA{R: 250, G: 250, B: 250, A: 255}, 64, 64))
	v.Register("black", fill(color.NRGBA{A: 255}, 64, 64))

	cell := fill(color.NRGBA{R: 250, G: 250, B: 250, A: 255}, 32, 32)
	best, ok := v.Best(cell, []string{"white", "black", "missing"}, strategy.MatchSSD)
	require.True(t, ok)
	assert.Equal(t, "white", best.TemplateID)
	assert.Greater(t, best.Score, 0.9)

	// both registered templates got scored, the unregistered one skipped
	assert.Len(t, v.ScoreCandidates(cell, []string{"white", "black", "missing"}, strategy.MatchSSD), 2)

	// templates were rescaled through the cache at the cell size
	_, cached := tc.Get(cache.TemplateKey{TemplateID: "white", Width: 32, Height: 32})
	assert.True(t, cached)
}

func TestValidator_NoCandidates(t *testing.T) {
	v := NewValidator(cache.NewTemplateCache(10))
	_, ok := v.Best(fill(color.Black, 8, 8), nil, strategy.MatchNCC)
	assert.False(t, ok)
}

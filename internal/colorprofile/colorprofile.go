// Package colorprofile extracts categorical color signatures from image
// regions. Profiles are used for coarse candidate filtering before the more
// expensive recognition passes and for "find visually similar" lookups.
package colorprofile

import (
	"image"

	"github.com/lucasb-eyer/go-colorful"
	xdraw "golang.org/x/image/draw"
)

// Category is one of the fixed palette colors a region can classify to.
type Category string

const (
	Red     Category = "red"
	Orange  Category = "orange"
	Yellow  Category = "yellow"
	Green   Category = "green"
	Cyan    Category = "cyan"
	Blue    Category = "blue"
	Purple  Category = "purple"
	Magenta Category = "magenta"
	Gray    Category = "gray"
	White   Category = "white"
	Black   Category = "black"
)

// NumFields is the number of regions in a profile.
const NumFields = 7

// Profile is the categorical color signature of an image: five spatial
// regions, a border ring, and the dominant category over all pixels.
type Profile struct {
	TopLeft     Category `json:"topLeft"`
	TopRight    Category `json:"topRight"`
	BottomLeft  Category `json:"bottomLeft"`
	BottomRight Category `json:"bottomRight"`
	Center      Category `json:"center"`
	Border      Category `json:"border"`
	Dominant    Category `json:"dominant"`
}

// fields returns the profile's categories in a fixed order.
func (p Profile) fields() [NumFields]Category {
	return [NumFields]Category{
		p.TopLeft, p.TopRight, p.BottomLeft, p.BottomRight,
		p.Center, p.Border, p.Dominant,
	}
}

// Compare returns the fraction of the seven fields that match exactly.
// Identical profiles compare to 1.0, fully distinct profiles to 0.0, and
// partial agreement is linear in the number of matching fields.
func Compare(a, b Profile) float64 {
	af, bf := a.fields(), b.fields()
	matches := 0
	for i := range af {
		if af[i] == bf[i] {
			matches++
		}
	}
	return float64(matches) / NumFields
}

// Distance is the complement of Compare: 0.0 for identical profiles, 1.0
// for fully distinct ones.
func Distance(a, b Profile) float64 {
	return 1 - Compare(a, b)
}

const (
	// maxSampleDim bounds the downsampled working copy; classification is
	// categorical so fine detail does not change the outcome.
	maxSampleDim = 96

	lowSaturation = 0.15
	darkValue     = 0.20
	brightValue   = 0.80

	// borderFrac is the thickness of the border ring relative to the
	// smaller image dimension.
	borderFrac = 0.10
)

// Classify maps a single color to its palette category using HSV hue bands.
// Low-saturation colors are classified by value into black/gray/white.
func Classify(c colorful.Color) Category {
	h, s, v := c.Hsv()
	if s < lowSaturation {
		switch {
		case v < darkValue:
			return Black
		case v > brightValue:
			return White
		default:
			return Gray
		}
	}
	if v < darkValue {
		return Black
	}
	switch {
	case h < 30 || h >= 330:
		return Red
	case h < 60:
		return Orange
	case h < 90:
		return Yellow
	case h < 150:
		return Green
	case h < 190:
		return Cyan
	case h < 250:
		return Blue
	case h < 290:
		return Purple
	default:
		return Magenta
	}
}

// Extract computes the color profile of an image. The image is downsampled
// first so profile extraction stays cheap for large screenshots.
func Extract(img image.Image) Profile {
	small := downsample(img)
	b := small.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return Profile{
			TopLeft: Black, TopRight: Black, BottomLeft: Black,
			BottomRight: Black, Center: Black, Border: Black, Dominant: Black,
		}
	}

	halfW, halfH := w/2, h/2
	thirdW, thirdH := w/3, h/3

	border := int(float64(min(w, h)) * borderFrac)
	if border < 1 {
		border = 1
	}

	return Profile{
		TopLeft:     classifyRegion(small, image.Rect(0, 0, halfW, halfH)),
		TopRight:    classifyRegion(small, image.Rect(halfW, 0, w, halfH)),
		BottomLeft:  classifyRegion(small, image.Rect(0, halfH, halfW, h)),
		BottomRight: classifyRegion(small, image.Rect(halfW, halfH, w, h)),
		Center:      classifyRegion(small, image.Rect(thirdW, thirdH, w-thirdW, h-thirdH)),
		Border:      classifyBorder(small, border),
		Dominant:    dominantCategory(small),
	}
}

// downsample scales the image down to at most maxSampleDim on its longer
// side, returning an NRGBA copy for cheap pixel access.
func downsample(img image.Image) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSampleDim && h <= maxSampleDim {
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
		return dst
	}
	scale := float64(maxSampleDim) / float64(max(w, h))
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// classifyRegion classifies the average color of a rectangular region.
func classifyRegion(img *image.NRGBA, r image.Rectangle) Category {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return Black
	}
	var sumR, sumG, sumB, n uint64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := img.Pix[img.PixOffset(r.Min.X, y):img.PixOffset(r.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			sumR += uint64(row[i])
			sumG += uint64(row[i+1])
			sumB += uint64(row[i+2])
			n++
		}
	}
	if n == 0 {
		return Black
	}
	avg := colorful.Color{
		R: float64(sumR/n) / 255.0,
		G: float64(sumG/n) / 255.0,
		B: float64(sumB/n) / 255.0,
	}
	return Classify(avg)
}

// classifyBorder classifies the average color of the outer ring of the
// given thickness.
func classifyBorder(img *image.NRGBA, thickness int) Category {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if thickness*2 >= w || thickness*2 >= h {
		return classifyRegion(img, b)
	}
	var sumR, sumG, sumB, n uint64
	accum := func(r image.Rectangle) {
		r = r.Intersect(b)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				off := img.PixOffset(x, y)
				sumR += uint64(img.Pix[off])
				sumG += uint64(img.Pix[off+1])
				sumB += uint64(img.Pix[off+2])
				n++
			}
		}
	}
	accum(image.Rect(0, 0, w, thickness))                     // top
	accum(image.Rect(0, h-thickness, w, h))                   // bottom
	accum(image.Rect(0, thickness, thickness, h-thickness))   // left
	accum(image.Rect(w-thickness, thickness, w, h-thickness)) // right
	if n == 0 {
		return Black
	}
	avg := colorful.Color{
		R: float64(sumR/n) / 255.0,
		G: float64(sumG/n) / 255.0,
		B: float64(sumB/n) / 255.0,
	}
	return Classify(avg)
}

// dominantCategory classifies every pixel and returns the most frequent
// category, breaking ties deterministically by first occurrence.
func dominantCategory(img *image.NRGBA) Category {
	counts := make(map[Category]int)
	order := make([]Category, 0, 8)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			off := img.PixOffset(x, y)
			c := colorful.Color{
				R: float64(img.Pix[off]) / 255.0,
				G: float64(img.Pix[off+1]) / 255.0,
				B: float64(img.Pix[off+2]) / 255.0,
			}
			cat := Classify(c)
			if counts[cat] == 0 {
				order = append(order, cat)
			}
			counts[cat]++
		}
	}
	best := Black
	bestCount := -1
	for _, cat := range order {
		if counts[cat] > bestCount {
			best = cat
			bestCount = counts[cat]
		}
	}
	return best
}

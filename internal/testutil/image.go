package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Border colors the game uses per rarity tier.
var (
	BorderCommon    = color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	BorderUncommon  = color.NRGBA{R: 40, G: 180, B: 60, A: 255}
	BorderRare      = color.NRGBA{R: 50, G: 90, B: 220, A: 255}
	BorderEpic      = color.NRGBA{R: 160, G: 60, B: 220, A: 255}
	BorderLegendary = color.NRGBA{R: 235, G: 140, B: 20, A: 255}
)

// CellConfig describes a synthetic inventory cell image.
type CellConfig struct {
	Label       string      // text rendered inside the cell, empty for blank cells
	Width       int         // cell width in pixels
	Height      int         // cell height in pixels
	Background  color.Color // fill color
	Border      color.Color // border ring color, nil for no border
	BorderWidth int         // ring thickness in pixels
}

// DefaultCellConfig returns a plausible cell: dark background, gray border.
func DefaultCellConfig() CellConfig {
	return CellConfig{
		Label:       "Garlic",
		Width:       128,
		Height:      128,
		Background:  color.NRGBA{R: 30, G: 30, B: 34, A: 255},
		Border:      BorderCommon,
		BorderWidth: 6,
	}
}

// GenerateCell renders a synthetic inventory cell. The label is drawn with a
// fixed-width bitmap font roughly centered in the cell.
func GenerateCell(cfg CellConfig) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)

	if cfg.Border != nil && cfg.BorderWidth > 0 {
		drawBorder(img, cfg.Border, cfg.BorderWidth)
	}

	if cfg.Label != "" {
		face := basicfont.Face7x13
		textWidth := len(cfg.Label) * face.Advance
		x := (cfg.Width - textWidth) / 2
		if x < cfg.BorderWidth+2 {
			x = cfg.BorderWidth + 2
		}
		drawer := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.White),
			Face: face,
			Dot:  fixed.P(x, cfg.Height/2),
		}
		drawer.DrawString(cfg.Label)
	}

	return img
}

// GenerateBlankCell renders an empty dark cell with no border.
func GenerateBlankCell(width, height int) *image.NRGBA {
	return GenerateCell(CellConfig{
		Width:      width,
		Height:     height,
		Background: color.NRGBA{R: 16, G: 16, B: 18, A: 255},
	})
}

// SavePNG writes an image to a PNG file.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return png.Encode(f, img)
}

func drawBorder(img *image.NRGBA, c color.Color, width int) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			nearEdge := x < b.Min.X+width || x >= b.Max.X-width ||
				y < b.Min.Y+width || y >= b.Max.Y-width
			if nearEdge {
				img.Set(x, y, c)
			}
		}
	}
}

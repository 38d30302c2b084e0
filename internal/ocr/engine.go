// Package ocr owns the single long-lived text-recognition engine and the
// manager that wraps every recognition call with a deadline and bounded
// retries. The engine is expensive to create, so it is built lazily on the
// first request and reused until explicitly terminated.
package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// Result is the output of one recognition call. Confidence is the engine's
// mean word confidence on its native 0-100 scale.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Engine abstracts the underlying recognition backend so the manager can be
// exercised in tests without Tesseract installed.
type Engine interface {
	// Recognize runs text recognition over the image.
	Recognize(img image.Image) (Result, error)
	// SetAllowlist narrows recognition to the given characters; an empty
	// string restores the default character set.
	SetAllowlist(chars string) error
	// Close releases the engine's resources.
	Close() error
}

// EngineFactory creates a new engine instance. The manager calls it at most
// once per active lifetime.
type EngineFactory func() (Engine, error)

// TesseractConfig configures the gosseract-backed engine.
type TesseractConfig struct {
	Language string // Tesseract language code
	DataPath string // optional tessdata directory override
}

// DefaultTesseractConfig returns the default engine configuration.
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{Language: "eng"}
}

// tesseractEngine implements Engine on top of gosseract.
type tesseractEngine struct {
	client *gosseract.Client
}

// NewTesseractEngine creates a Tesseract-backed recognition engine.
func NewTesseractEngine(cfg TesseractConfig) (Engine, error) {
	client := gosseract.NewClient()
	if cfg.Language != "" {
		if err := client.SetLanguage(cfg.Language); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set language: %w", err)
		}
	}
	if cfg.DataPath != "" {
		if err := client.SetTessdataPrefix(cfg.DataPath); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	return &tesseractEngine{client: client}, nil
}

// TesseractFactory returns an EngineFactory for the given configuration.
func TesseractFactory(cfg TesseractConfig) EngineFactory {
	return func() (Engine, error) { return NewTesseractEngine(cfg) }
}

func (e *tesseractEngine) Recognize(img image.Image) (Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{}, fmt.Errorf("encode image: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize: %w", err)
	}

	// Mean word confidence; box extraction failing is not fatal, the text
	// is still usable.
	confidence := 0.0
	if boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil && len(boxes) > 0 {
		sum := 0.0
		for _, box := range boxes {
			sum += box.Confidence
		}
		confidence = sum / float64(len(boxes))
	}
	return Result{Text: text, Confidence: confidence}, nil
}

func (e *tesseractEngine) SetAllowlist(chars string) error {
	return e.client.SetWhitelist(chars)
}

func (e *tesseractEngine) Close() error {
	return e.client.Close()
}

package ocr

import (
	"context"
	"image"
	"log/slog"
	"strconv"
	"strings"
)

// stackAllowlist narrows the recognizer to digits and multiplier glyphs
// while reading stack counts.
const stackAllowlist = "0123456789xX×"

// MaxStackCount is the largest stack size the game displays; anything above
// it is a misread.
const MaxStackCount = 30

// StackCount is the parsed result of reading an item's stack label. Count
// is nil when the label was unreadable or out of range.
type StackCount struct {
	Count      *int    `json:"count"`
	Confidence float64 `json:"confidence"`
	RawText    string  `json:"rawText,omitempty"`
}

// DetectStackCount reads a stack-count label ("x3", "×3", or a bare
// integer) from the image. The recognizer's character set is narrowed to
// digits and multiplier glyphs for the read and restored afterwards, even
// when recognition fails. Counts outside (0, MaxStackCount] are rejected
// with a nil count and zero confidence.
func (m *Manager) DetectStackCount(ctx context.Context, img image.Image, opts Options) (StackCount, error) {
	eng, err := m.acquire()
	if err != nil {
		return StackCount{}, err
	}

	if err := eng.SetAllowlist(stackAllowlist); err != nil {
		return StackCount{}, err
	}
	defer func() {
		if err := eng.SetAllowlist(""); err != nil {
			slog.Warn("failed to restore recognizer character set", "error", err)
		}
	}()

	res, err := m.recognize(ctx, img, opts)
	if err != nil {
		return StackCount{}, err
	}

	count, ok := parseStackCount(res.Text)
	if !ok {
		return StackCount{RawText: res.Text}, nil
	}
	return StackCount{
		Count:      &count,
		Confidence: res.Confidence / 100.0,
		RawText:    res.Text,
	}, nil
}

// parseStackCount interprets recognizer output as a stack count.
func parseStackCount(text string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimPrefix(s, "×")
	s = strings.TrimPrefix(s, "x")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	if n <= 0 || n > MaxStackCount {
		return 0, false
	}
	return n, true
}

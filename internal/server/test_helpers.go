package server

import (
	"context"
	"image"

	"github.com/lootlens/lootlens/internal/catalog"
	"github.com/lootlens/lootlens/internal/feedback"
	"github.com/lootlens/lootlens/internal/match"
	"github.com/lootlens/lootlens/internal/pipeline"
	"github.com/lootlens/lootlens/internal/strategy"
)

// fakeDetector is a scriptable detectorInterface for handler tests.
type fakeDetector struct {
	detection *pipeline.Detection
	err       error

	calls       int
	lastKinds   []catalog.Kind
	corrections []feedback.Correction
}

func (f *fakeDetector) Detect(_ context.Context, _ image.Image, kinds ...catalog.Kind) (*pipeline.Detection, error) {
	f.calls++
	f.lastKinds = kinds
	if f.err != nil {
		return nil, f.err
	}
	if f.detection != nil {
		return f.detection, nil
	}
	return &pipeline.Detection{
		Fingerprint: "deadbeefdeadbeef",
		Results: []match.Result{
			{Confidence: 0.91, Kind: catalog.KindItem, RawText: "Garlic"},
		},
	}, nil
}

func (f *fakeDetector) RecordCorrection(detectedID, actualID string, confidence float64, imageHash string) {
	f.corrections = append(f.corrections, feedback.Correction{
		Detected:   detectedID,
		Actual:     actualID,
		Confidence: confidence,
		ImageHash:  imageHash,
	})
}

func (f *fakeDetector) CacheStats() (uint64, uint64, int) { return 0, 0, 0 }

func (f *fakeDetector) Close() {}

// newTestServer builds a server around a fake detector with a real strategy
// engine and ledger.
func newTestServer(det *fakeDetector) *Server {
	return &Server{
		detector:    det,
		strategies:  strategy.NewEngine(),
		ledger:      feedback.NewLedger(),
		corsOrigin:  "*",
		maxUploadMB: 10,
		timeoutSec:  5,
	}
}

// Package feedback records user-supplied detection corrections and derives a
// score penalty that discourages repeating past misdetections. No model is
// retrained; the ledger simply counts how often a detected/actual pair was
// corrected and penalizes candidates proportionally.
package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidFormat is returned when imported correction data cannot be
// decoded. Prior ledger state is left untouched on import failure.
var ErrInvalidFormat = errors.New("invalid correction data format")

const (
	// minOccurrences is the correction count a pair must exceed before any
	// penalty applies. One or two corrections contribute nothing.
	minOccurrences = 2
	// penaltyPerCount is the penalty added per recorded correction once the
	// occurrence threshold is met. The magnitude is intentionally uncapped.
	penaltyPerCount = 0.03
)

// Correction is one user-supplied detected-vs-actual correction. The JSON
// shape is the stable export format; field names must not change.
type Correction struct {
	Detected   string    `json:"detected"`
	Actual     string    `json:"actual"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	ImageHash  string    `json:"imageHash"`
}

// pairKey indexes the penalty counts by (actual, detected) entity ids.
type pairKey struct {
	actual   string
	detected string
}

// Ledger is the append-only correction store plus its derived penalty index.
type Ledger struct {
	mu      sync.RWMutex
	records []Correction
	counts  map[pairKey]int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{counts: make(map[pairKey]int)}
}

// RecordCorrection appends a correction and bumps the penalty index for the
// (actual, detected) pair.
func (l *Ledger) RecordCorrection(detectedID, actualID string, confidence float64, imageHash string) {
	rec := Correction{
		Detected:   detectedID,
		Actual:     actualID,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
		ImageHash:  imageHash,
	}
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.counts[pairKey{actual: actualID, detected: detectedID}]++
	l.mu.Unlock()
}

// Penalty returns the score penalty (always <= 0) for detecting detectedID
// when the candidate under consideration is templateID. Pairs corrected no
// more than the occurrence threshold contribute nothing.
func (l *Ledger) Penalty(detectedID, templateID string) float64 {
	l.mu.RLock()
	count := l.counts[pairKey{actual: templateID, detected: detectedID}]
	l.mu.RUnlock()
	if count <= minOccurrences {
		return 0
	}
	return -penaltyPerCount * float64(count)
}

// TotalPenalty sums the penalties of every (actual, detected) pair whose
// detected side is detectedID. This is what the pipeline applies when
// scoring a candidate: entities that were repeatedly corrected away from
// accumulate an increasingly negative adjustment.
func (l *Ledger) TotalPenalty(detectedID string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0.0
	for key, count := range l.counts {
		if key.detected != detectedID || count <= minOccurrences {
			continue
		}
		total -= penaltyPerCount * float64(count)
	}
	return total
}

// Len returns the number of recorded corrections.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns a copy of the full correction list in insertion order.
func (l *Ledger) Records() []Correction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Correction, len(l.records))
	copy(out, l.records)
	return out
}

// Export serializes the full correction list as a JSON array.
func (l *Ledger) Export() ([]byte, error) {
	l.mu.RLock()
	records := l.records
	if records == nil {
		records = []Correction{}
	}
	data, err := json.Marshal(records)
	l.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("export corrections: %w", err)
	}
	return data, nil
}

// Import replaces the ledger contents with the given JSON blob and rebuilds
// the penalty index from scratch. Malformed input fails with
// ErrInvalidFormat and leaves existing state unchanged.
func (l *Ledger) Import(data []byte) error {
	var records []Correction
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	counts := make(map[pairKey]int, len(records))
	for _, rec := range records {
		counts[pairKey{actual: rec.Actual, detected: rec.Detected}]++
	}
	l.mu.Lock()
	l.records = records
	l.counts = counts
	l.mu.Unlock()
	return nil
}

// Reset discards all corrections and penalties.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.records = nil
	l.counts = make(map[pairKey]int)
	l.mu.Unlock()
}

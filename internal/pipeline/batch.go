package pipeline

import (
	"context"
	"image"
	"runtime"
	"sync"

	"github.com/lootlens/lootlens/internal/catalog"
)

// BatchConfig controls parallel batch detection.
type BatchConfig struct {
	MaxWorkers int                   // 0 = runtime.NumCPU()
	Kinds      []catalog.Kind        // empty = all kinds
	Progress   func(done, total int) // optional, called after each image
}

// BatchOutcome is the result of one image in a batch.
type BatchOutcome struct {
	Index     int
	Detection *Detection
	Err       error
}

// batchJob is one queued image.
type batchJob struct {
	index int
	img   image.Image
}

// DetectBatch runs Detect over each image using a bounded worker pool.
// Outcomes come back in input order; per-image failures are recorded, not
// fatal. The single OCR worker still serializes the recognition calls, so
// the pool mainly overlaps color profiling, matching, and cache work.
func (d *Detector) DetectBatch(ctx context.Context, images []image.Image, cfg BatchConfig) []BatchOutcome {
	outcomes := make([]BatchOutcome, len(images))
	if len(images) == 0 {
		return outcomes
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(images) {
		workers = len(images)
	}

	jobs := make(chan batchJob)
	var done int
	var progressMu sync.Mutex
	report := func() {
		if cfg.Progress == nil {
			return
		}
		progressMu.Lock()
		done++
		cfg.Progress(done, len(images))
		progressMu.Unlock()
	}

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				det, err := d.Detect(ctx, job.img, cfg.Kinds...)
				outcomes[job.index] = BatchOutcome{Index: job.index, Detection: det, Err: err}
				report()
			}
		}()
	}

	for i, img := range images {
		select {
		case jobs <- batchJob{index: i, img: img}:
		case <-ctx.Done():
			outcomes[i] = BatchOutcome{Index: i, Err: ctx.Err()}
			report()
		}
	}
	close(jobs)
	wg.Wait()
	return outcomes
}

package ocr

import (
	"context"
	"image"
	"sync"
)

// BatchGroupSize is how many images are in flight at once during batch
// extraction. Groups run sequentially relative to each other to bound peak
// memory while the single worker serializes the actual recognition calls.
const BatchGroupSize = 3

// BatchResult pairs one input image's index with its extraction outcome.
type BatchResult struct {
	Index int
	Text  string
	Err   error
}

// ExtractTextBatch extracts text from a sequence of images in fixed-size
// groups of BatchGroupSize. Results are returned in input order; per-image
// failures are recorded, not fatal. The context cancels between groups.
func (m *Manager) ExtractTextBatch(ctx context.Context, images []image.Image, opts Options) []BatchResult {
	results := make([]BatchResult, len(images))
	for start := 0; start < len(images); start += BatchGroupSize {
		if err := ctx.Err(); err != nil {
			for i := start; i < len(images); i++ {
				results[i] = BatchResult{Index: i, Err: err}
			}
			break
		}
		end := min(start+BatchGroupSize, len(images))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				text, err := m.ExtractText(ctx, images[idx], opts)
				results[idx] = BatchResult{Index: idx, Text: text, Err: err}
			}(i)
		}
		wg.Wait()
	}
	return results
}

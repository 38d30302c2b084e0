package ocr

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine is a scriptable Engine for exercising the manager without
// Tesseract.
type fakeEngine struct {
	mu          sync.Mutex
	recognize   func(image.Image) (Result, error)
	allowlists  []string
	closeErr    error
	closedCount int
}

func (f *fakeEngine) Recognize(img image.Image) (Result, error) {
	f.mu.Lock()
	fn := f.recognize
	f.mu.Unlock()
	if fn == nil {
		return Result{Text: "ok", Confidence: 90}, nil
	}
	return fn(img)
}

func (f *fakeEngine) SetAllowlist(chars string) error {
	f.mu.Lock()
	f.allowlists = append(f.allowlists, chars)
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	f.closedCount++
	f.mu.Unlock()
	return f.closeErr
}

func newFakeManager(eng *fakeEngine) (*Manager, *int) {
	creations := 0
	m := NewManager(func() (Engine, error) {
		creations++
		return eng, nil
	})
	return m, &creations
}

func testImage() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 4, 4))
}

func TestManager_LazySingleton(t *testing.T) {
	eng := &fakeEngine{}
	m, creations := newFakeManager(eng)

	assert.Equal(t, StateUninitialized, m.State())
	assert.False(t, m.IsActive())

	text, err := m.ExtractText(context.Background(), testImage(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 1, *creations)
	assert.Equal(t, StateActive, m.State())

	// second call reuses the same engine
	_, err = m.ExtractText(context.Background(), testImage(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, *creations)

	created, calls := m.Stats()
	assert.Equal(t, uint64(1), created)
	assert.Equal(t, uint64(2), calls)
}

func TestManager_Timeout(t *testing.T) {
	eng := &fakeEngine{recognize: func(image.Image) (Result, error) {
		select {} // never resolves
	}}
	m, _ := newFakeManager(eng)

	start := time.Now()
	_, err := m.ExtractText(context.Background(), testImage(), Options{Timeout: 100 * time.Millisecond})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimedOut)
	assert.Less(t, elapsed, time.Second, "timeout must not wait for the engine")

	// the worker stays reusable after a timeout
	assert.Equal(t, StateActive, m.State())
	eng.mu.Lock()
	eng.recognize = nil
	eng.mu.Unlock()
	text, err := m.ExtractText(context.Background(), testImage(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestManager_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	eng := &fakeEngine{}
	eng.recognize = func(image.Image) (Result, error) {
		attempts++
		if attempts < 3 {
			return Result{}, errors.New("transient")
		}
		return Result{Text: "recovered", Confidence: 70}, nil
	}
	m, creations := newFakeManager(eng)

	text, err := m.ExtractText(context.Background(), testImage(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 3, attempts)
	// all retries ran against the same worker
	assert.Equal(t, 1, *creations)
}

func TestManager_RetriesExhausted(t *testing.T) {
	attempts := 0
	eng := &fakeEngine{}
	eng.recognize = func(image.Image) (Result, error) {
		attempts++
		return Result{}, errors.New("broken")
	}
	m, _ := newFakeManager(eng)

	_, err := m.ExtractText(context.Background(), testImage(), Options{MaxRetries: 2})
	require.ErrorIs(t, err, ErrRecognitionFailed)
	assert.Equal(t, 3, attempts) // initial try + 2 retries
}

func TestManager_ContextCancelled(t *testing.T) {
	eng := &fakeEngine{recognize: func(image.Image) (Result, error) {
		select {}
	}}
	m, _ := newFakeManager(eng)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := m.ExtractText(ctx, testImage(), Options{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimedOut)
}

func TestManager_FactoryError(t *testing.T) {
	m := NewManager(func() (Engine, error) {
		return nil, errors.New("no tessdata")
	})
	_, err := m.ExtractText(context.Background(), testImage(), Options{})
	require.Error(t, err)
	assert.Equal(t, StateUninitialized, m.State())
}

func TestManager_Terminate(t *testing.T) {
	eng := &fakeEngine{}
	m, creations := newFakeManager(eng)

	// safe with no engine
	m.Terminate()
	assert.Equal(t, StateUninitialized, m.State())

	_, err := m.ExtractText(context.Background(), testImage(), Options{})
	require.NoError(t, err)

	m.Terminate()
	assert.Equal(t, StateTerminated, m.State())
	assert.False(t, m.IsActive())
	assert.Equal(t, 1, eng.closedCount)

	// idempotent
	m.Terminate()
	assert.Equal(t, 1, eng.closedCount)

	// a later call starts a fresh lifetime
	_, err = m.ExtractText(context.Background(), testImage(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, *creations)
	assert.Equal(t, StateActive, m.State())
}

func TestManager_TerminateSwallowsCloseError(t *testing.T) {
	eng := &fakeEngine{closeErr: errors.New("close failed")}
	m, _ := newFakeManager(eng)
	_, err := m.ExtractText(context.Background(), testImage(), Options{})
	require.NoError(t, err)

	// must not panic or surface the error
	m.Terminate()
	assert.Equal(t, StateTerminated, m.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "terminating", StateTerminating.String())
	assert.Equal(t, "terminated", StateTerminated.String())
}

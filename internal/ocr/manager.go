package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"
)

// Typed errors for the recognition call wrapper.
var (
	// ErrTimedOut means the recognition call exceeded its deadline. The
	// worker itself stays usable.
	ErrTimedOut = errors.New("recognition timed out")
	// ErrRecognitionFailed means the engine failed after all retries.
	ErrRecognitionFailed = errors.New("recognition failed")
)

// State describes the worker lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	// DefaultTimeout bounds one ExtractText call end to end, retries
	// included.
	DefaultTimeout = 60 * time.Second
	// DefaultMaxRetries is how many additional attempts follow a failed
	// recognition before the last error surfaces.
	DefaultMaxRetries = 3
)

// Options configure a single extraction call. The zero value uses defaults;
// pass a negative MaxRetries to disable retries entirely.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	OnProgress func(stage string)
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	return o
}

// Manager owns the single recognition engine. The engine is created lazily
// on the first call and reused by every subsequent one; the manager adds no
// queueing of its own, so N concurrent callers get N recognitions
// serialized by the engine itself.
type Manager struct {
	factory EngineFactory

	mu     sync.Mutex // guards engine and state transitions only
	engine Engine
	state  State

	created uint64 // engines created, for tests and stats
	calls   uint64 // recognition calls issued
}

// NewManager creates a manager that builds its engine from factory on first
// use.
func NewManager(factory EngineFactory) *Manager {
	return &Manager{factory: factory}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsActive reports whether a live engine exists.
func (m *Manager) IsActive() bool {
	return m.State() == StateActive
}

// Stats returns how many engines were created and how many recognition
// calls were issued over the manager's lifetime.
func (m *Manager) Stats() (created, calls uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created, m.calls
}

// acquire returns the live engine, creating it if this is the first call of
// the current lifetime.
func (m *Manager) acquire() (Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateTerminating {
		return nil, errors.New("worker is terminating")
	}
	if m.engine == nil {
		eng, err := m.factory()
		if err != nil {
			return nil, fmt.Errorf("create recognition engine: %w", err)
		}
		m.engine = eng
		m.state = StateActive
		m.created++
		slog.Debug("recognition engine created", "total_created", m.created)
	}
	return m.engine, nil
}

// attempt represents the outcome of a single engine call raced against the
// deadline.
type attempt struct {
	result Result
	err    error
}

// ExtractText recognizes text in the image. The call is raced against its
// timeout; on timeout the pending engine call is abandoned, not cancelled,
// because the engine cannot be preempted mid-operation. The worker remains
// reusable either way. Engine failures are retried with the same worker up
// to MaxRetries additional times before the last error surfaces.
func (m *Manager) ExtractText(ctx context.Context, img image.Image, opts Options) (string, error) {
	res, err := m.recognize(ctx, img, opts)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Recognize is ExtractText plus the engine's confidence score.
func (m *Manager) Recognize(ctx context.Context, img image.Image, opts Options) (Result, error) {
	return m.recognize(ctx, img, opts)
}

func (m *Manager) recognize(ctx context.Context, img image.Image, opts Options) (Result, error) {
	opts = opts.withDefaults()
	eng, err := m.acquire()
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var lastErr error
	for try := 0; try <= opts.MaxRetries; try++ {
		if opts.OnProgress != nil {
			opts.OnProgress(fmt.Sprintf("recognizing (attempt %d)", try+1))
		}
		m.mu.Lock()
		m.calls++
		m.mu.Unlock()

		done := make(chan attempt, 1)
		go func() {
			res, err := eng.Recognize(img)
			done <- attempt{result: res, err: err}
		}()

		select {
		case a := <-done:
			if a.err == nil {
				return a.result, nil
			}
			lastErr = a.err
			slog.Warn("recognition attempt failed", "attempt", try+1, "error", a.err)
		case <-ctx.Done():
			// The engine call keeps running in the background; the next
			// call's own deadline bounds any further damage.
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Result{}, fmt.Errorf("%w after %v", ErrTimedOut, opts.Timeout)
			}
			return Result{}, ctx.Err()
		}
	}
	return Result{}, fmt.Errorf("%w: %v", ErrRecognitionFailed, lastErr)
}

// Terminate releases the engine. Termination is best-effort: close failures
// are logged and swallowed so cleanup can never block a caller. Safe to
// call in any state, including when no engine exists; a later recognition
// request starts a fresh lifetime.
func (m *Manager) Terminate() {
	m.mu.Lock()
	eng := m.engine
	if eng == nil {
		if m.state == StateActive {
			m.state = StateTerminated
		}
		m.mu.Unlock()
		return
	}
	m.engine = nil
	m.state = StateTerminating
	m.mu.Unlock()

	if err := eng.Close(); err != nil {
		slog.Warn("recognition engine close failed", "error", err)
	}

	m.mu.Lock()
	m.state = StateTerminated
	m.mu.Unlock()
}

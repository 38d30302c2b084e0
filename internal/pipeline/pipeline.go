// Package pipeline wires the recognition components into one detector: OCR
// worker, color profiling, fuzzy matching, template validation, caching,
// and the correction ledger. A Detector owns all the mutable state the
// pipeline needs, so nothing hides in package-level singletons.
package pipeline

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lootlens/lootlens/internal/cache"
	"github.com/lootlens/lootlens/internal/catalog"
	"github.com/lootlens/lootlens/internal/feedback"
	"github.com/lootlens/lootlens/internal/match"
	"github.com/lootlens/lootlens/internal/ocr"
	"github.com/lootlens/lootlens/internal/strategy"
	"github.com/lootlens/lootlens/internal/templatematch"
)

// Config holds configuration for the detection pipeline.
type Config struct {
	CatalogPath       string
	StrategyName      string
	CacheTTL          time.Duration
	CleanupInterval   time.Duration
	TemplateCacheSize int
	OCR               ocr.TesseractConfig
	Timeout           time.Duration
	MaxRetries        int
}

// DefaultConfig returns a default pipeline config.
func DefaultConfig() Config {
	return Config{
		StrategyName:      strategy.DefaultPreset,
		CacheTTL:          cache.DefaultTTL,
		CleanupInterval:   cache.DefaultCleanupInterval,
		TemplateCacheSize: cache.MaxTemplateEntries,
		OCR:               ocr.DefaultTesseractConfig(),
		Timeout:           ocr.DefaultTimeout,
		MaxRetries:        ocr.DefaultMaxRetries,
	}
}

// Builder constructs a Detector with fluent configuration.
type Builder struct {
	cfg     Config
	cat     *catalog.Catalog
	factory ocr.EngineFactory
}

// NewBuilder creates a new detector builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithCatalog sets an already-loaded catalog, taking precedence over
// CatalogPath.
func (b *Builder) WithCatalog(c *catalog.Catalog) *Builder {
	b.cat = c
	return b
}

// WithCatalogPath sets the catalog JSON file to load at build time.
func (b *Builder) WithCatalogPath(path string) *Builder {
	if path != "" {
		b.cfg.CatalogPath = path
	}
	return b
}

// WithStrategy selects the initial strategy preset.
func (b *Builder) WithStrategy(name string) *Builder {
	if name != "" {
		b.cfg.StrategyName = name
	}
	return b
}

// WithEngineFactory overrides how the recognition engine is created. Tests
// use this to supply fakes.
func (b *Builder) WithEngineFactory(f ocr.EngineFactory) *Builder {
	b.factory = f
	return b
}

// WithCacheTTL sets the detection-cache TTL.
func (b *Builder) WithCacheTTL(ttl time.Duration) *Builder {
	if ttl > 0 {
		b.cfg.CacheTTL = ttl
	}
	return b
}

// WithCleanupInterval sets the background sweep interval.
func (b *Builder) WithCleanupInterval(interval time.Duration) *Builder {
	if interval > 0 {
		b.cfg.CleanupInterval = interval
	}
	return b
}

// WithTimeout sets the per-call recognition deadline.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	if timeout > 0 {
		b.cfg.Timeout = timeout
	}
	return b
}

// WithMaxRetries sets how many extra recognition attempts follow a failure.
func (b *Builder) WithMaxRetries(n int) *Builder {
	b.cfg.MaxRetries = n
	return b
}

// WithOCRConfig sets the Tesseract engine configuration.
func (b *Builder) WithOCRConfig(cfg ocr.TesseractConfig) *Builder {
	b.cfg.OCR = cfg
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Detector runs the full recognition pipeline. It owns the detection cache,
// the resized-template cache, the single OCR worker, the correction ledger,
// and the active strategy.
type Detector struct {
	cfg        Config
	Catalog    *catalog.Catalog
	Worker     *ocr.Manager
	Matcher    *match.Matcher
	Validator  *templatematch.Validator
	Strategies *strategy.Engine
	Ledger     *feedback.Ledger

	detCache  *cache.DetectionCache
	tmplCache *cache.TemplateCache
}

// Build initializes the detector and starts the periodic cache sweep.
func (b *Builder) Build() (*Detector, error) {
	cat := b.cat
	if cat == nil {
		if b.cfg.CatalogPath == "" {
			return nil, errors.New("catalog is required: set a catalog or a catalog path")
		}
		loaded, err := catalog.LoadFile(b.cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		cat = loaded
	}

	strategies := strategy.NewEngine()
	if err := strategies.SetActiveName(b.cfg.StrategyName); err != nil {
		return nil, err
	}

	factory := b.factory
	if factory == nil {
		factory = ocr.TesseractFactory(b.cfg.OCR)
	}

	ledger := feedback.NewLedger()
	tmplCache := cache.NewTemplateCache(b.cfg.TemplateCacheSize)
	detCache := cache.NewDetectionCache(b.cfg.CacheTTL)
	detCache.StartPeriodicCleanup(b.cfg.CleanupInterval)

	validator := templatematch.NewValidator(tmplCache)
	registerTemplates(validator, cat, filepath.Dir(b.cfg.CatalogPath))

	// The ledger penalty is applied by the detect pass, gated on the active
	// strategy's feedback loop, so the matcher stays penalty-free here.
	return &Detector{
		cfg:        b.cfg,
		Catalog:    cat,
		Worker:     ocr.NewManager(factory),
		Matcher:    match.New(cat, nil),
		Validator:  validator,
		Strategies: strategies,
		Ledger:     ledger,
		detCache:   detCache,
		tmplCache:  tmplCache,
	}, nil
}

// registerTemplates loads each entity's reference template image into the
// validator. Relative template paths resolve against baseDir, normally the
// catalog file's directory. Missing or unreadable templates are skipped;
// those entities fall back to text and color evidence alone.
func registerTemplates(v *templatematch.Validator, cat *catalog.Catalog, baseDir string) {
	for _, kind := range catalog.Kinds() {
		for _, e := range cat.ByKind(kind) {
			if e.Template == "" {
				continue
			}
			path := e.Template
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			img, err := loadTemplateImage(path)
			if err != nil {
				slog.Warn("skipping entity template", "entity", e.ID, "path", path, "error", err)
				continue
			}
			v.Register(e.ID, img)
		}
	}
}

func loadTemplateImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	return img, nil
}

// RecordCorrection feeds a user correction into the ledger.
func (d *Detector) RecordCorrection(detectedID, actualID string, confidence float64, imageHash string) {
	d.Ledger.RecordCorrection(detectedID, actualID, confidence, imageHash)
}

// CacheStats exposes detection-cache counters for the metrics surface.
func (d *Detector) CacheStats() (hits, misses uint64, entries int) {
	hits, misses = d.detCache.Stats()
	return hits, misses, d.detCache.Len()
}

// ResetAll clears both caches, cancels the cleanup sweep, and terminates
// the OCR worker. Idempotent and safe to call in any state.
func (d *Detector) ResetAll() {
	d.detCache.Reset()
	d.tmplCache.Reset()
	d.Worker.Terminate()
}

// Close releases the detector's resources.
func (d *Detector) Close() {
	d.detCache.StopPeriodicCleanup()
	d.Worker.Terminate()
}

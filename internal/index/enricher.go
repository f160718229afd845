package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"codeindex/internal/events"
	"codeindex/internal/store"
	"codeindex/internal/walker"
)

// DefaultScoreTimeout bounds one call to the scoring capability.
const DefaultScoreTimeout = 30 * time.Second

// Scorer is the external capability the enrichment pass calls.
type Scorer interface {
	Score(ctx context.Context, prompt string) (string, error)
}

// EnricherOptions configures an enrichment pass.
type EnricherOptions struct {
	Timeout     time.Duration
	Extensions  map[string]bool
	ExcludeFile string
	PrivateDir  string
	MaxFileSize int64
}

// EnrichStats summarizes a pass.
type EnrichStats struct {
	Total    int
	Enriched int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Enricher scores and summarizes indexed files through a Scorer.
type Enricher struct {
	indexer *Indexer
	store   Store
	scorer  Scorer
	sink    events.Sink
	logger  *slog.Logger
	opts    EnricherOptions

	generation atomic.Uint64
}

// NewEnricher creates an enrichment pass over ix's project.
func NewEnricher(ix *Indexer, s Store, scorer Scorer, sink events.Sink, logger *slog.Logger, opts EnricherOptions) *Enricher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if sink == nil {
		sink = events.Discard
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultScoreTimeout
	}
	if opts.Extensions == nil {
		opts.Extensions = walker.EnrichableExtensions
	}
	return &Enricher{indexer: ix, store: s, scorer: scorer, sink: sink, logger: logger, opts: opts}
}

// Cancel supersedes the running pass; it stops before its next file.
func (e *Enricher) Cancel() {
	e.generation.Add(1)
}

// Run enriches every enrichable file under the project root. A failure on one
// file is logged and the pass moves on. Run returns ctx's error or
// store.ErrSuperseded when it was cut short.
func (e *Enricher) Run(ctx context.Context) (EnrichStats, error) {
	gen := e.generation.Add(1)
	live := func() bool { return ctx.Err() == nil && e.generation.Load() == gen }
	started := time.Now()
	var stats EnrichStats

	excluder := walker.NewExcluder(walker.DefaultExcludes)
	if e.opts.ExcludeFile != "" {
		patterns, err := walker.LoadExcludes(e.opts.ExcludeFile)
		if err != nil {
			e.logger.Warn("load excludes", "path", e.opts.ExcludeFile, "err", err)
		}
		excluder = walker.NewExcluder(patterns)
	}
	files, err := walker.Walk(ctx, e.indexer.Root(), walker.Options{
		Excluder:    excluder,
		Extensions:  e.opts.Extensions,
		PrivateDir:  e.opts.PrivateDir,
		MaxFileSize: e.opts.MaxFileSize,
	})
	if err != nil {
		return stats, fmt.Errorf("walk project: %w", err)
	}
	stats.Total = len(files)
	e.sink.Publish(events.Event{Kind: events.AIEnrichmentStarted, Total: stats.Total})

	for i, path := range files {
		if !live() {
			return stats, e.stopReason(ctx)
		}
		e.sink.Publish(events.Event{Kind: events.AIEnrichmentProgress, Processed: i, Total: stats.Total, CurrentFile: path})
		switch done, err := e.enrichFile(ctx, path, live); {
		case errors.Is(err, store.ErrSuperseded) || !live():
			return stats, e.stopReason(ctx)
		case err != nil:
			stats.Failed++
			e.logger.Warn("enrich file", "path", path, "err", err)
		case done:
			stats.Enriched++
		default:
			stats.Skipped++
		}
		e.sink.Publish(events.Event{Kind: events.AIEnrichmentProgress, Processed: i + 1, Total: stats.Total, CurrentFile: path})
	}

	stats.Duration = time.Since(started)
	e.logger.Info("enrichment complete", "enriched", stats.Enriched, "skipped", stats.Skipped, "failed", stats.Failed, "duration", stats.Duration)
	e.sink.Publish(events.Event{Kind: events.AIEnrichmentCompleted, Count: stats.Enriched, Duration: stats.Duration})
	return stats, nil
}

func (e *Enricher) stopReason(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return store.ErrSuperseded
}

// enrichFile reports whether the scorer produced a result for path. It
// returns false with a nil error when the stored enrichment is current.
func (e *Enricher) enrichFile(ctx context.Context, path string, live func() bool) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	id := ResourceID(path)
	state, err := e.store.ResourceState(ctx, id)
	current := err == nil && state.LastModified == info.ModTime().Unix() && state.ContentHash == ContentHash(raw)
	if current && state.AIEnriched {
		return false, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if !current {
		if _, err := e.indexer.IndexFile(ctx, path, live); err != nil {
			return false, err
		}
	}

	content := string(raw)
	lang := e.indexer.Extractor().Registry().LanguageName(path)
	assessment := AssessQuality(content, lang)
	if err := e.store.UpdateQuality(ctx, id, assessment.Score, assessment.JSON()); err != nil {
		return false, fmt.Errorf("store assessment: %w", err)
	}

	if !live() {
		return false, store.ErrSuperseded
	}
	sctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	resp, err := e.scorer.Score(sctx, BuildPrompt(path, lang, content, assessment))
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("score: %w", err)
	}
	if !live() {
		return false, store.ErrSuperseded
	}
	score, summary := ParseScore(resp)
	if err := e.store.MarkEnriched(ctx, id, float64(score), summary); err != nil {
		return false, fmt.Errorf("store enrichment: %w", err)
	}
	return true, nil
}

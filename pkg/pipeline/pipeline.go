// Package pipeline wires the enumerator, checkpoint store, worker pool,
// and batch writers into one conversion run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"geoetl/internal/worker"
	"geoetl/pkg/batch"
	"geoetl/pkg/checkpoint"
	"geoetl/pkg/config"
	"geoetl/pkg/logger"
	"geoetl/pkg/models"
	"geoetl/pkg/source"
)

// FailedUnit identifies one failed unit in the run summary, so the
// recovery analyzer can target it precisely.
type FailedUnit struct {
	Key    models.UnitKey
	Reason string
}

// Summary is the outcome of one conversion run.
type Summary struct {
	RunID        string
	Enumerated   int
	Attempted    int
	Completed    int
	Failed       int
	SkippedUnits int // claim misses: owned by another worker or already done
	MarksWritten int
	MarksSkipped int
	FailedUnits  []FailedUnit
	Duration     time.Duration
}

// Pipeline owns one conversion run. The checkpoint store is opened before
// the pool exists, so workers can never observe an uninitialized store.
type Pipeline struct {
	cfg   *config.Config
	src   source.Source
	store *checkpoint.Store
	log   logger.Logger
}

// New assembles a pipeline. The store must already be open; it is injected
// rather than created here so the same instance serves the pipeline, the
// recovery analyzer, and tests.
func New(cfg *config.Config, src source.Source, store *checkpoint.Store, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pipeline{cfg: cfg, src: src, store: store, log: log}
}

// Run enumerates units matching the filter and converts them through the
// worker pool. Unit failures are recorded and summarized, never fatal; only
// source unavailability aborts the run.
func (p *Pipeline) Run(ctx context.Context, filter source.Filter) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	log := p.log.WithField("run_id", summary.RunID)

	// claims abandoned by a crashed run become pending again before
	// enumeration, so this run picks them up
	if p.cfg.Pipeline.StaleAfter > 0 {
		released, err := p.store.ReleaseStale(p.cfg.Pipeline.StaleAfter)
		if err != nil {
			return nil, fmt.Errorf("failed to release stale claims: %w", err)
		}
		if len(released) > 0 {
			log.InfoWithFields("recovered stale claims", map[string]interface{}{
				"count": len(released),
			})
		}
	}

	pool := worker.NewPool(
		ctx,
		p.cfg.Pipeline.Workers,
		p.src,
		p.store,
		batch.Options{
			BaseDir:          p.cfg.Output.Directory,
			Capacity:         p.cfg.Pipeline.BatchSize,
			Compress:         p.cfg.Output.Compress,
			CompressionLevel: p.cfg.Output.CompressionLevel,
		},
		p.cfg.Pipeline.UnitTimeout,
		log,
	)
	pool.Start()

	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for result := range pool.Results() {
			if !result.Claimed && result.Err == nil {
				summary.SkippedUnits++
				continue
			}
			summary.Attempted++
			summary.MarksWritten += result.Written
			summary.MarksSkipped += result.Skipped
			if result.Err != nil {
				summary.Failed++
				summary.FailedUnits = append(summary.FailedUnits, FailedUnit{
					Key:    result.Key,
					Reason: result.Err.Error(),
				})
			} else {
				summary.Completed++
			}
		}
	}()

	// enumeration counts accumulate locally; the collector goroutine owns
	// the summary until it drains
	var enumerated, preSkipped int
	enumErr := p.src.EnumerateUnits(ctx, filter, func(key models.UnitKey) error {
		// cheap pre-check; the claim inside the worker is still authoritative
		if p.store.IsCompleted(key) {
			preSkipped++
			return nil
		}
		enumerated++
		return pool.Submit(worker.UnitJob{Key: key})
	})

	pool.Stop()
	<-collectDone
	summary.Enumerated = enumerated
	summary.SkippedUnits += preSkipped
	summary.Duration = time.Since(start)

	if enumErr != nil && ctx.Err() == nil {
		return summary, enumErr
	}

	log.InfoWithFields("run finished", map[string]interface{}{
		"enumerated":    summary.Enumerated,
		"attempted":     summary.Attempted,
		"completed":     summary.Completed,
		"failed":        summary.Failed,
		"skipped_units": summary.SkippedUnits,
		"marks_written": summary.MarksWritten,
		"marks_skipped": summary.MarksSkipped,
		"duration":      summary.Duration.String(),
	})
	return summary, nil
}

// Err aggregates the per-unit failures of a summary into one error, or nil
// for a fully successful run.
func (s *Summary) Err() error {
	if len(s.FailedUnits) == 0 {
		return nil
	}
	var result *multierror.Error
	for _, f := range s.FailedUnits {
		result = multierror.Append(result, fmt.Errorf("unit %s: %s", f.Key, f.Reason))
	}
	return result.ErrorOrNil()
}

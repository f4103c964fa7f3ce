package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"geoetl/pkg/batch"
	"geoetl/pkg/checkpoint"
	"geoetl/pkg/logger"
	"geoetl/pkg/models"
	"geoetl/pkg/source"
)

// UnitJob is one unit key queued for conversion.
type UnitJob struct {
	Key models.UnitKey
}

// UnitResult reports the outcome of one unit attempt.
type UnitResult struct {
	Key      models.UnitKey
	Claimed  bool // false when another worker or a prior run owns the unit
	Written  int
	Skipped  int
	Batches  int
	Err      error
	Duration time.Duration
}

// Pool fans work units out to a bounded set of executors. Units are
// disjoint: the checkpoint store's claim arbitration guarantees no two
// executors ever process the same key, which is the only mutual exclusion
// the pipeline needs. The pool requires an already-opened store, so it is
// impossible to start workers before checkpoint initialization finished.
type Pool struct {
	numWorkers  int
	jobQueue    chan UnitJob
	resultQueue chan UnitResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	src         source.Source
	store       *checkpoint.Store
	batchOpts   batch.Options
	unitTimeout time.Duration
	logger      logger.Logger
}

// NewPool creates a worker pool. The job queue is bounded at twice the
// worker count so enumeration backpressures instead of buffering millions
// of keys.
func NewPool(
	ctx context.Context,
	numWorkers int,
	src source.Source,
	store *checkpoint.Store,
	batchOpts batch.Options,
	unitTimeout time.Duration,
	log logger.Logger,
) *Pool {
	poolCtx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan UnitJob, numWorkers*2),
		resultQueue: make(chan UnitResult, numWorkers),
		ctx:         poolCtx,
		cancel:      cancel,
		src:         src,
		store:       store,
		batchOpts:   batchOpts,
		unitTimeout: unitTimeout,
		logger:      log,
	}
}

// Start launches all workers.
func (p *Pool) Start() {
	p.logger.InfoWithFields("starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop signals that no more jobs will arrive and waits for in-flight units
// to finish, then closes the result channel.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()
	p.logger.Info("worker pool stopped")
}

// Submit queues one unit. It blocks when all workers are busy and the
// queue is full; that is the pipeline's backpressure.
func (p *Pool) Submit(job UnitJob) error {
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the channel of per-unit outcomes.
func (p *Pool) Results() <-chan UnitResult {
	return p.resultQueue
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		result := p.processUnit(job, id)

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			return
		}
	}
}

// processUnit runs the full per-unit sequence: claim, fetch, transform,
// batch, flush, then record the outcome. Claim misses are skips with no
// side effects. Any error after a successful claim marks the unit failed;
// its partial output stays on disk and is overwritten when a later run
// retries the unit.
func (p *Pool) processUnit(job UnitJob, workerID int) UnitResult {
	start := time.Now()
	result := UnitResult{Key: job.Key}
	log := p.logger.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"unit":      job.Key.String(),
	})

	claimed, err := p.store.TryClaim(job.Key)
	if err != nil {
		result.Err = fmt.Errorf("claim failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}
	if !claimed {
		log.Debug("unit already claimed or completed, skipping")
		result.Duration = time.Since(start)
		return result
	}
	result.Claimed = true

	ctx := p.ctx
	var cancel context.CancelFunc
	if p.unitTimeout > 0 {
		ctx, cancel = context.WithTimeout(p.ctx, p.unitTimeout)
		defer cancel()
	}

	written, skipped, batches, err := p.convertUnit(ctx, job.Key, log)
	result.Written = written
	result.Skipped = skipped
	result.Batches = batches
	result.Duration = time.Since(start)

	if err != nil {
		result.Err = err
		log.WithError(err).Error("unit failed")
		if markErr := p.store.MarkFailed(job.Key, err.Error()); markErr != nil {
			log.WithError(markErr).Error("failed to record unit failure")
		}
		return result
	}

	// all batches are flushed by now. The checkpoint records every record
	// streamed, including skipped ones, so reconciliation against source
	// counts balances; the skip count lives in the result and run summary.
	if err := p.store.MarkCompleted(job.Key, written+skipped); err != nil {
		result.Err = fmt.Errorf("failed to record completion: %w", err)
		return result
	}

	log.InfoWithFields("unit completed", map[string]interface{}{
		"marks_written": written,
		"marks_skipped": skipped,
		"batches":       batches,
		"duration":      result.Duration.String(),
	})
	return result
}

// convertUnit streams the unit's marks through the batch writer.
func (p *Pool) convertUnit(ctx context.Context, key models.UnitKey, log logger.Logger) (written, skipped, batches int, err error) {
	analysis, err := p.src.GetAnalysis(ctx, key)
	if err != nil {
		return 0, 0, 0, err
	}

	count, err := p.src.CountMarks(ctx, key)
	if err != nil {
		return 0, 0, 0, err
	}
	if count == 0 {
		log.Warn("no marks found for unit")
		return 0, 0, 0, nil
	}

	writer := batch.NewWriter(analysis, p.batchOpts)
	err = p.src.StreamMarks(ctx, key, func(mark models.Mark) error {
		return writer.Add(mark)
	})
	if err != nil {
		return 0, 0, 0, err
	}

	return writer.Finish()
}

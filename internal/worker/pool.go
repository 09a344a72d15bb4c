package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kpredict/pkg/logger"
	"kpredict/pkg/models"
)

// PlayerJob is one pitcher whose season game log should be ingested
type PlayerJob struct {
	Player models.Player
	Season int
}

// PlayerResult is the outcome of one PlayerJob
type PlayerResult struct {
	Job      PlayerJob
	Success  bool
	Rows     int
	Error    error
	Duration time.Duration
}

// Processor ingests a single player. Implementations must honor ctx.
type Processor interface {
	Process(ctx context.Context, job PlayerJob) (int, error)
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, job PlayerJob) (int, error)

// Process calls f
func (f ProcessorFunc) Process(ctx context.Context, job PlayerJob) (int, error) {
	return f(ctx, job)
}

// Pool runs a fixed number of workers over a job queue. One job's failure
// is reported in its result and never stops the other workers.
type Pool struct {
	numWorkers  int
	jobQueue    chan PlayerJob
	resultQueue chan PlayerResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	processor   Processor
	logger      logger.Logger
}

// NewPool creates a pool bound to parent. Cancelling parent stops workers
// before their next job.
func NewPool(parent context.Context, numWorkers int, processor Processor, log logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan PlayerJob, numWorkers*2),
		resultQueue: make(chan PlayerResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		processor:   processor,
		logger:      log.WithField("component", "worker_pool"),
	}
}

// Start launches the workers
func (p *Pool) Start() {
	p.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue, waits for in-flight jobs and closes Results.
// Results must be drained concurrently or Stop can block.
func (p *Pool) Stop() {
	p.logger.Debug("Stopping worker pool")

	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()

	p.logger.Debug("Worker pool stopped")
}

// Submit queues a job. It fails once the pool's context is done.
func (p *Pool) Submit(job PlayerJob) error {
	select {
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", p.ctx.Err())
	default:
	}

	select {
	case p.jobQueue <- job:
		p.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"player_id": job.Player.ID,
		})
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", p.ctx.Err())
	}
}

// Results returns the channel of finished jobs
func (p *Pool) Results() <-chan PlayerResult {
	return p.resultQueue
}

// QueueSize returns the number of jobs waiting for a worker
func (p *Pool) QueueSize() int {
	return len(p.jobQueue)
}

// Workers returns the pool width
func (p *Pool) Workers() int {
	return p.numWorkers
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		// drain remaining jobs without running them once cancelled
		if p.ctx.Err() != nil {
			continue
		}

		result := p.processJob(job, id)

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) processJob(job PlayerJob, workerID int) (result PlayerResult) {
	start := time.Now()
	result = PlayerResult{Job: job}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Errorf("player %s: panic: %v", job.Player.ID, r)
		}
		result.Duration = time.Since(start)
	}()

	rows, err := p.processor.Process(p.ctx, job)
	result.Rows = rows
	if err != nil {
		result.Error = err
		p.logger.DebugWithFields("Worker job failed", map[string]interface{}{
			"worker_id": workerID,
			"player_id": job.Player.ID,
			"error":     err,
		})
		return result
	}

	result.Success = true
	return result
}

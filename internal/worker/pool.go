package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type indexedJob struct {
	index int
	job   Job
}

type indexedResult struct {
	index  int
	result Result
}

// Pool runs jobs on a fixed number of workers and returns results in
// submission order. Cancelling the pool context stops new jobs from
// starting; jobs already running finish with a context that is not
// cancelled, so their results stay intact.
type Pool struct {
	workers   int
	jobQueue  chan indexedJob
	results   chan indexedResult
	wg        sync.WaitGroup
	ctx       context.Context
	submitted int
	collected []indexedResult
	done      chan struct{}
	closeOnce sync.Once
}

// NewPool creates a new worker pool bound to ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:  workers,
		jobQueue: make(chan indexedJob),
		results:  make(chan indexedResult, workers),
		ctx:      ctx,
		done:     make(chan struct{}),
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	go func() {
		defer close(p.done)
		for r := range p.results {
			p.collected = append(p.collected, r)
		}
	}()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for ij := range p.jobQueue {
		// A job handed over after cancellation is dropped, not started
		if p.ctx.Err() != nil {
			p.results <- indexedResult{index: ij.index}
			continue
		}
		result := ij.job.Execute(context.WithoutCancel(p.ctx))
		p.results <- indexedResult{index: ij.index, result: result}
	}
}

// Submit hands a job to the next free worker. It returns false without
// starting the job once the pool context is cancelled.
func (p *Pool) Submit(job Job) bool {
	ij := indexedJob{index: p.submitted, job: job}
	p.submitted++

	if p.ctx.Err() != nil {
		return false
	}

	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- ij:
		return true
	}
}

// Wait waits for all started jobs and returns one slot per submitted
// job. Slots of jobs that never started are nil. Start must have been called.
func (p *Pool) Wait() []Result {
	p.closeQueue()
	p.wg.Wait()
	close(p.results)
	<-p.done

	results := make([]Result, p.submitted)
	for _, r := range p.collected {
		results[r.index] = r.result
	}

	return results
}

func (p *Pool) closeQueue() {
	p.closeOnce.Do(func() {
		close(p.jobQueue)
	})
}

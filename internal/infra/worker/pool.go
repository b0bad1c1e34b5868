// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// Task is one unit of work. Its error is logged, not returned.
type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of goroutines. Submit blocks
// while every worker is busy, so callers get back-pressure instead of drops.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	n    int
	stop sync.Once
	log  *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	l := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{jobs: make(chan Task), n: workers, log: &l}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.jobs {
				if err := task(ctx); err != nil {
					p.log.Warn().Err(err).Int("worker", id).Msg("task failed")
				}
			}
		}(i)
	}
}

// Submit hands task to a free worker, or gives up when ctx ends first.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the queue and waits for running tasks. Submit must not be
// called after Stop.
func (p *Pool) Stop() {
	p.stop.Do(func() { close(p.jobs) })
	p.wg.Wait()
}

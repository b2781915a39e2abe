package workerpool

import (
	"sync"
)

// Job is a unit of work submitted to a Pool. A non-nil error is recorded and
// reported by Wait, but does not stop the other jobs.
type Job func() error

// Pool runs jobs across a fixed number of worker goroutines.
type Pool struct {
	jobs chan Job
	stop chan struct{}

	wg       sync.WaitGroup
	workers  sync.WaitGroup
	stopOnce sync.Once

	mu      sync.Mutex
	lastErr error
}

// New creates a Pool with n workers. The pool accepts jobs until Stop is called.
func New(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{
		jobs: make(chan Job),
		stop: make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		p.workers.Add(1)
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.workers.Done()
	for {
		select {
		case <-p.stop:
			// drain jobs already queued so Wait does not hang on their wg slots
			for {
				select {
				case <-p.jobs:
					p.wg.Done()
				default:
					return
				}
			}
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := job(); err != nil {
				p.mu.Lock()
				p.lastErr = err
				p.mu.Unlock()
			}
			p.wg.Done()
		}
	}
}

// Add enqueues jobs for execution. It may block if all workers are busy.
func (p *Pool) Add(jobs []Job) {
	p.wg.Add(len(jobs))
	go func() {
		for _, job := range jobs {
			select {
			case <-p.stop:
				p.wg.Done()
			case p.jobs <- job:
			}
		}
	}()
}

// AddOne enqueues a single job.
func (p *Pool) AddOne(job Job) {
	p.Add([]Job{job})
}

// Wait blocks until all added jobs have completed (or were dropped by Stop),
// and returns the last error any job produced.
func (p *Pool) Wait() error {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Stop abandons queued jobs and shuts the workers down. Jobs already running
// complete. Stop is idempotent.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

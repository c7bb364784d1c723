package bot

import (
	"context"
	"errors"
	"sync"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Pool runs jobs on a fixed set of lanes. Jobs with the same key always
// land on the same lane, so one user's updates are handled in order while
// different users proceed in parallel.
type Pool struct {
	lanes []chan func()
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPool(workers, queue int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 64
	}
	p := &Pool{lanes: make([]chan func(), workers)}
	for i := range p.lanes {
		lane := make(chan func(), queue)
		p.lanes[i] = lane
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range lane {
				job()
			}
		}()
	}
	return p
}

// Submit blocks while the lane is full, until ctx is done.
func (p *Pool) Submit(ctx context.Context, key int64, job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	lane := p.lanes[laneIndex(key, len(p.lanes))]
	select {
	case lane <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, lane := range p.lanes {
			close(lane)
		}
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func laneIndex(key int64, n int) int {
	u := uint64(key)
	return int(u % uint64(n))
}

package capture

import (
	"context"
	"sync"
)

// PendingDecodes counts slice decodes that have been queued but not finished.
type PendingDecodes struct {
	mu    sync.Mutex
	count int
	idle  chan struct{}
}

func NewPendingDecodes() *PendingDecodes {
	idle := make(chan struct{})
	close(idle)
	return &PendingDecodes{idle: idle}
}

func (p *PendingDecodes) Add() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.count == 0 {
		p.idle = make(chan struct{})
	}
	p.count++
}

func (p *PendingDecodes) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.count == 0 {
		return
	}
	p.count--
	if p.count == 0 {
		close(p.idle)
	}
}

func (p *PendingDecodes) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Wait blocks until no decode is pending or ctx is done.
func (p *PendingDecodes) Wait(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

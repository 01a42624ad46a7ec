// Package workpool provides the bounded worker pool the scheduler dispatches
// node executions onto. One pool is created per run, sized by the engine's
// Workers setting, with a queue deep enough to hold every node of the graph
// so the coordinating goroutine never blocks on submission.
package workpool

import (
	"runtime"
	"sync"
)

// Task is a unit of work executed by one pool worker.
type Task func()

// Pool is a fixed-size worker pool over a buffered task queue.
type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New starts size workers over a queue holding up to queue tasks.
// size <= 0 defaults to runtime.NumCPU(); queue is raised to at least 1.
func New(size, queue int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if queue < 1 {
		queue = 1
	}

	p := &Pool{tasks: make(chan Task, queue)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit queues a task. It reports false after Close, or when the queue is
// full — the caller sized the queue for the whole graph, so a full queue
// means more submissions than nodes.
func (p *Pool) Submit(task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

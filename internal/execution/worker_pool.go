package execution

import (
	"sync"
)

// WorkerPool runs submitted tasks on a fixed number of goroutines
type WorkerPool struct {
	size     int
	taskChan chan func()
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWorkerPool creates a worker pool
func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:     size,
		taskChan: make(chan func(), size*2),
		stopChan: make(chan struct{}),
	}
}

// Start starts the workers
func (p *WorkerPool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop stops the workers and waits for running tasks to return
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
}

// Submit queues a task. It returns false if the pool is stopping.
func (p *WorkerPool) Submit(task func()) bool {
	select {
	case <-p.stopChan:
		return false
	default:
	}

	select {
	case p.taskChan <- task:
		return true
	case <-p.stopChan:
		return false
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case task := <-p.taskChan:
			if task != nil {
				task()
			}
		case <-p.stopChan:
			return
		}
	}
}

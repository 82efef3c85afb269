// Package outbox runs side effects that must happen after a store commit
// without ever being able to undo it: realtime fan-out and welcome messages.
// A job's error is logged and discarded.
package outbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	logger "github.com/Gopher0727/Eiga/middleware/log"
)

// Job is one post-commit side effect.
type Job func(ctx context.Context) error

// Outbox accepts jobs after the triggering mutation has committed. Enqueue
// never blocks the caller and never reports the job's outcome.
type Outbox interface {
	Enqueue(name string, job Job)
}

type task struct {
	name string
	job  Job
}

// Pool 固定数量的 worker 消费任务队列；队列满时丢弃任务而不是阻塞请求
type Pool struct {
	queue      chan task
	workers    int
	jobTimeout time.Duration
	log        *logger.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewPool(workers, queueSize int, jobTimeout time.Duration, log *logger.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		queue:      make(chan task, queueSize),
		workers:    workers,
		jobTimeout: jobTimeout,
		log:        log.Named("outbox"),
	}
}

// Start 启动 worker
func (p *Pool) Start() {
	for i := range p.workers {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for t := range p.queue {
				p.run(workerID, t)
			}
		}(i)
	}
	p.log.Info("outbox started", zap.Int("workers", p.workers))
}

func (p *Pool) run(workerID int, t task) {
	// 单个任务 panic 不能让 worker 退出
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("outbox job panic", zap.Int("worker", workerID), zap.String("job", t.name), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.jobTimeout)
	defer cancel()
	if err := t.job(ctx); err != nil {
		p.log.Warn("outbox job failed", zap.String("job", t.name), zap.Error(err))
	}
}

func (p *Pool) Enqueue(name string, job Job) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.log.Warn("outbox stopped, job dropped", zap.String("job", name))
		return
	}
	select {
	case p.queue <- task{name: name, job: job}:
	default:
		p.log.Warn("outbox queue full, job dropped", zap.String("job", name))
	}
}

// Stop 拒绝新任务，等待已入队任务执行完毕
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info("outbox stopped")
}

// Inline runs each job synchronously on the caller's goroutine, with the
// same error swallowing as Pool.
type Inline struct {
	jobTimeout time.Duration
	log        *logger.Logger
}

func NewInline(jobTimeout time.Duration, log *logger.Logger) *Inline {
	return &Inline{jobTimeout: jobTimeout, log: log}
}

func (o *Inline) Enqueue(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), o.jobTimeout)
	defer cancel()
	if err := job(ctx); err != nil {
		o.log.Warn("outbox job failed", zap.String("job", name), zap.Error(err))
	}
}

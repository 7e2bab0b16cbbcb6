package worker

import (
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"hr-toolkit/internal/consumer"
	"hr-toolkit/internal/logger"
	"hr-toolkit/internal/metrics"
)

// StartFunc starts one consumer with the given tag.
type StartFunc func(tag string, handler consumer.HandlerFunc) (*consumer.Consumer, error)

// WorkerPool runs a fixed number of consumers on one queue, each handling
// one delivery at a time.
type WorkerPool struct {
	queue   string
	start   StartFunc
	handler consumer.HandlerFunc
	log     *logger.Logger

	mu        sync.Mutex
	consumers []*consumer.Consumer
	workers   int
}

// NewWorkerPool builds a pool consuming queue over conn.
func NewWorkerPool(conn *amqp.Connection, queue string, workerCount int, handler consumer.HandlerFunc, log *logger.Logger) *WorkerPool {
	log = log.Named("worker")
	start := func(tag string, h consumer.HandlerFunc) (*consumer.Consumer, error) {
		return consumer.StartConsumer(conn, queue, tag, 1, h, log)
	}
	return NewWorkerPoolWith(queue, workerCount, start, handler, log)
}

// NewWorkerPoolWith builds a pool that starts consumers through start.
func NewWorkerPoolWith(queue string, workerCount int, start StartFunc, handler consumer.HandlerFunc, log *logger.Logger) *WorkerPool {
	return &WorkerPool{
		queue:   queue,
		start:   start,
		handler: handler,
		workers: workerCount,
		log:     log,
	}
}

func (wp *WorkerPool) Start() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.startLocked()
}

func (wp *WorkerPool) startLocked() error {
	wp.log.Info("starting pool", "queue", wp.queue, "workers", wp.workers)
	for i := len(wp.consumers); i < wp.workers; i++ {
		c, err := wp.start(fmt.Sprintf("%s-worker-%d", wp.queue, i), wp.track)
		if err != nil {
			wp.stopLocked()
			return fmt.Errorf("start worker %d: %w", i, err)
		}
		wp.consumers = append(wp.consumers, c)
	}
	return nil
}

// track keeps the active-worker gauge in step with in-flight deliveries.
func (wp *WorkerPool) track(d amqp.Delivery) {
	metrics.WorkerActive.Inc()
	defer metrics.WorkerActive.Dec()
	wp.handler(d)
}

func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.stopLocked()
}

func (wp *WorkerPool) stopLocked() {
	for _, c := range wp.consumers {
		c.Stop()
	}
	wp.consumers = nil
	wp.log.Info("stopped pool", "queue", wp.queue)
}

// Size returns the number of running consumers.
func (wp *WorkerPool) Size() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return len(wp.consumers)
}

// SetWorkerCount restarts the pool with a new concurrency level.
func (wp *WorkerPool) SetWorkerCount(n int) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if n <= 0 || n == wp.workers {
		return nil
	}

	wp.log.Info("rescaling worker pool", "queue", wp.queue, "from", wp.workers, "to", n)
	wp.stopLocked()
	wp.workers = n
	return wp.startLocked()
}

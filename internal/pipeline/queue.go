package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/retypeset/internal/entity"
)

// Job is one queued document.
type Job struct {
	ID       uuid.UUID
	Document *entity.Document
}

// DocumentQueue fans queued documents out to a fixed set of workers, each
// running the pipeline with a per-document timeout. Reports are delivered
// to the configured handler in completion order.
type DocumentQueue struct {
	pipe    *Pipeline
	logger  *slog.Logger
	workers int
	timeout time.Duration
	handle  func(*DocumentReport)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type QueueOption func(*DocumentQueue)

func WithQueueWorkers(n int) QueueOption {
	return func(q *DocumentQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) QueueOption {
	return func(q *DocumentQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithDocumentTimeout(d time.Duration) QueueOption {
	return func(q *DocumentQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithReportHandler(fn func(*DocumentReport)) QueueOption {
	return func(q *DocumentQueue) {
		if fn != nil {
			q.handle = fn
		}
	}
}

func NewDocumentQueue(pipe *Pipeline, logger *slog.Logger, opts ...QueueOption) *DocumentQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &DocumentQueue{
		pipe:    pipe,
		logger:  logger,
		workers: 2,
		timeout: 15 * time.Minute,
		handle:  func(*DocumentReport) {},
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *DocumentQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					report, err := q.pipe.ProcessDocument(ctx, job.Document)
					cancel()

					if err != nil {
						q.logger.Error("queue.document.interrupted",
							"worker_id", workerID, "job_id", job.ID,
							"source", job.Document.SourcePath, "error", err)
					}
					if report != nil {
						q.handle(report)
					}
				}

				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue adds a document. A full queue blocks the caller rather than
// dropping work.
func (q *DocumentQueue) Enqueue(_ context.Context, doc *entity.Document) error {
	job := Job{ID: uuid.New(), Document: doc}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.rejected", "source", doc.SourcePath)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("queue.document.enqueued", "job_id", job.ID, "source", doc.SourcePath)
	default:
		q.logger.Warn("queue.backpressure", "source", doc.SourcePath)
		q.ch <- job
	}
	return nil
}

// Shutdown stops intake and waits for in-flight documents, bounded by ctx.
func (q *DocumentQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.complete")
	}
}

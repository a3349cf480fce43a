package queue

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// DispatchJob is the fan-out payload: one queued email to attempt.
type DispatchJob struct {
	QueuedEmailID int    `json:"queued_email_id"`
	CorrelationID string `json:"correlation_id"`
}

// Queue interface
type Queue interface {
	Publish(job DispatchJob) error
	Consume(handler func(job DispatchJob) error) error
}

// InMemoryQueue fans jobs out to subscribers in-process. Used in tests and
// single-binary deployments without a broker.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers []func(job DispatchJob) error
	wg       sync.WaitGroup
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{}
}

// Publish hands the job to every registered handler.
func (q *InMemoryQueue) Publish(job DispatchJob) error {
	if job.CorrelationID == "" {
		job.CorrelationID = uuid.NewString()
	}
	q.mu.Lock()
	handlers := make([]func(job DispatchJob) error, len(q.handlers))
	copy(handlers, q.handlers)
	q.mu.Unlock()

	for _, handler := range handlers {
		q.wg.Add(1)
		go func(h func(job DispatchJob) error) {
			defer q.wg.Done()
			if err := h(job); err != nil {
				log.Printf("dispatch job %s (queued email %d) failed: %v", job.CorrelationID, job.QueuedEmailID, err)
			}
		}(handler)
	}
	return nil
}

// Consume registers a handler for published jobs.
func (q *InMemoryQueue) Consume(handler func(job DispatchJob) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
	return nil
}

// Wait blocks until every published job has been handled.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

var _ Queue = (*InMemoryQueue)(nil)

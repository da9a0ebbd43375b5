package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// InMemoryTask remembers how it was settled.
type InMemoryTask struct {
	queue   string
	payload []byte

	mu     sync.Mutex
	result string
}

func (t *InMemoryTask) Type() string {
	return t.queue
}

func (t *InMemoryTask) Payload() []byte {
	return t.payload
}

func (t *InMemoryTask) settle(result string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.result != "" {
		return fmt.Errorf("task already settled with %s", t.result)
	}
	t.result = result
	return nil
}

func (t *InMemoryTask) Ack() error {
	return t.settle("ack")
}

func (t *InMemoryTask) Nack() error {
	return t.settle("nack")
}

func (t *InMemoryTask) Reject() error {
	return t.settle("reject")
}

// Result reports how the task was settled: "ack", "nack", "reject" or "".
func (t *InMemoryTask) Result() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// InMemoryQueue serves as publisher, receiver and event sink inside a single
// process.
type InMemoryQueue struct {
	mu     sync.RWMutex
	tasks  chan Task
	events chan PromotionEvent
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks:  make(chan Task, 100),
		events: make(chan PromotionEvent, 100),
	}
}

func (q *InMemoryQueue) publishTaskInternal(queue string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return q.PublishRaw(queue, data)
}

// PublishRaw enqueues an already encoded payload.
func (q *InMemoryQueue) PublishRaw(queue string, data []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}
	q.tasks <- &InMemoryTask{queue: queue, payload: data}
	return nil
}

func (q *InMemoryQueue) PublishPromotionTask(ctx context.Context, payload PromotionTaskPayload) error {
	return q.publishTaskInternal(PromotionQueue, payload)
}

// PublishPromotionEvent drops the event when nobody drains Events fast enough.
func (q *InMemoryQueue) PublishPromotionEvent(ctx context.Context, event PromotionEvent) error {
	select {
	case q.events <- event:
		return nil
	default:
		return fmt.Errorf("event buffer is full")
	}
}

func (q *InMemoryQueue) Tasks() <-chan Task {
	return q.tasks
}

func (q *InMemoryQueue) Events() <-chan PromotionEvent {
	return q.events
}

func (q *InMemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		close(q.tasks)
		q.closed = true
	}
}

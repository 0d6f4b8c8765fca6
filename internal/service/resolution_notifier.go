package service

import (
	"context"
	"fmt"

	"github.com/uthutho/admin-api/internal/dto"
	"github.com/uthutho/admin-api/pkg/jobs"
)

// EventRequestResolved is the routing key for resolution events.
const EventRequestResolved = "request.resolved"

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type eventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// QueueNotifier hands resolution events to the background queue so the
// broker round-trip stays off the request path.
type QueueNotifier struct {
	queue jobEnqueuer
}

// NewQueueNotifier builds a notifier backed by queue.
func NewQueueNotifier(queue jobEnqueuer) *QueueNotifier {
	return &QueueNotifier{queue: queue}
}

// NotifyResolved enqueues event for publishing.
func (n *QueueNotifier) NotifyResolved(_ context.Context, event dto.ResolutionEvent) error {
	return n.queue.Enqueue(jobs.Job{ID: event.RequestID, Type: EventRequestResolved, Payload: event})
}

// PublishResolutionJob returns the queue handler that forwards resolution events to publisher.
func PublishResolutionJob(publisher eventPublisher) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(dto.ResolutionEvent)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
		}
		return publisher.Publish(ctx, job.Type, event)
	}
}

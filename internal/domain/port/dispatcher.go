package port

import (
	"context"

	"github.com/Saltoleto/consulta-produtos/pkg/events"
)

// EventPublisher publishes domain events to a topic.
type EventPublisher = events.EventPublisher

// Task is one unit of event emission.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher decides where emission tasks run.
type Dispatcher interface {
	// Inline reports whether tasks run on the caller goroutine and return
	// their error. Inline tasks run inside the lot transaction.
	Inline() bool
	// Dispatch runs or enqueues t. Non-inline dispatchers never return the
	// task's own error.
	Dispatch(ctx context.Context, t Task) error
	// Shutdown drains pending tasks.
	Shutdown(ctx context.Context) error
}

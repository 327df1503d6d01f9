package driving

import "context"

// IngestOrchestrator runs background processing of pending documents.
type IngestOrchestrator interface {
	// Start launches the worker pool. It returns immediately.
	Start(ctx context.Context)

	// Submit schedules a pending document. It never blocks on processing.
	Submit(documentID string) error

	// Resume re-queues pending documents and fails interrupted ones.
	Resume(ctx context.Context) (int, error)

	// Stop waits for in-flight attempts and shuts the pool down.
	Stop()
}

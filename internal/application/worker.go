package application

import "context"

// Worker represents a long-running background process.
// Implementations must run until the context is canceled.
type Worker interface {
	Start(ctx context.Context)
}

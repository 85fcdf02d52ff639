package backend

import (
	"context"

	"bizdash/internal/cache"
	"bizdash/internal/ports"
	"bizdash/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult bundles the collaborators the services are wired with.
type BackendResult struct {
	Repository ports.Repository
	// Publisher is nil when AMQP is not configured or unreachable.
	Publisher services.Publisher
	Snapshots cache.Cache[services.Snapshot]
	Locker    cache.Locker
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

package jobs

import (
	"context"
	"fmt"
)

// JobHandler runs one scheduled job
type JobHandler interface {
	Handle(ctx context.Context) error
}

// HandlerFunc adapts a function to JobHandler
type HandlerFunc func(ctx context.Context) error

func (f HandlerFunc) Handle(ctx context.Context) error {
	return f(ctx)
}

// HandlerRegistry maps job names to their handlers
type HandlerRegistry struct {
	handlers map[string]JobHandler
}

// NewHandlerRegistry creates a new handler registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]JobHandler),
	}
}

// Register registers a handler for a job name
func (r *HandlerRegistry) Register(name string, handler JobHandler) {
	r.handlers[name] = handler
}

// GetHandler retrieves a handler for a job name
func (r *HandlerRegistry) GetHandler(name string) (JobHandler, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown job: %s", name)
	}
	return handler, nil
}

// HasHandler checks if a handler exists for a job name
func (r *HandlerRegistry) HasHandler(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

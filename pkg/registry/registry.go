// Package registry keeps the node factories known to the interpreter.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
)

var ErrNodeTypeNotRegistered = errors.New("node type not registered")

type Registry struct {
	logger *slog.Logger
	deps   protocol.Dependencies

	mu        sync.RWMutex
	factories map[models.NodeType]protocol.NodeFactory
	handlers  map[models.NodeType]protocol.NodeHandler
}

func NewRegistry(log *slog.Logger, deps protocol.Dependencies) *Registry {
	if deps.Logger == nil {
		deps.Logger = log
	}

	return &Registry{
		logger:    log.With("module", "registry"),
		deps:      deps,
		factories: make(map[models.NodeType]protocol.NodeFactory),
		handlers:  make(map[models.NodeType]protocol.NodeHandler),
	}
}

// RegisterNode adds or replaces the factory for its node type.
func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[factory.ID()] = factory
	delete(r.handlers, factory.ID())

	r.logger.Debug("registered node factory", "node_type", factory.ID())
}

// Handler returns the handler for a node type, creating it on first use.
func (r *Registry) Handler(nodeType models.NodeType) (protocol.NodeHandler, error) {
	r.mu.RLock()
	handler, ok := r.handlers[nodeType]
	r.mu.RUnlock()

	if ok {
		return handler, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if handler, ok := r.handlers[nodeType]; ok {
		return handler, nil
	}

	factory, ok := r.factories[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeTypeNotRegistered, nodeType)
	}

	handler, err := factory.Create(r.deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s handler: %w", nodeType, err)
	}

	r.handlers[nodeType] = handler

	return handler, nil
}

// Factories lists the registered factories in display order.
func (r *Registry) Factories() []protocol.NodeFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]protocol.NodeFactory, 0, len(r.factories))
	seen := make(map[models.NodeType]bool, len(r.factories))

	for _, nodeType := range models.NodeTypes {
		if factory, ok := r.factories[nodeType]; ok {
			factories = append(factories, factory)
			seen[nodeType] = true
		}
	}

	for nodeType, factory := range r.factories {
		if !seen[nodeType] {
			factories = append(factories, factory)
		}
	}

	return factories
}

func (r *Registry) Factory(nodeType models.NodeType) (protocol.NodeFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[nodeType]

	return factory, ok
}

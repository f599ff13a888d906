// Package registry provides the catalog of node executors available to the engine.
package registry

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
)

// Registry maps node types to executors. It is read-mostly and safe for
// concurrent lookups from many runs.
type Registry struct {
	mu         sync.RWMutex
	logger     *slog.Logger
	executors  map[string]protocol.NodeExecutor
	categories map[string]string
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:     logger.With("module", "registry"),
		executors:  make(map[string]protocol.NodeExecutor),
		categories: make(map[string]string),
	}
}

// Register stores an executor under its type. Registering a type twice keeps
// the latest executor and logs a warning. Nil executors and executors without
// a type are logged and ignored.
func (r *Registry) Register(executor protocol.NodeExecutor) {
	if executor == nil {
		r.logger.Error("Refusing to register a nil node executor")

		return
	}

	nodeType := executor.Type()
	if nodeType == "" {
		r.logger.Error("Refusing to register a node executor without type")

		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[nodeType]; exists {
		r.logger.Warn("Node type already registered, overwriting", "node_type", nodeType)
	}

	r.executors[nodeType] = executor
	r.categories[nodeType] = executor.Category()

	r.logger.Debug("Registered node type", "node_type", nodeType, "category", executor.Category())
}

// Discover builds and registers every executor of the table. A factory that
// fails or panics is logged and skipped. It returns how many were registered.
func (r *Registry) Discover(factories []protocol.Factory) int {
	registered := 0

	for i, factory := range factories {
		executor, err := build(factory)
		if err != nil {
			r.logger.Error("Failed to load node executor", "index", i, "error", err)

			continue
		}

		if executor == nil || executor.Type() == "" {
			r.logger.Error("Node executor has no type", "index", i)

			continue
		}

		r.Register(executor)
		registered++
	}

	return registered
}

func build(factory protocol.Factory) (executor protocol.NodeExecutor, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			executor = nil
			err = fmt.Errorf("factory panicked: %v", recovered)
		}
	}()

	if factory == nil {
		return nil, fmt.Errorf("nil factory")
	}

	executor, err = factory()
	if err != nil {
		return nil, err
	}

	if executor == nil {
		return nil, fmt.Errorf("factory returned no executor")
	}

	return executor, nil
}

// Executor returns the executor for a type or an UNKNOWN_NODE_TYPE error.
func (r *Registry) Executor(nodeType string) (protocol.NodeExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[nodeType]
	if !ok {
		return nil, flowerrors.UnknownNodeType(nodeType)
	}

	return executor, nil
}

// Has reports whether a type is registered.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.executors[nodeType]

	return ok
}

// Types returns the registered types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.executors))
	for nodeType := range r.executors {
		types = append(types, nodeType)
	}

	slices.Sort(types)

	return types
}

// Categories groups the registered types by category.
func (r *Registry) Categories() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grouped := make(map[string][]string)
	for nodeType, category := range r.categories {
		grouped[category] = append(grouped[category], nodeType)
	}

	for category := range grouped {
		slices.Sort(grouped[category])
	}

	return grouped
}

// Metadata returns the metadata of a type. Executors that do not describe
// themselves get a minimal entry.
func (r *Registry) Metadata(nodeType string) (protocol.Metadata, error) {
	executor, err := r.Executor(nodeType)
	if err != nil {
		return protocol.Metadata{}, err
	}

	return metadataOf(executor), nil
}

// AllMetadata returns the metadata of every registered type, sorted by type.
func (r *Registry) AllMetadata() []protocol.Metadata {
	types := r.Types()
	all := make([]protocol.Metadata, 0, len(types))

	for _, nodeType := range types {
		meta, err := r.Metadata(nodeType)
		if err != nil {
			continue
		}

		all = append(all, meta)
	}

	return all
}

// Schema returns the configuration schema of a type.
func (r *Registry) Schema(nodeType string) (*models.JSONSchema, error) {
	meta, err := r.Metadata(nodeType)
	if err != nil {
		return nil, err
	}

	return BuildSchema(meta), nil
}

func metadataOf(executor protocol.NodeExecutor) protocol.Metadata {
	if provider, ok := executor.(protocol.MetadataProvider); ok {
		meta := provider.Metadata()
		if meta.Type == "" {
			meta.Type = executor.Type()
		}

		if meta.Category == "" {
			meta.Category = executor.Category()
		}

		return meta
	}

	_, name := models.SplitNodeType(executor.Type())

	return protocol.Metadata{
		Type:     executor.Type(),
		Category: executor.Category(),
		Label:    name,
	}
}

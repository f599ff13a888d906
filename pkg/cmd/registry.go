// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/dukex/flowengine/pkg/registry"
)

// NewRegistry returns a registry holding every built-in node.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	count := reg.RegisterDefaultNodes()
	logger.Debug("Registered built-in nodes", "count", count)

	return reg
}

// Package transform provides the data transformation node.
package transform

import (
	"github.com/dukex/flowengine/pkg/protocol"
)

// Factory creates the transform node for registration.
func Factory() (protocol.NodeExecutor, error) {
	return NewTransformNode(), nil
}

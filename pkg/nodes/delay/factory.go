// Package delay provides the node that pauses a path for a fixed duration.
package delay

import (
	"github.com/dukex/flowengine/pkg/protocol"
)

// Factory creates the delay node for registration.
func Factory() (protocol.NodeExecutor, error) {
	return NewDelayNode(), nil
}

// Package parallel provides the fork node that runs its outgoing edges
// concurrently.
package parallel

import (
	"github.com/dukex/flowengine/pkg/protocol"
)

// Factory creates the parallel node for registration.
func Factory() (protocol.NodeExecutor, error) {
	return NewParallelNode(), nil
}

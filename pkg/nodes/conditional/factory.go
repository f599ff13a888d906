// Package conditional provides the conditional branching node.
package conditional

import (
	"github.com/dukex/flowengine/pkg/protocol"
)

// Factory creates the conditional node for registration.
func Factory() (protocol.NodeExecutor, error) {
	return NewConditionalNode(), nil
}

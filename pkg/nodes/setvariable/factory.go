// Package setvariable provides the node that writes run variables.
package setvariable

import (
	"github.com/dukex/flowengine/pkg/protocol"
)

// Factory creates the set variable node for registration.
func Factory() (protocol.NodeExecutor, error) {
	return NewSetVariableNode(), nil
}

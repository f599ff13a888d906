// Package switchnode provides the multi-way switch node.
package switchnode

import (
	"github.com/dukex/flowengine/pkg/protocol"
)

// Factory creates the switch node for registration.
func Factory() (protocol.NodeExecutor, error) {
	return NewSwitchNode(), nil
}

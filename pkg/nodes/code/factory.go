// Package code provides the node that runs a JavaScript snippet.
package code

import (
	"github.com/dukex/flowengine/pkg/protocol"
)

// Factory creates the code node for registration.
func Factory() (protocol.NodeExecutor, error) {
	return NewCodeNode(), nil
}

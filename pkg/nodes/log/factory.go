// Package log provides the logging node.
package log

import (
	"github.com/dukex/flowengine/pkg/protocol"
)

// Factory creates the log node for registration.
func Factory() (protocol.NodeExecutor, error) {
	return NewLogNode(), nil
}

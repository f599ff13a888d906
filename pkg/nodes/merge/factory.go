// Package merge provides the join node that combines branch outputs.
package merge

import (
	"github.com/dukex/flowengine/pkg/protocol"
)

// Factory creates the merge node for registration.
func Factory() (protocol.NodeExecutor, error) {
	return NewMergeNode(), nil
}

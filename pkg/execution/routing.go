package execution

import (
	"strings"

	"github.com/dukex/flowengine/pkg/protocol"
)

// GetNextNodeIDs resolves the edges to follow after a node. Declared next
// nodes are a set of handle keys matched case-insensitively against edge
// handles; without a declaration only unrestricted edges are followed.
func (c *Context) GetNextNodeIDs(sourceNodeID string, result *protocol.Result) []string {
	var handles map[string]bool

	if result != nil && result.NextNodes != nil {
		handles = make(map[string]bool, len(result.NextNodes))
		for _, handle := range result.NextNodes {
			handles[strings.ToLower(handle)] = true
		}
	}

	seen := make(map[string]bool)
	next := make([]string, 0)

	for _, edge := range c.flow.OutgoingEdges(sourceNodeID) {
		follow := false

		if handles == nil {
			follow = edge.SourceHandle == ""
		} else {
			follow = edge.SourceHandle != "" && handles[strings.ToLower(edge.SourceHandle)]
		}

		if follow && !seen[edge.Target] {
			seen[edge.Target] = true
			next = append(next, edge.Target)
		}
	}

	return next
}

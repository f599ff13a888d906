// Package httprequest provides the outbound HTTP request node.
package httprequest

import (
	"net/http"

	"github.com/dukex/flowengine/pkg/protocol"
)

// Factory creates the HTTP request node for registration.
func Factory() (protocol.NodeExecutor, error) {
	return NewHTTPRequestNode(http.DefaultClient), nil
}

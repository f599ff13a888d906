package registry

import (
	"github.com/dukex/flowengine/pkg/nodes/code"
	"github.com/dukex/flowengine/pkg/nodes/conditional"
	"github.com/dukex/flowengine/pkg/nodes/delay"
	"github.com/dukex/flowengine/pkg/nodes/httprequest"
	"github.com/dukex/flowengine/pkg/nodes/log"
	"github.com/dukex/flowengine/pkg/nodes/merge"
	"github.com/dukex/flowengine/pkg/nodes/parallel"
	"github.com/dukex/flowengine/pkg/nodes/setvariable"
	switchnode "github.com/dukex/flowengine/pkg/nodes/switch"
	"github.com/dukex/flowengine/pkg/nodes/transform"
	"github.com/dukex/flowengine/pkg/nodes/trigger"
	"github.com/dukex/flowengine/pkg/protocol"
)

// DefaultNodes returns the factory table of the built-in node types.
func DefaultNodes() []protocol.Factory {
	return []protocol.Factory{
		trigger.ManualFactory,
		trigger.WebhookFactory,
		trigger.ScheduleFactory,
		conditional.Factory,
		switchnode.Factory,
		parallel.Factory,
		merge.Factory,
		delay.Factory,
		code.Factory,
		setvariable.Factory,
		transform.Factory,
		log.Factory,
		httprequest.Factory,
	}
}

// RegisterDefaultNodes registers every built-in node type.
func (r *Registry) RegisterDefaultNodes() int {
	return r.Discover(DefaultNodes())
}

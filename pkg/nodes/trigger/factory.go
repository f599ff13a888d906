// Package trigger provides the entry point nodes of a flow. A trigger node
// runs first and turns the run input into its output.
package trigger

import (
	"time"

	"github.com/dukex/flowengine/pkg/protocol"
)

// ManualFactory creates the manual trigger node for registration.
func ManualFactory() (protocol.NodeExecutor, error) {
	return NewManualTriggerNode(), nil
}

// WebhookFactory creates the webhook trigger node for registration.
func WebhookFactory() (protocol.NodeExecutor, error) {
	return NewWebhookTriggerNode(), nil
}

// ScheduleFactory creates the schedule trigger node for registration.
func ScheduleFactory() (protocol.NodeExecutor, error) {
	return NewScheduleTriggerNode(time.Now), nil
}

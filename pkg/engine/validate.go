package engine

import (
	"errors"
	"fmt"

	"github.com/dukex/flowengine/pkg/errorhandler"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/go-playground/validator/v10"
)

var flowValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateFlow returns every structural and per-node problem of a flow. An
// empty result means the flow can run.
func (e *Engine) ValidateFlow(flow *models.Flow) []string {
	if flow == nil {
		return []string{"flow is required"}
	}

	problems := structProblems(flow)

	seen := make(map[string]bool, len(flow.Nodes))

	for _, node := range flow.Nodes {
		if node == nil {
			continue
		}

		if seen[node.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %s", node.ID))
		}

		seen[node.ID] = true
	}

	for _, edge := range flow.Edges {
		if edge == nil {
			continue
		}

		if !seen[edge.Source] {
			problems = append(problems, fmt.Sprintf("edge %s references unknown source node %s", edge.ID, edge.Source))
		}

		if !seen[edge.Target] {
			problems = append(problems, fmt.Sprintf("edge %s references unknown target node %s", edge.ID, edge.Target))
		}
	}

	for _, node := range flow.Nodes {
		if node == nil || node.Disabled {
			continue
		}

		for _, problem := range e.registry.ValidateNode(node) {
			problems = append(problems, fmt.Sprintf("node %s: %s", node.ID, problem))
		}

		for _, problem := range errorhandler.Validate(node, flow) {
			problems = append(problems, fmt.Sprintf("node %s: %s", node.ID, problem))
		}
	}

	return problems
}

func structProblems(flow *models.Flow) []string {
	err := flowValidator.Struct(flow)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	problems := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		problems = append(problems, fmt.Sprintf("%s failed the %s rule", fieldErr.Namespace(), fieldErr.Tag()))
	}

	return problems
}

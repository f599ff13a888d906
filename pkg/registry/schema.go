package registry

import (
	"fmt"
	"slices"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/protocol"
	"github.com/dukex/flowengine/pkg/template"
	"github.com/xeipuuv/gojsonschema"
)

const schemaDraft = "http://json-schema.org/draft-07/schema#"

// BuildSchema derives a JSON Schema from node metadata. It has no side effects.
func BuildSchema(meta protocol.Metadata) *models.JSONSchema {
	schema := &models.JSONSchema{
		Schema:      schemaDraft,
		Type:        "object",
		Title:       meta.Label,
		Description: meta.Description,
		Properties:  make(map[string]*models.Property, len(meta.Properties)),
	}

	for _, prop := range meta.Properties {
		property := &models.Property{
			Title:       prop.Label,
			Description: prop.Description,
			Default:     prop.Default,
			Enum:        prop.Enum,
			Minimum:     prop.Min,
			Maximum:     prop.Max,
			MinLength:   prop.MinLength,
		}

		if prop.Type != protocol.PropertyAny {
			property.Type = prop.Type
		}

		schema.Properties[prop.Name] = property

		if prop.Required {
			schema.Required = append(schema.Required, prop.Name)
		}
	}

	return schema
}

// Validate checks data against the schema of a type and the executor's own
// rules. Unknown types yield a single "Unknown node type" message.
func (r *Registry) Validate(nodeType string, data map[string]any) []string {
	executor, err := r.Executor(nodeType)
	if err != nil {
		return []string{"Unknown node type: " + nodeType}
	}

	if data == nil {
		data = map[string]any{}
	}

	problems := validateSchema(BuildSchema(metadataOf(executor)), data)
	problems = append(problems, executor.Validate(&models.Node{Type: nodeType, Data: data})...)

	return dedupe(problems)
}

// ValidateNode validates a flow node. Disabled nodes are still validated.
func (r *Registry) ValidateNode(node *models.Node) []string {
	return r.Validate(node.Type, node.Data)
}

func validateSchema(schema *models.JSONSchema, data map[string]any) []string {
	if len(schema.Properties) == 0 {
		return nil
	}

	relaxTemplated(schema, data)

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(data),
	)
	if err != nil {
		return []string{fmt.Sprintf("schema validation failed: %v", err)}
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))

	for _, resultErr := range result.Errors() {
		if resultErr.Type() == "required" {
			if property, ok := resultErr.Details()["property"].(string); ok {
				problems = append(problems, property+" is required")

				continue
			}
		}

		problems = append(problems, fmt.Sprintf("%s: %s", resultErr.Field(), resultErr.Description()))
	}

	slices.Sort(problems)

	return problems
}

// relaxTemplated lifts the constraints of properties whose value is only known
// at run time, so a templated number is not rejected as a string.
func relaxTemplated(schema *models.JSONSchema, data map[string]any) {
	for key, value := range data {
		if s, ok := value.(string); ok && template.NeedsRendering(s) {
			if _, declared := schema.Properties[key]; declared {
				schema.Properties[key] = &models.Property{}
			}
		}
	}
}

func dedupe(problems []string) []string {
	if len(problems) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(problems))
	out := make([]string, 0, len(problems))

	for _, problem := range problems {
		if seen[problem] {
			continue
		}

		seen[problem] = true
		out = append(out, problem)
	}

	return out
}

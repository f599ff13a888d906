package protocol

// Metadata describes a node type for schema generation and UI rendering.
type Metadata struct {
	Type        string     `json:"type"`
	Category    string     `json:"category"`
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Icon        string     `json:"icon,omitempty"`
	Properties  []Property `json:"properties"`
	Outputs     []Output   `json:"outputs,omitempty"`
}

// Property types understood by schema generation.
const (
	PropertyString  = "string"
	PropertyNumber  = "number"
	PropertyInteger = "integer"
	PropertyBoolean = "boolean"
	PropertyObject  = "object"
	PropertyArray   = "array"
	PropertyAny     = "any"
)

// Property is a single configurable field of a node.
type Property struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Label       string   `json:"label,omitempty"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Default     any      `json:"default,omitempty"`
	Enum        []any    `json:"enum,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	MinLength   *int     `json:"minLength,omitempty"`
}

// Output is a handle a node may route to.
type Output struct {
	Handle      string `json:"handle"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// Float returns a pointer to v, for Min and Max.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v, for MinLength.
func Int(v int) *int {
	return &v
}

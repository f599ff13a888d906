// Package template resolves placeholders in node configuration against the run state.
package template

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

const noValue = "<no value>"

var funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"json": func(value any) (string, error) {
		raw, err := json.Marshal(value)
		if err != nil {
			return "", err
		}

		return string(raw), nil
	},
	"default": func(fallback, value any) any {
		if isEmpty(value) {
			return fallback
		}

		return value
	},
	"path": func(value any, path string) (any, error) {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}

		return gjson.GetBytes(raw, path).Value(), nil
	},
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
}

// NeedsRendering reports whether a string contains template actions.
func NeedsRendering(input string) bool {
	return strings.Contains(input, "{{")
}

// Render executes a template and coerces the output to JSON, number or boolean
// when it parses as one, otherwise it is returned as a string.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.New("node").Funcs(funcs).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(strings.ReplaceAll(buf.String(), noValue, ""))

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err != nil {
			return nil, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
		}

		return jsonResult, nil
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// ResolveData returns a copy of data with every templated string rendered.
// Values without template actions are copied unchanged.
func ResolveData(data map[string]any, templateData any) (map[string]any, error) {
	resolved, err := resolve(data, templateData, "")
	if err != nil {
		return nil, err
	}

	out, _ := resolved.(map[string]any)
	if out == nil {
		out = map[string]any{}
	}

	return out, nil
}

func resolve(value any, templateData any, path string) (any, error) {
	switch v := value.(type) {
	case string:
		if !NeedsRendering(v) {
			return v, nil
		}

		rendered, err := Render(v, templateData)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		return rendered, nil
	case map[string]any:
		out := make(map[string]any, len(v))

		for key, item := range v {
			resolvedItem, err := resolve(item, templateData, join(path, key))
			if err != nil {
				return nil, err
			}

			out[key] = resolvedItem
		}

		return out, nil
	case []any:
		out := make([]any, len(v))

		for i, item := range v {
			resolvedItem, err := resolve(item, templateData, join(path, strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}

			out[i] = resolvedItem
		}

		return out, nil
	default:
		return v, nil
	}
}

func join(path, key string) string {
	if path == "" {
		return key
	}

	return path + "." + key
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/goccy/go-json"
)

var errFlowPathRequired = errors.New("flow file path is required")

func loadFlow(path string) (*models.Flow, error) {
	if path == "" {
		return nil, errFlowPathRequired
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow: %w", err)
	}

	var flow models.Flow

	err = json.Unmarshal(data, &flow)
	if err != nil {
		return nil, fmt.Errorf("failed to parse flow %s: %w", path, err)
	}

	return &flow, nil
}

// parseInput accepts an inline JSON object or @path to a JSON file.
func parseInput(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	data := []byte(raw)

	if path, ok := strings.CutPrefix(raw, "@"); ok {
		var err error

		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
	}

	input := map[string]any{}

	err := json.Unmarshal(data, &input)
	if err != nil {
		return nil, fmt.Errorf("input must be a JSON object: %w", err)
	}

	return input, nil
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Weather returns canned conditions for a location. A stand-in until a real
// provider is wired; the tool shape is what matters to the agent loop.
type Weather struct{}

func NewWeather() *Weather { return &Weather{} }

func (Weather) Name() string { return "weather" }
func (Weather) Description() string {
	return "Get weather information for a location"
}

func (Weather) InputSchema() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"location": map[string]any{
				"type":        "string",
				"description": "City or place name",
			},
		},
		"required":             []string{"location"},
		"additionalProperties": false,
	}
}

func (Weather) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing weather input: %w", err)
	}
	if args.Location == "" {
		return "", fmt.Errorf("location is required")
	}
	return fmt.Sprintf("Weather in %s: Sunny, 22°C (mock data)", args.Location), nil
}

// Package tool defines the callable tools the model can invoke mid
// conversation and the registry that dispatches them.
package tool

import "encoding/json"

// Tool represents a tool that can be called by the model
type Tool interface {
	Name() string
	Description() string
	Parameters() ParameterSchema
	Execute(params map[string]any) (*Result, error)
}

// ParameterSchema defines the parameters a tool accepts
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// PropertySchema defines a single parameter
type PropertySchema struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// Result represents the result of a tool execution
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ToOpenAIFunction converts a tool to OpenAI function calling format
func ToOpenAIFunction(t Tool) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters":  t.Parameters(),
		},
	}
}

// ToJSON converts a result to the JSON payload fed back to the model.
// Failures collapse to the flat {"error": reason} shape the model is
// prompted to narrate around.
func ToJSON(r *Result) (string, error) {
	if !r.Success {
		data, err := json.Marshal(map[string]string{"error": r.Error})
		return string(data), err
	}
	data, err := json.Marshal(r.Data)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

package llms

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// ParameterBase describes a single tool parameter in the subset of JSON
// schema that model providers accept.
type ParameterBase struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Tool is a function the model may call during a turn.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`

	execute func(arguments string) (string, error)
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

type ToolParameters struct {
	Type       string                   `json:"type"`
	Properties map[string]ParameterBase `json:"properties"`
	Required   []string                 `json:"required,omitempty"`
}

// NewTool creates a tool from a parameter description and a typed execute
// function. Arguments are unmarshalled into the execute function's parameter
// struct before invocation, so the struct's json tags must match the
// parameter names.
func NewTool[T any](name, description string, parameters map[string]ParameterBase, execute func(parameters T) (string, error)) Tool {
	required := make([]string, 0, len(parameters))
	for name := range parameters {
		required = append(required, name)
	}

	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters: ToolParameters{
				Type:       "object",
				Properties: parameters,
				Required:   required,
			},
		},
		execute: func(arguments string) (string, error) {
			var typedParameters T
			if err := json.Unmarshal([]byte(arguments), &typedParameters); err != nil {
				return "", fmt.Errorf("failed to unmarshal tool arguments: %w", err)
			}
			return execute(typedParameters)
		},
	}
}

// Execute runs the tool with raw JSON arguments as received from the model.
func (t Tool) Execute(arguments string) (string, error) {
	if t.execute == nil {
		return "", fmt.Errorf("tool %q has no execute function", t.Function.Name)
	}
	return t.execute(arguments)
}

// SchemaFor reflects a JSON schema from a value, used for structured output
// prompts. Pointer types are dereferenced before reflection.
func SchemaFor(v any) (*jsonschema.Schema, string) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	if reflect.TypeOf(v).Kind() == reflect.Ptr {
		return reflector.ReflectFromType(reflect.TypeOf(v).Elem()), reflect.TypeOf(v).Elem().Name()
	}
	return reflector.Reflect(v), reflect.TypeOf(v).Name()
}

package tools

import (
	"context"

	"google.golang.org/genai"

	"geminilab/pkg/errors"
)

// Tool represents a function the model can call.
type Tool interface {
	// Name returns the unique function name the model calls.
	Name() string
	// Description returns the summary sent in the function declaration.
	Description() string
	// Parameters returns the argument schema, nil for no arguments.
	Parameters() *genai.Schema
	// Execute performs the tool's action using the provided arguments.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// HandlerFunc is the function signature for tool handlers.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// FunctionTool is a simple Tool implementation backed by a handler function.
type FunctionTool struct {
	name        string
	description string
	parameters  *genai.Schema
	handler     HandlerFunc
}

// New creates a new function-backed Tool.
func New(name, description string, parameters *genai.Schema, handler HandlerFunc) Tool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		handler:     handler,
	}
}

// Name returns the tool identifier.
func (t *FunctionTool) Name() string { return t.name }

// Description returns a human description of the tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the argument schema.
func (t *FunctionTool) Parameters() *genai.Schema { return t.parameters }

// Execute runs the underlying handler.
func (t *FunctionTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	if t.handler == nil {
		return nil, errors.New("tool handler is not defined")
	}

	return t.handler(ctx, args)
}

// Declaration converts a tool into the function declaration sent to Gemini
func Declaration(t Tool) *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

// ObjectSchema builds an OBJECT schema from string properties
func ObjectSchema(properties map[string]*genai.Schema, required ...string) *genai.Schema {
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   required,
	}
}

// StringProperty is a STRING schema with a description
func StringProperty(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

// NumberProperty is a NUMBER schema with a description
func NumberProperty(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeNumber, Description: description}
}

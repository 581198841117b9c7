package llm

import (
	"time"

	"google.golang.org/genai"
)

// ToolFunc executes a function call and returns its JSON-able result.
type ToolFunc func(args map[string]any) map[string]any

// Tool is one function exposed to the model.
type Tool struct {
	Declaration *genai.FunctionDeclaration
	Fn          ToolFunc
}

// Toolbox holds the tools offered to the model, in declaration order.
type Toolbox struct {
	order []string
	tools map[string]Tool
}

// NewToolbox creates an empty toolbox.
func NewToolbox() *Toolbox {
	return &Toolbox{tools: make(map[string]Tool)}
}

// Register adds a tool; a later registration with the same name replaces it.
func (b *Toolbox) Register(t Tool) {
	name := t.Declaration.Name
	if _, ok := b.tools[name]; !ok {
		b.order = append(b.order, name)
	}
	b.tools[name] = t
}

// Declarations returns the function declarations for the request config.
func (b *Toolbox) Declarations() []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(b.order))
	for _, name := range b.order {
		decls = append(decls, b.tools[name].Declaration)
	}
	return decls
}

// Call runs the named tool. Unknown tools yield an error payload so the
// model can recover.
func (b *Toolbox) Call(name string, args map[string]any) map[string]any {
	t, ok := b.tools[name]
	if !ok {
		return map[string]any{"error": "unknown function " + name}
	}
	return t.Fn(args)
}

// now is swapped in tests.
var now = time.Now

// DefaultToolbox returns the built-in tools.
func DefaultToolbox() *Toolbox {
	b := NewToolbox()
	b.Register(Tool{
		Declaration: &genai.FunctionDeclaration{
			Name:        "get_time",
			Description: "Return the current date and time in UTC.",
		},
		Fn: func(map[string]any) map[string]any {
			return map[string]any{
				"result": "Current time UTC: " + now().UTC().Format("2006-01-02 15:04:05"),
			}
		},
	})
	return b
}

package middleware

import "geminilab/internal/tools"

// Middleware decorates a tool
type Middleware interface {
	Wrap(t tools.Tool) tools.Tool
}

// Func adapts a plain function to Middleware
type Func func(t tools.Tool) tools.Tool

// Wrap calls f
func (f Func) Wrap(t tools.Tool) tools.Tool { return f(t) }

// Chain applies middleware in order, so the first one is innermost
func Chain(t tools.Tool, m ...Middleware) tools.Tool {
	for _, mw := range m {
		if mw == nil {
			continue
		}
		t = mw.Wrap(t)
	}
	return t
}

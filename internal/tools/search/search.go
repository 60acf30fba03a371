// Package search wraps Gemini's built-in Google Search grounding.
package search

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const outputPreview = 200

// GoogleSearchTool is the built-in search tool. It needs no function
// declaration: the model invokes it on its own.
func GoogleSearchTool() *genai.Tool {
	return &genai.Tool{GoogleSearch: &genai.GoogleSearch{}}
}

// ExecutedCode is code the model ran while searching
type ExecutedCode struct {
	Language string
	Code     string
}

// ExecutionResult is the outcome of ExecutedCode
type ExecutionResult struct {
	Outcome string
	Output  string
}

// Results summarizes search activity in a model turn
type Results struct {
	SearchPerformed bool
	Queries         []string
	CodeExecuted    []ExecutedCode
	Outputs         []ExecutionResult
}

// ParseResults collects executable code and execution results from parts
func ParseResults(parts []*genai.Part) Results {
	var r Results
	for _, part := range parts {
		if part == nil {
			continue
		}
		if part.ExecutableCode != nil {
			r.SearchPerformed = true
			r.CodeExecuted = append(r.CodeExecuted, ExecutedCode{
				Language: string(part.ExecutableCode.Language),
				Code:     part.ExecutableCode.Code,
			})
		}
		if part.CodeExecutionResult != nil {
			r.Outputs = append(r.Outputs, ExecutionResult{
				Outcome: string(part.CodeExecutionResult.Outcome),
				Output:  part.CodeExecutionResult.Output,
			})
		}
	}
	return r
}

// ParseMessage parses a Live server message, including grounding queries
func ParseMessage(msg *genai.LiveServerMessage) Results {
	if msg == nil || msg.ServerContent == nil {
		return Results{}
	}

	content := msg.ServerContent
	var r Results
	if content.ModelTurn != nil {
		r = ParseResults(content.ModelTurn.Parts)
	}
	if gm := content.GroundingMetadata; gm != nil && len(gm.WebSearchQueries) > 0 {
		r.SearchPerformed = true
		r.Queries = append(r.Queries, gm.WebSearchQueries...)
	}
	return r
}

// FormatSummary renders Results for display
func FormatSummary(r Results) string {
	if !r.SearchPerformed {
		return "No search performed"
	}

	var b strings.Builder
	b.WriteString("🔍 Google Search Results:\n\n")

	for i, q := range r.Queries {
		fmt.Fprintf(&b, "Search %d: %s\n", i+1, q)
	}
	if len(r.Queries) > 0 {
		b.WriteString("\n")
	}

	for i, code := range r.CodeExecuted {
		fmt.Fprintf(&b, "Query %d:\n%s\n\n", i+1, code.Code)
	}

	for i, res := range r.Outputs {
		output := res.Output
		if len(output) > outputPreview {
			output = output[:outputPreview]
		}
		fmt.Fprintf(&b, "Result %d:\n", i+1)
		fmt.Fprintf(&b, "Status: %s\n", res.Outcome)
		fmt.Fprintf(&b, "Output: %s...\n\n", output)
	}

	return b.String()
}

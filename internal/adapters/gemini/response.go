package gemini

import (
	"strings"

	"google.golang.org/genai"
)

// Usage is the token accounting of one response
type Usage struct {
	PromptTokens   int32
	OutputTokens   int32
	ThoughtsTokens int32
	TotalTokens    int32
}

func firstContent(resp *genai.GenerateContentResponse) *genai.Content {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	return resp.Candidates[0].Content
}

// TextOf concatenates the non-thought text parts of the first candidate.
// Unlike resp.Text it does not log about non-text parts.
func TextOf(resp *genai.GenerateContentResponse) string {
	content := firstContent(resp)
	if content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// ThoughtsAndAnswer splits the first candidate's text into the thought
// summary and the final answer
func ThoughtsAndAnswer(resp *genai.GenerateContentResponse) (thoughts, answer string) {
	content := firstContent(resp)
	if content == nil {
		return "", ""
	}

	var t, a strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		if part.Thought {
			t.WriteString(part.Text)
		} else {
			a.WriteString(part.Text)
		}
	}
	return t.String(), a.String()
}

// FunctionCalls returns the function calls of the first candidate
func FunctionCalls(resp *genai.GenerateContentResponse) []*genai.FunctionCall {
	content := firstContent(resp)
	if content == nil {
		return nil
	}

	var calls []*genai.FunctionCall
	for _, part := range content.Parts {
		if part != nil && part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
		}
	}
	return calls
}

// InlineData returns the first inline blob of the first candidate
func InlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	content := firstContent(resp)
	if content == nil {
		return nil
	}
	for _, part := range content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData
		}
	}
	return nil
}

// InlineAudio concatenates the inline data of a Live message's model turn
func InlineAudio(msg *genai.LiveServerMessage) []byte {
	if msg == nil || msg.ServerContent == nil || msg.ServerContent.ModelTurn == nil {
		return nil
	}

	var out []byte
	for _, part := range msg.ServerContent.ModelTurn.Parts {
		if part != nil && part.InlineData != nil {
			out = append(out, part.InlineData.Data...)
		}
	}
	return out
}

// LiveText returns the text parts of a Live message's model turn
func LiveText(msg *genai.LiveServerMessage) []string {
	if msg == nil || msg.ServerContent == nil || msg.ServerContent.ModelTurn == nil {
		return nil
	}

	var out []string
	for _, part := range msg.ServerContent.ModelTurn.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			out = append(out, part.Text)
		}
	}
	return out
}

// UsageOf extracts usage metadata; a response without it yields zero usage
func UsageOf(resp *genai.GenerateContentResponse) Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return Usage{}
	}
	m := resp.UsageMetadata
	return Usage{
		PromptTokens:   m.PromptTokenCount,
		OutputTokens:   m.CandidatesTokenCount,
		ThoughtsTokens: m.ThoughtsTokenCount,
		TotalTokens:    m.TotalTokenCount,
	}
}

// LiveUsageOf extracts usage metadata from a Live server message
func LiveUsageOf(msg *genai.LiveServerMessage) Usage {
	if msg == nil || msg.UsageMetadata == nil {
		return Usage{}
	}
	m := msg.UsageMetadata
	return Usage{
		PromptTokens:   m.PromptTokenCount,
		OutputTokens:   m.ResponseTokenCount,
		ThoughtsTokens: m.ThoughtsTokenCount,
		TotalTokens:    m.TotalTokenCount,
	}
}

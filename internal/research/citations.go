package research

import (
	"slices"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"geminilab/internal/adapters/gemini"
)

// AddCitations inserts markdown links after each grounded segment.
// Segment end indices are byte offsets into the answer text.
func AddCitations(resp *genai.GenerateContentResponse) string {
	text := gemini.TextOf(resp)
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return text
	}

	meta := resp.Candidates[0].GroundingMetadata
	supports, chunks := meta.GroundingSupports, meta.GroundingChunks
	if len(supports) == 0 || len(chunks) == 0 {
		return text
	}

	// insert from the end so earlier offsets stay valid
	sorted := slices.Clone(supports)
	slices.SortStableFunc(sorted, func(a, b *genai.GroundingSupport) int {
		return int(endIndex(b)) - int(endIndex(a))
	})

	for _, support := range sorted {
		if support == nil || support.Segment == nil || len(support.GroundingChunkIndices) == 0 {
			continue
		}

		var links []string
		for _, i := range support.GroundingChunkIndices {
			if i < 0 || int(i) >= len(chunks) || chunks[i] == nil || chunks[i].Web == nil {
				continue
			}
			links = append(links, "["+strconv.Itoa(int(i)+1)+"]("+chunks[i].Web.URI+")")
		}
		if len(links) == 0 {
			continue
		}

		end := min(max(int(support.Segment.EndIndex), 0), len(text))
		text = text[:end] + " " + strings.Join(links, " ") + text[end:]
	}
	return text
}

func endIndex(s *genai.GroundingSupport) int32 {
	if s == nil || s.Segment == nil {
		return -1
	}
	return s.Segment.EndIndex
}

package rag

import (
	"strings"

	"assistant/types"
)

// NoContextSentinel replaces the context when nothing was retrieved. It is
// only ever seen by the model.
const NoContextSentinel = "No relevant context was found in the documents."

// FormatContext concatenates chunk texts in retrieval order, unchanged and
// without separators.
func FormatContext(retrieved []types.RetrievedChunk) string {
	if len(retrieved) == 0 {
		return NoContextSentinel
	}
	var sb strings.Builder
	for _, r := range retrieved {
		sb.WriteString(r.Content)
	}
	return sb.String()
}

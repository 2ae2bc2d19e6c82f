package rag

import (
	"context"
	"strings"
	"unicode/utf8"

	"assistant/types"
)

const (
	previewLength = 150
	unknownSource = "Unknown Source"
	MsgNoSnippets = "No relevant context snippets were found to generate a draft answer."
)

type Preview struct {
	Chunks      []types.RetrievedChunkInfo
	DraftAnswer string
}

// Preview retrieves chunks for question and drafts a single-shot answer
// without history. Only an empty question is returned as an error; every
// later failure is reported inside DraftAnswer with the error prefix.
func (o *Orchestrator) Preview(ctx context.Context, question string) (Preview, error) {
	if strings.TrimSpace(question) == "" {
		return Preview{}, newError(KindValidation, StateStart, MsgEmptyQuestion, nil)
	}

	out := Preview{Chunks: []types.RetrievedChunkInfo{}}
	if !o.credentialsReady() {
		o.logger.Error("preview without LLM API key")
		out.DraftAnswer = ErrorPrefix + MsgMissingKey
		return out, nil
	}

	vector, err := o.embedQuestion(ctx, question)
	if err != nil {
		o.logger.Error("preview embedding failed", "error", err)
		out.DraftAnswer = ErrorPrefix + MsgRetrievalFailed
		return out, nil
	}
	retrieved, err := o.res.Store.Query(ctx, vector, o.settings.NumResults)
	if err != nil {
		o.logger.Error("preview query failed", "error", err)
		out.DraftAnswer = ErrorPrefix + MsgRetrievalFailed
		return out, nil
	}

	for _, r := range retrieved {
		out.Chunks = append(out.Chunks, chunkInfo(r))
	}
	// an empty retrieval still drafts against the no-context sentinel
	contextText := FormatContext(retrieved)
	if strings.TrimSpace(contextText) == "" {
		out.DraftAnswer = MsgNoSnippets
		return out, nil
	}

	messages := BuildPreviewMessages(o.persona(ctx), contextText, question)
	answer, err := o.res.LLM.Invoke(ctx, messages, o.settings.Model, o.settings.Temperature)
	if err != nil || strings.TrimSpace(answer) == "" {
		o.logger.Error("preview generation failed", "error", err)
		out.DraftAnswer = ErrorPrefix + MsgPreviewLLM
		return out, nil
	}
	out.DraftAnswer = answer
	return out, nil
}

func chunkInfo(r types.RetrievedChunk) types.RetrievedChunkInfo {
	source := r.Source
	if source == "" {
		source = unknownSource
	}
	return types.RetrievedChunkInfo{
		Source:         source,
		ContentPreview: previewText(r.Content),
		FullContent:    r.Content,
		Distance:       r.Distance,
	}
}

func previewText(s string) string {
	if utf8.RuneCountInString(s) <= previewLength {
		return s
	}
	return string([]rune(s)[:previewLength]) + "..."
}

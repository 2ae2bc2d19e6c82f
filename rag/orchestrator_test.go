package rag

import (
	"context"
	"testing"

	"assistant/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRejectsEmptyQuestion(t *testing.T) {
	f := newFixture(t)

	for _, q := range []string{"", "   "} {
		_, err := f.orchestrator().Chat(context.Background(), q, nil)
		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))
	}
	assert.Zero(t, f.embedder.Calls())
}

func TestChatMissingKeyStopsBeforeRetrieval(t *testing.T) {
	f := newFixture(t)
	f.settings.APIKey = ""

	_, err := f.orchestrator().Chat(context.Background(), "hello?", nil)
	require.Error(t, err)
	assert.Equal(t, KindConfig, KindOf(err))
	assert.Zero(t, f.embedder.Calls())
}

func TestChatWithoutKeyRequirement(t *testing.T) {
	f := newFixture(t)
	f.settings.APIKey = ""
	f.settings.RequireAPIKey = false
	f.llm.answer = "ok"

	answer, err := f.orchestrator().Chat(context.Background(), "hello?", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
}

func TestChatWalksEveryState(t *testing.T) {
	f := newFixture(t)
	f.llm.answer = "fine"

	var seen []State
	o := f.orchestrator(WithObserver(func(from, to State) {
		if len(seen) == 0 {
			seen = append(seen, from)
		}
		seen = append(seen, to)
	}))

	_, err := o.Chat(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, []State{
		StateStart, StateEmbeddingQuery, StateRetrieving, StateFormatting,
		StatePrompting, StateGenerating, StateDone,
	}, seen)
}

func TestChatRoundTripRetrieval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	n, err := f.indexer().Ingest(ctx, "doc.txt", "The capital of France is Paris.")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	f.llm.answer = "Paris."
	_, err = f.orchestrator().Chat(ctx, "What is the capital of France?", nil)
	require.NoError(t, err)

	received := f.llm.Received()
	require.NotEmpty(t, received)
	assert.Equal(t, types.RoleSystem, received[0].Role)
	assert.Contains(t, received[0].Content, "Paris")
	assert.NotContains(t, received[0].Content, NoContextSentinel)
}

func TestChatEndToEndEchoesContext(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.indexer().Ingest(ctx, "about.txt", "Company X was founded in 2020.")
	require.NoError(t, err)

	answer, err := f.orchestrator().Chat(ctx, "When was Company X founded?", nil)
	require.NoError(t, err)
	assert.Contains(t, answer, "2020")
}

func TestChatEmptyStoreUsesSentinel(t *testing.T) {
	f := newFixture(t)

	answer, err := f.orchestrator().Chat(context.Background(), "Is anyone there?", nil)
	require.NoError(t, err)
	assert.Contains(t, answer, NoContextSentinel)
}

func TestChatRetrievalFailures(t *testing.T) {
	t.Run("embedding", func(t *testing.T) {
		f := newFixture(t)
		f.embedder.err = errBoom

		var last State
		o := f.orchestrator(WithObserver(func(from, to State) {
			if to == StateError {
				last = from
			}
		}))
		_, err := o.Chat(context.Background(), "question", nil)
		require.Error(t, err)
		assert.Equal(t, KindRetrieval, KindOf(err))
		assert.Equal(t, StateEmbeddingQuery, last)
		assert.Equal(t, ErrorPrefix+MsgRetrievalFailed, err.Error())
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("store", func(t *testing.T) {
		f := newFixture(t)
		f.res.Store = &failingStore{VectorStorer: f.store, queryErr: errBoom}

		_, err := f.orchestrator().Chat(context.Background(), "question", nil)
		require.Error(t, err)
		assert.Equal(t, KindRetrieval, KindOf(err))
		assert.NotContains(t, err.Error(), "secret-host")
		assert.Nil(t, f.llm.Received())
	})
}

func TestChatGenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.llm.err = errBoom

	answer, err := f.orchestrator().Chat(context.Background(), "question", nil)
	require.Error(t, err)
	assert.Empty(t, answer)
	assert.Equal(t, KindGeneration, KindOf(err))
	assert.Equal(t, ErrorPrefix+MsgGenerateFailed, err.Error())
}

func TestChatBlankAnswerIsGenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.llm.answer = "  "

	_, err := f.orchestrator().Chat(context.Background(), "question", nil)
	// the stub treats "  " as a set answer
	require.Error(t, err)
	assert.Equal(t, KindGeneration, KindOf(err))
}

func TestChatReplaysHistory(t *testing.T) {
	f := newFixture(t)
	f.llm.answer = "sure"

	history := []types.ChatMessage{
		{Role: types.RoleUser, Content: "hi"},
		{Role: "tool", Content: "ignored"},
		{Role: types.RoleAssistant, Content: "hello!"},
	}
	_, err := f.orchestrator().Chat(context.Background(), "and now?", history)
	require.NoError(t, err)

	received := f.llm.Received()
	require.Len(t, received, 4)
	assert.Equal(t, types.ChatMessage{Role: types.RoleUser, Content: "hi"}, received[1])
	assert.Equal(t, types.ChatMessage{Role: types.RoleAssistant, Content: "hello!"}, received[2])
	assert.Equal(t, types.ChatMessage{Role: types.RoleUser, Content: "and now?"}, received[3])
}

func TestChatNormalizesHistoryRoles(t *testing.T) {
	f := newFixture(t)
	f.llm.answer = "sure"

	history := []types.ChatMessage{
		{Role: "User", Content: "hi"},
		{Role: "ASSISTANT", Content: "hello!"},
		{Role: "System", Content: "ignored"},
	}
	_, err := f.orchestrator().Chat(context.Background(), "and now?", history)
	require.NoError(t, err)

	received := f.llm.Received()
	require.Len(t, received, 4)
	assert.Equal(t, types.ChatMessage{Role: types.RoleUser, Content: "hi"}, received[1])
	assert.Equal(t, types.ChatMessage{Role: types.RoleAssistant, Content: "hello!"}, received[2])
	assert.Equal(t, types.ChatMessage{Role: types.RoleUser, Content: "and now?"}, received[3])
}

func TestChatUsesCurrentPersona(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.res.Personas.SetPersona(ctx, types.Persona{
		AIName: "Sari", AIRole: "Sales AI", AITone: "calm", Company: "Toko Maju",
	}))

	answer, err := f.orchestrator().Chat(ctx, "who are you?", nil)
	require.NoError(t, err)
	assert.Contains(t, answer, "'Sari'")
	assert.Contains(t, answer, "Toko Maju")
}

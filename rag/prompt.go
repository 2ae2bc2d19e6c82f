package rag

import (
	"log/slog"
	"strings"

	"assistant/types"
)

const (
	FallbackIndonesian = "Maaf, saya belum bisa menjawab pertanyaan tersebut."
	FallbackEnglish    = "Sorry, I cannot answer that question right now."
)

const systemTemplate = `You are '{ai_name}', a {ai_role} with a '{ai_tone}' persona, speaking on behalf of {company}.
You help users by answering their questions strictly from the Retrieved Context below and the ongoing conversation.

Rules, in order of importance:
1. Language: detect the language of the user's current question (Indonesian or English) and reply only in that language. The language of the Retrieved Context never decides the reply language. Do not translate or mix languages.
2. Stay in character as '{ai_name}'. Let your {ai_tone} traits show in how you speak, but never describe those traits when introducing yourself.
3. Answer only with information found in the Retrieved Context or the conversation so far. Do not use outside knowledge or make assumptions.
4. Treat the Retrieved Context as the authoritative source for facts about {company}.
5. Use the previous user and assistant messages to understand follow-up questions.
6. Never mention internal terms such as "context", "retrieved context", "conversation history", "documents" or "chunks".
7. If asked who you are ("Siapa anda?", "Who are you?"), simply introduce yourself as '{ai_name}' from {company}.
8. Greetings, thanks and goodbyes get a natural short reply, not the fallback sentence.
9. Write clearly. Use bullet points (*) for lists when it helps readability.
10. If the answer cannot be found in the Retrieved Context or the conversation, reply with exactly one sentence and nothing else:
    * for an Indonesian question: "` + FallbackIndonesian + `"
    * for an English question: "` + FallbackEnglish + `"

---
Retrieved Context:
{context}
---
`

// SystemPrompt renders the system instruction for persona and context.
func SystemPrompt(p types.Persona, context string) string {
	r := strings.NewReplacer(
		"{ai_name}", p.AIName,
		"{ai_role}", p.AIRole,
		"{ai_tone}", p.AITone,
		"{company}", p.Company,
		"{context}", context,
	)
	return r.Replace(systemTemplate)
}

// BuildMessages assembles system instruction, replayed history and the
// current question. Roles are matched case-insensitively and normalized;
// history entries with unknown roles are dropped.
func BuildMessages(p types.Persona, context, question string, history []types.ChatMessage, logger *slog.Logger) []types.ChatMessage {
	messages := make([]types.ChatMessage, 0, len(history)+2)
	messages = append(messages, types.ChatMessage{Role: types.RoleSystem, Content: SystemPrompt(p, context)})

	for i, m := range history {
		switch role := strings.ToLower(strings.TrimSpace(m.Role)); role {
		case types.RoleUser, types.RoleAssistant:
			messages = append(messages, types.ChatMessage{Role: role, Content: m.Content})
		default:
			if logger != nil {
				logger.Warn("dropping history message with unknown role", "index", i, "role", m.Role)
			}
		}
	}

	return append(messages, types.ChatMessage{Role: types.RoleUser, Content: question})
}

// BuildPreviewMessages is the single-shot variant used by the admin
// preview: no history, and the question is labelled.
func BuildPreviewMessages(p types.Persona, context, question string) []types.ChatMessage {
	return []types.ChatMessage{
		{Role: types.RoleSystem, Content: SystemPrompt(p, context)},
		{Role: types.RoleUser, Content: "Question: " + question},
	}
}

package rag

import (
	"context"

	"ragctl/rag/interfaces"
	"ragctl/rag/types"
)

// DefaultTopK is the number of matches returned by a similarity search.
const DefaultTopK = 10

// Session is the append-only conversation memory for conversational
// queries. It lives for a single process run; there is no persistence
// across invocations.
type Session struct {
	turns []types.Turn
}

func NewSession() *Session {
	return &Session{}
}

// Turns returns the recorded exchanges in order.
func (s *Session) Turns() []types.Turn {
	return s.turns
}

// Append records one question/answer exchange.
func (s *Session) Append(question, answer string) {
	s.turns = append(s.turns, types.Turn{Question: question, Answer: answer})
}

// QueryEngine answers natural-language queries against the collection,
// either as raw similarity search or as a retrieval-augmented
// conversation.
type QueryEngine struct {
	store    interfaces.Store
	embedder interfaces.Embedder
	chat     interfaces.ChatModel
	topK     int
}

func NewQueryEngine(store interfaces.Store, embedder interfaces.Embedder, chat interfaces.ChatModel) *QueryEngine {
	return &QueryEngine{store: store, embedder: embedder, chat: chat, topK: DefaultTopK}
}

// SimilaritySearch embeds the query with the same adapter used at insert
// time and returns the top-K matches. An empty or absent collection yields
// an empty result, not an error.
func (q *QueryEngine) SimilaritySearch(ctx context.Context, query string) ([]types.Match, error) {
	embeddings, err := q.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	return q.store.Search(ctx, embeddings[0], q.topK)
}

// ConversationalQuery retrieves context for the current question only,
// passes prior session turns to the chat model as history, appends the new
// exchange to the session and returns the answer. Model failures propagate
// untouched; retries belong to the model client, not this layer.
func (q *QueryEngine) ConversationalQuery(ctx context.Context, session *Session, question string) (string, error) {
	matches, err := q.SimilaritySearch(ctx, question)
	if err != nil {
		return "", err
	}

	contextTexts := make([]string, len(matches))
	for i, m := range matches {
		contextTexts[i] = m.Text
	}

	answer, err := q.chat.Answer(ctx, question, contextTexts, session.Turns())
	if err != nil {
		return "", err
	}

	session.Append(question, answer)
	return answer, nil
}

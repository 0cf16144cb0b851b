package interfaces

import (
	"context"

	"ragctl/rag/types"
)

// Store is the contract every vector database backend implements.
//
// A collection is created implicitly by the first Insert, which fixes its
// dimensionality from the first batch of embeddings. Mixing embedding
// models across inserts without an intervening Drop is undefined behavior
// and is the caller's responsibility to avoid.
type Store interface {
	// Exists reports whether the collection is present in the database.
	Exists(ctx context.Context) (bool, error)

	// Insert stores a batch of embedded chunks, creating the collection if
	// absent. Returns the number of chunks stored. Never deduplicates.
	Insert(ctx context.Context, chunks []types.Chunk) (int, error)

	// SourceKeys returns the primary keys of every entry whose source
	// matches the given path string exactly. An absent collection or an
	// unknown source yields an empty result, not an error.
	SourceKeys(ctx context.Context, source string) ([]string, error)

	// DeleteKey removes a single entry by primary key.
	DeleteKey(ctx context.Context, pk string) error

	// Search returns the topK entries most similar to the given embedding.
	// An absent or empty collection yields an empty result, not an error.
	Search(ctx context.Context, embedding []float32, topK int) ([]types.Match, error)

	// Drop removes the whole collection. Dropping an absent collection is
	// a no-op.
	Drop(ctx context.Context) error

	// Count returns the number of entries in the collection.
	Count(ctx context.Context) (int64, error)

	// Collections lists every collection known to the database.
	Collections(ctx context.Context) ([]string, error)

	Close()
}

// Embedder maps text to fixed-length vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatModel synthesizes an answer from a question, retrieved context and
// prior conversation turns.
type ChatModel interface {
	Answer(ctx context.Context, question string, contextTexts []string, history []types.Turn) (string, error)
}

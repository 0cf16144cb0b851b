package types

// Chunk is one embedded slice of a source document, ready for storage.
type Chunk struct {
	Text   string
	Source string

	// StartIndex is the character offset of the chunk within its source.
	StartIndex int

	Embedding []float32
}

// Match is a single similarity-search hit.
type Match struct {
	Text       string
	Source     string
	StartIndex int

	// Score is the runtime similarity between the query and the chunk.
	// The higher the value, the more similar the chunk is to the query.
	Score float32
}

// Turn is one question/answer exchange in a conversational session.
type Turn struct {
	Question string
	Answer   string
}

// Package rag orchestrates the document lifecycle around a vector index:
// chunking, embedding, insert/update/delete/drop/load sequencing, and
// query answering.
package rag

import (
	"context"
	"fmt"

	"github.com/mudler/xlog"

	"ragctl/pkg/chunk"
	"ragctl/rag/interfaces"
	"ragctl/rag/types"
)

// Manager owns every mutating operation against the vector store and the
// consistency model between source files and indexed chunks. The
// provenance key is the exact source path string: no normalization, no
// content hash. Update semantics are synthesized client-side from
// delete-then-insert and are not atomic; see DESIGN.md.
//
// No locking is taken around multi-step operations. Concurrent invocations
// against the same collection can interleave arbitrarily.
type Manager struct {
	store    interfaces.Store
	embedder interfaces.Embedder
	loader   *chunk.Loader
}

func NewManager(store interfaces.Store, embedder interfaces.Embedder, loader *chunk.Loader) *Manager {
	return &Manager{store: store, embedder: embedder, loader: loader}
}

// EnsureCollection reports whether the collection exists. It never creates
// one: creation is deferred to the first insert, which fixes the schema
// from the first embedding batch.
func (m *Manager) EnsureCollection(ctx context.Context) error {
	exists, err := m.store.Exists(ctx)
	if err != nil {
		return err
	}

	if exists {
		xlog.Info("Collection already exists")
	} else {
		xlog.Info("Collection does not exist; it will be created during the first insert")
	}
	return nil
}

// Insert chunks, embeds and stores the file or directory at filePath and
// returns the number of chunks inserted. Inserting the same file twice
// produces duplicate entries; callers needing idempotence must use Update.
func (m *Manager) Insert(ctx context.Context, filePath string) (int, error) {
	xlog.Info("Inserting documents", "path", filePath)

	docs, err := m.loader.Load(filePath)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		xlog.Warn("No content found", "path", filePath)
		return 0, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	embeddings, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(embeddings) != len(docs) {
		return 0, fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(embeddings), len(docs))
	}

	chunks := make([]types.Chunk, len(docs))
	for i, d := range docs {
		chunks[i] = types.Chunk{
			Text:       d.Text,
			Source:     d.Source,
			StartIndex: d.StartIndex,
			Embedding:  embeddings[i],
		}
	}

	n, err := m.store.Insert(ctx, chunks)
	if err != nil {
		return 0, err
	}

	xlog.Info("Inserted document chunks", "count", n)
	return n, nil
}

// Delete removes every entry whose source matches filePath exactly, one
// deletion call per entry, and returns the number deleted. An unknown
// source yields zero and no error. Deletion is not transactional: a
// failure mid-loop leaves the already-deleted entries gone and returns the
// partial count alongside the error.
func (m *Manager) Delete(ctx context.Context, filePath string) (int, error) {
	keys, err := m.store.SourceKeys(ctx, filePath)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		xlog.Info("No documents found for file", "path", filePath)
		return 0, nil
	}

	deleted := 0
	for _, pk := range keys {
		if err := m.store.DeleteKey(ctx, pk); err != nil {
			return deleted, fmt.Errorf("deleted %d of %d entries: %w", deleted, len(keys), err)
		}
		deleted++
		xlog.Info("Deleted entry", "pk", pk)
	}

	xlog.Info("Deleted documents", "count", deleted, "path", filePath)
	return deleted, nil
}

// Update replaces the indexed entries for filePath: a provenance lookup,
// a delete when entries exist, then always a fresh insert. The sequence is
// not atomic; a crash between the delete and the insert leaves the
// collection with no entries for the file.
func (m *Manager) Update(ctx context.Context, filePath string) (int, error) {
	xlog.Info("Updating documents", "path", filePath)

	keys, err := m.store.SourceKeys(ctx, filePath)
	if err != nil {
		return 0, err
	}
	if len(keys) > 0 {
		if _, err := m.Delete(ctx, filePath); err != nil {
			return 0, err
		}
	}

	return m.Insert(ctx, filePath)
}

// Drop removes the whole collection. Dropping an absent collection is a
// logged no-op.
func (m *Manager) Drop(ctx context.Context) error {
	exists, err := m.store.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		xlog.Info("Collection does not exist")
		return nil
	}

	return m.store.Drop(ctx)
}

// Load drops the collection unconditionally, then inserts filePath into
// the fresh one. Because the drop completes before the insert begins, this
// is the only operation that resets the inferred schema, and the only safe
// path after changing the embedding model.
func (m *Manager) Load(ctx context.Context, filePath string) (int, error) {
	if err := m.Drop(ctx); err != nil {
		return 0, err
	}

	xlog.Info("Loading documents into fresh collection", "path", filePath)
	return m.Insert(ctx, filePath)
}

// Stats returns the collection row count.
func (m *Manager) Stats(ctx context.Context) (int64, error) {
	return m.store.Count(ctx)
}

// Collections lists every collection known to the store.
func (m *Manager) Collections(ctx context.Context) ([]string, error) {
	return m.store.Collections(ctx)
}

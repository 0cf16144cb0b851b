package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/mudler/xlog"
	"github.com/philippgille/chromem-go"

	"ragctl/rag/types"
)

const manifestPrefix = "collection-"

// ChromemStore is the embedded vector store backend, persisted on local
// disk. Because chromem has no metadata scan, a JSON manifest next to the
// database maps each source path to the primary keys inserted for it.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	path       string

	manifest map[string][]string
}

// NewChromemStore opens (or creates) the persistent database at path and
// binds the collection if it already exists.
func NewChromemStore(name, path string) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, true)
	if err != nil {
		return nil, fmt.Errorf("opening embedded store: %w", err)
	}

	s := &ChromemStore{
		db:       db,
		name:     name,
		path:     path,
		manifest: map[string][]string{},
	}
	s.collection = db.GetCollection(name, nil)

	if err := s.loadManifest(); err != nil {
		return nil, err
	}

	xlog.Info("Using embedded vector store", "path", path, "collection", name)
	return s, nil
}

func (s *ChromemStore) manifestPath() string {
	return filepath.Join(s.path, fmt.Sprintf("%s%s.json", manifestPrefix, s.name))
}

func (s *ChromemStore) loadManifest() error {
	data, err := os.ReadFile(s.manifestPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading collection manifest: %w", err)
	}
	if err := json.Unmarshal(data, &s.manifest); err != nil {
		return fmt.Errorf("parsing collection manifest: %w", err)
	}
	return nil
}

func (s *ChromemStore) saveManifest() error {
	data, err := json.Marshal(s.manifest)
	if err != nil {
		return err
	}
	return os.WriteFile(s.manifestPath(), data, 0644)
}

func (s *ChromemStore) Exists(ctx context.Context) (bool, error) {
	return s.db.GetCollection(s.name, nil) != nil, nil
}

func (s *ChromemStore) Insert(ctx context.Context, chunks []types.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	if s.collection == nil {
		c, err := s.db.GetOrCreateCollection(s.name, nil, nil)
		if err != nil {
			return 0, fmt.Errorf("creating collection: %w", err)
		}
		s.collection = c
	}

	docs := make([]chromem.Document, len(chunks))
	keys := make(map[string][]string)
	for i, c := range chunks {
		id := uuid.NewString()
		docs[i] = chromem.Document{
			ID: id,
			Metadata: map[string]string{
				"source":      c.Source,
				"start_index": strconv.Itoa(c.StartIndex),
			},
			Content:   c.Text,
			Embedding: c.Embedding,
		}
		keys[c.Source] = append(keys[c.Source], id)
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return 0, fmt.Errorf("adding documents: %w", err)
	}

	for source, ids := range keys {
		s.manifest[source] = append(s.manifest[source], ids...)
	}
	if err := s.saveManifest(); err != nil {
		return 0, fmt.Errorf("saving collection manifest: %w", err)
	}

	return len(chunks), nil
}

func (s *ChromemStore) SourceKeys(ctx context.Context, source string) ([]string, error) {
	keys := s.manifest[source]
	out := make([]string, len(keys))
	copy(out, keys)
	return out, nil
}

func (s *ChromemStore) DeleteKey(ctx context.Context, pk string) error {
	if s.collection == nil {
		return fmt.Errorf("collection %s does not exist", s.name)
	}

	if err := s.collection.Delete(ctx, nil, nil, pk); err != nil {
		return fmt.Errorf("deleting entry %s: %w", pk, err)
	}

	for source, ids := range s.manifest {
		for i, id := range ids {
			if id == pk {
				s.manifest[source] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(s.manifest[source]) == 0 {
			delete(s.manifest, source)
		}
	}

	return s.saveManifest()
}

func (s *ChromemStore) Search(ctx context.Context, embedding []float32, topK int) ([]types.Match, error) {
	if s.collection == nil {
		s.collection = s.db.GetCollection(s.name, nil)
	}
	if s.collection == nil {
		return []types.Match{}, nil
	}

	count := s.collection.Count()
	if count == 0 {
		return []types.Match{}, nil
	}
	if topK > count {
		topK = count
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	matches := make([]types.Match, 0, len(results))
	for _, r := range results {
		start, _ := strconv.Atoi(r.Metadata["start_index"])
		matches = append(matches, types.Match{
			Text:       r.Content,
			Source:     r.Metadata["source"],
			StartIndex: start,
			Score:      r.Similarity,
		})
	}

	return matches, nil
}

func (s *ChromemStore) Drop(ctx context.Context) error {
	if s.db.GetCollection(s.name, nil) != nil {
		if err := s.db.DeleteCollection(s.name); err != nil {
			return fmt.Errorf("dropping collection: %w", err)
		}
	}
	s.collection = nil

	s.manifest = map[string][]string{}
	if err := os.Remove(s.manifestPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing collection manifest: %w", err)
	}

	xlog.Info("Dropped collection", "collection", s.name)
	return nil
}

func (s *ChromemStore) Count(ctx context.Context) (int64, error) {
	c := s.db.GetCollection(s.name, nil)
	if c == nil {
		return 0, nil
	}
	return int64(c.Count()), nil
}

func (s *ChromemStore) Collections(ctx context.Context) ([]string, error) {
	names := []string{}
	for name := range s.db.ListCollections() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *ChromemStore) Close() {}

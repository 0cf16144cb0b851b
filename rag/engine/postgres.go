package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mudler/xlog"

	"ragctl/rag/types"
)

const tablePrefix = "documents_"

// PostgresStore is the networked vector store backend: one collection per
// table, vectors held in a pgvector column. The table is created lazily by
// the first insert, which fixes the dimensionality from the first batch.
type PostgresStore struct {
	pool       *pgxpool.Pool
	collection string
	table      string
}

// NewPostgresStore connects to the database and logs the server banner.
// It performs no collection-level work; the table appears on first insert.
func NewPostgresStore(ctx context.Context, host string, port int, user, password, dbname, collection string) (*PostgresStore, error) {
	url := fmt.Sprintf("postgres://%s@%s:%d/%s", user, host, port, dbname)
	if password != "" {
		url = fmt.Sprintf("postgres://%s:%s@%s:%d/%s", user, password, host, port, dbname)
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var version string
	if err := pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to read server version: %w", err)
	}
	xlog.Info("Connected to vector database", "host", host, "port", port, "version", version)

	return &PostgresStore{
		pool:       pool,
		collection: collection,
		table:      sanitizeTableName(collection),
	}, nil
}

func sanitizeTableName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, " ", "_")
	if len(name) > 0 && (name[0] < 'a' || name[0] > 'z') {
		name = "col_" + name
	}
	return tablePrefix + name
}

func (s *PostgresStore) Exists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = $1)",
		s.table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking collection existence: %w", err)
	}
	return exists, nil
}

// ensureTable creates the collection table and its indexes for the given
// dimensionality. The ANN index is built with L2 ops while Search scores by
// inner product; the mismatch is inherited from the original deployment and
// tracked in DESIGN.md.
func (s *PostgresStore) ensureTable(ctx context.Context, dims int) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			pk BIGSERIAL PRIMARY KEY,
			source TEXT NOT NULL,
			start_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d)
		)
	`, s.table, dims))
	if err != nil {
		return fmt.Errorf("failed to create collection table: %w", err)
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s
		USING hnsw (embedding vector_l2_ops)
	`, s.table, s.table))
	if err != nil {
		xlog.Warn("Failed to create HNSW index", "error", err)
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_source ON %s (source)
	`, s.table, s.table))
	if err != nil {
		xlog.Warn("Failed to create source index", "error", err)
	}

	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, chunks []types.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	if err := s.ensureTable(ctx, len(chunks[0].Embedding)); err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (source, start_index, content, embedding) VALUES ($1, $2, $3, $4::vector)",
		s.table)
	for _, c := range chunks {
		if _, err := s.pool.Exec(ctx, stmt, c.Source, c.StartIndex, c.Text, vectorLiteral(c.Embedding)); err != nil {
			return 0, fmt.Errorf("inserting chunk from %s: %w", c.Source, err)
		}
	}

	return len(chunks), nil
}

func (s *PostgresStore) SourceKeys(ctx context.Context, source string) ([]string, error) {
	exists, err := s.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT pk FROM %s WHERE source = $1 ORDER BY pk", s.table), source)
	if err != nil {
		return nil, fmt.Errorf("querying source %s: %w", source, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var pk int64
		if err := rows.Scan(&pk); err != nil {
			return nil, err
		}
		keys = append(keys, strconv.FormatInt(pk, 10))
	}

	return keys, rows.Err()
}

func (s *PostgresStore) DeleteKey(ctx context.Context, pk string) error {
	id, err := strconv.ParseInt(pk, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid primary key %q: %w", pk, err)
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE pk = $1", s.table), id)
	if err != nil {
		return fmt.Errorf("deleting entry %s: %w", pk, err)
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, embedding []float32, topK int) ([]types.Match, error) {
	exists, err := s.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []types.Match{}, nil
	}

	// <#> is negative inner product, so ascending order puts the highest
	// scoring rows first.
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT content, source, start_index, -(embedding <#> $1::vector) AS score
		FROM %s
		ORDER BY embedding <#> $1::vector
		LIMIT %d
	`, s.table, topK), vectorLiteral(embedding))
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	matches := []types.Match{}
	for rows.Next() {
		var m types.Match
		var score float64
		if err := rows.Scan(&m.Text, &m.Source, &m.StartIndex, &score); err != nil {
			return nil, err
		}
		m.Score = float32(score)
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

func (s *PostgresStore) Drop(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table)); err != nil {
		return fmt.Errorf("dropping collection: %w", err)
	}
	xlog.Info("Dropped collection", "collection", s.collection)
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	exists, err := s.Exists(ctx)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var count int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename LIKE $1 ORDER BY tablename",
		tablePrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		names = append(names, strings.TrimPrefix(t, tablePrefix))
	}

	return names, rows.Err()
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

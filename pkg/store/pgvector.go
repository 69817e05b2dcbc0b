package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/subsearch/internal/models"
)

var ErrInvalidTable = errors.New("invalid table name")

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type VectorStoreConfig struct {
	ConnString  string
	TableName   string
	VectorDim   int
	IndexType   string // ivfflat or hnsw
	SearchLimit int
}

type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "subtitles"
	}
	if !tableNameRe.MatchString(config.TableName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, config.TableName)
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}
	if config.IndexType == "" {
		config.IndexType = "ivfflat"
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 5
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document TEXT,
			name TEXT,
			metadata JSONB,
			embedding vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)
	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	var createIndex string
	switch vs.config.IndexType {
	case "hnsw":
		createIndex = fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_embedding_idx
			ON %s
			USING hnsw (embedding vector_cosine_ops)`,
			vs.config.TableName, vs.config.TableName)
	case "ivfflat":
		createIndex = fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_embedding_idx
			ON %s
			USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = 100)`,
			vs.config.TableName, vs.config.TableName)
	default:
		return fmt.Errorf("unknown index type %q", vs.config.IndexType)
	}
	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Add upserts chunks in one transaction. Existing ids are overwritten.
func (vs *VectorStore) Add(ctx context.Context, chunks []models.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, document, name, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			name = EXCLUDED.name,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`,
		vs.config.TableName)

	batch := &pgx.Batch{}
	for _, c := range chunks {
		if len(c.Embedding) != vs.config.VectorDim {
			return fmt.Errorf("chunk %s has %d dimensions, table expects %d", c.ID, len(c.Embedding), vs.config.VectorDim)
		}
		batch.Queue(stmt,
			c.ID,
			sanitizeUTF8(c.Document),
			sanitizeUTF8(c.Name()),
			c.Metadata,
			pgvector.NewVector(c.Embedding),
		)
	}

	br := tx.SendBatch(ctx, batch)
	for _, c := range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to upsert chunk %s: %w", c.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Query returns the topK nearest chunks by cosine distance.
func (vs *VectorStore) Query(ctx context.Context, embedding []float32, topK int) ([]models.SearchHit, error) {
	if topK <= 0 {
		topK = vs.config.SearchLimit
	}

	query := fmt.Sprintf(`
		SELECT id, COALESCE(document, ''), COALESCE(name, ''), embedding <=> $1 AS distance
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var hit models.SearchHit
		if err := rows.Scan(&hit.ID, &hit.Document, &hit.Name, &hit.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return hits, nil
}

// Reset drops the table and recreates it empty.
func (vs *VectorStore) Reset(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", vs.config.TableName)); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	return vs.initialize(ctx)
}

func (vs *VectorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", vs.config.TableName)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// sanitizeUTF8 drops invalid byte sequences; postgres rejects them in TEXT.
func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}

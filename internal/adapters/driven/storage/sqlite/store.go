package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/recall-kb/recall-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/recall-kb/recall-cli/internal/core/domain"
	"github.com/recall-kb/recall-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ContentStore = (*Store)(nil)

// store_meta keys.
const (
	metaEmbeddingModel = "embedding_model"
	metaEmbeddingDims  = "embedding_dimensions"
)

// Store is a SQLite-backed ContentStore. Full-text relevance comes from
// an FTS5 index over chunk snippets; vector similarity is computed
// inside SQLite by the registered vec_cosine function, so hybrid
// ranking is a single server-side query.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.recall/data/recall.db.
func NewStore(dataDir string) (*Store, error) {
	registerVectorFunctions()

	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".recall", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "recall.db")

	// WAL mode tolerates other processes reading while we write; the
	// per-document transaction remains the only write-correctness
	// mechanism. Pragmas go in the DSN so every pooled connection gets
	// them, foreign_keys in particular is per-connection state.
	db, err := sql.Open("sqlite",
		dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SyncSources upserts the kind to chunk-size table so the stored
// configuration always reflects the validated startup policy.
func (s *Store) SyncSources(ctx context.Context, policy domain.ChunkPolicy) error {
	for _, kind := range domain.Kinds() {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO content_sources (name, chunk_size) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET chunk_size = excluded.chunk_size
		`, string(kind), policy.ChunkSize(kind))
		if err != nil {
			return fmt.Errorf("%w: syncing source %s: %w", domain.ErrStore, kind, err)
		}
	}
	return nil
}

// CreateItem inserts one content item and its chunks in a single
// transaction. Either every row is committed or none are.
func (s *Store) CreateItem(
	ctx context.Context, kind domain.SourceKind, meta map[string]any, chunks []domain.ChunkInput,
) (string, error) {
	metaJSON, err := json.Marshal(domain.NormalizeMeta(meta))
	if err != nil {
		return "", fmt.Errorf("marshalling meta: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: beginning transaction: %w", domain.ErrStore, err)
	}
	defer tx.Rollback() //nolint:errcheck

	itemID := uuid.New().String()
	createdAt := time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO content_items (id, source_name, meta, created_at)
		VALUES (?, ?, ?, ?)
	`, itemID, string(kind), string(metaJSON), createdAt)
	if err != nil {
		return "", fmt.Errorf("%w: inserting content item: %w", domain.ErrStore, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quote_embeddings (id, content_item_id, position, content_snippet, embedding)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("%w: preparing chunk insert: %w", domain.ErrStore, err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		_, err := stmt.ExecContext(ctx, uuid.New().String(), itemID, i,
			chunk.Snippet, float32SliceToBytes(chunk.Embedding))
		if err != nil {
			return "", fmt.Errorf("%w: inserting chunk %d: %w", domain.ErrStore, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: committing: %w", domain.ErrStore, err)
	}
	return itemID, nil
}

// GetItem retrieves a content item by ID.
func (s *Store) GetItem(ctx context.Context, id string) (*domain.ContentItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_name, meta, created_at
		FROM content_items WHERE id = ?
	`, id)

	var item domain.ContentItem
	var kind, metaJSON string
	if err := row.Scan(&item.ID, &kind, &metaJSON, &item.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning content item: %w", domain.ErrStore, err)
	}

	item.Kind = domain.SourceKind(kind)
	if err := json.Unmarshal([]byte(metaJSON), &item.Meta); err != nil {
		return nil, fmt.Errorf("unmarshalling meta: %w", err)
	}
	return &item, nil
}

// GetChunks returns a content item's chunks ordered by position.
func (s *Store) GetChunks(ctx context.Context, contentItemID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content_item_id, position, content_snippet, embedding
		FROM quote_embeddings WHERE content_item_id = ?
		ORDER BY position
	`, contentItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying chunks: %w", domain.ErrStore, err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var blob []byte
		if err := rows.Scan(&chunk.ID, &chunk.ContentItemID, &chunk.Position,
			&chunk.Snippet, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning chunk: %w", domain.ErrStore, err)
		}
		chunk.Embedding, err = bytesToFloat32Slice(blob)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating chunks: %w", domain.ErrStore, err)
	}
	return chunks, nil
}

// DeleteItem removes an item; chunk rows follow by cascade and the FTS
// delete trigger keeps the full-text index in sync.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM content_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: deleting content item: %w", domain.ErrStore, err)
	}
	return nil
}

// CountItems returns the number of items stored per source kind.
func (s *Store) CountItems(ctx context.Context) (map[domain.SourceKind]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_name, COUNT(*) FROM content_items GROUP BY source_name
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: counting items: %w", domain.ErrStore, err)
	}
	defer rows.Close()

	counts := make(map[domain.SourceKind]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("%w: scanning count: %w", domain.ErrStore, err)
		}
		counts[domain.SourceKind(name)] = n
	}
	return counts, rows.Err()
}

// HybridSearch ranks all stored chunks with one server-side query.
//
// Scoring contract (pinned, documented): lexical relevance is the FTS5
// BM25 rank r normalised to [0,1) via m/(1+m) with m = max(-r, 0) and
// 0 for chunks the query does not match; vector similarity is cosine
// mapped to [0,1] via (c+1)/2; combined = ContentWeight*lexical +
// VectorWeight*vector. Ordered by combined score descending, newest
// item first on ties, then chunk ID. Rows whose score cannot be
// computed (empty snippet, missing or mismatched embedding) are
// excluded.
func (s *Store) HybridSearch(
	ctx context.Context, queryText string, queryVec []float32, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	match := ftsMatchExpr(queryText)
	queryBlob := float32SliceToBytes(queryVec)

	var rows *sql.Rows
	var err error

	if match == "" {
		// Nothing for the full-text index to match on: vector-only.
		rows, err = s.db.QueryContext(ctx, `
			SELECT title, content_snippet, hybrid_score, created_at FROM (
				SELECT
					COALESCE(json_extract(ci.meta, '$.title'), '') AS title,
					qe.content_snippet AS content_snippet,
					? * ((vec_cosine(qe.embedding, ?) + 1.0) / 2.0) AS hybrid_score,
					ci.created_at AS created_at,
					qe.id AS chunk_id
				FROM quote_embeddings qe
				JOIN content_items ci ON ci.id = qe.content_item_id
				WHERE qe.content_snippet <> ''
			)
			WHERE hybrid_score IS NOT NULL
			ORDER BY hybrid_score DESC, created_at DESC, chunk_id ASC
			LIMIT ?
		`, opts.VectorWeight, queryBlob, opts.Limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			WITH lexical AS (
				SELECT rowid AS fts_rowid, bm25(quote_fts) AS rank
				FROM quote_fts
				WHERE quote_fts MATCH ?
			)
			SELECT title, content_snippet, hybrid_score, created_at FROM (
				SELECT
					COALESCE(json_extract(ci.meta, '$.title'), '') AS title,
					qe.content_snippet AS content_snippet,
					? * COALESCE(MAX(-lexical.rank, 0) / (1.0 + MAX(-lexical.rank, 0)), 0)
						+ ? * ((vec_cosine(qe.embedding, ?) + 1.0) / 2.0) AS hybrid_score,
					ci.created_at AS created_at,
					qe.id AS chunk_id
				FROM quote_embeddings qe
				JOIN content_items ci ON ci.id = qe.content_item_id
				LEFT JOIN lexical ON lexical.fts_rowid = qe.rowid
				WHERE qe.content_snippet <> ''
			)
			WHERE hybrid_score IS NOT NULL
			ORDER BY hybrid_score DESC, created_at DESC, chunk_id ASC
			LIMIT ?
		`, match, opts.ContentWeight, opts.VectorWeight, queryBlob, opts.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: hybrid search: %w", domain.ErrStore, err)
	}
	defer rows.Close()

	var results []domain.SearchResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.SearchResult
		var created any
		if err := rows.Scan(&r.Title, &r.Snippet, &r.Score, &created); err != nil {
			return nil, fmt.Errorf("%w: scanning result: %w", domain.ErrStore, err)
		}
		r.CreatedAt, err = scanTime(created)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating results: %w", domain.ErrStore, err)
	}
	return results, nil
}

// EmbeddingInfo reports the pinned embedding model, if any.
func (s *Store) EmbeddingInfo(ctx context.Context) (string, int, bool, error) {
	var model string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM store_meta WHERE key = ?", metaEmbeddingModel).Scan(&model)
	if err == sql.ErrNoRows {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("%w: reading embedding model: %w", domain.ErrStore, err)
	}

	var dims int
	err = s.db.QueryRowContext(ctx,
		"SELECT value FROM store_meta WHERE key = ?", metaEmbeddingDims).Scan(&dims)
	if err != nil && err != sql.ErrNoRows {
		return "", 0, false, fmt.Errorf("%w: reading embedding dimensions: %w", domain.ErrStore, err)
	}

	return model, dims, true, nil
}

// SetEmbeddingInfo pins the embedding model for this store.
func (s *Store) SetEmbeddingInfo(ctx context.Context, model string, dimensions int) error {
	for key, value := range map[string]string{
		metaEmbeddingModel: model,
		metaEmbeddingDims:  fmt.Sprintf("%d", dimensions),
	} {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO store_meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)
		if err != nil {
			return fmt.Errorf("%w: writing %s: %w", domain.ErrStore, key, err)
		}
	}
	return nil
}

// scanTime converts a datetime column value to time.Time. Values
// selected through a subquery can come back as text rather than
// time.Time depending on declared-type inference.
func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTimeString(t)
	case []byte:
		return parseTimeString(string(t))
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("%w: unexpected datetime type %T", domain.ErrStore, v)
	}
}

func parseTimeString(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable datetime %q", domain.ErrStore, s)
}

// ftsMatchExpr turns free text into a safe FTS5 match expression.
// Each term is double-quoted so query punctuation cannot be parsed as
// FTS5 syntax, and terms are OR-ed for recall; ranking sorts the best
// matches first anyway.
func ftsMatchExpr(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " OR ")
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

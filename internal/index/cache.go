// Package index implements the fast index cache: a denormalized,
// embedding-augmented mirror of the inbox for low-latency reads and
// similarity search. It is never authoritative; the durable store can
// always rebuild it.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/blevesearch/bleve/v2"
	_ "github.com/mattn/go-sqlite3"

	"contentagent/internal/domain"
	"contentagent/internal/ports"
)

// Cache mirrors inbox records into SQLite (row storage plus embedding
// blobs) and bleve (keyword index).
type Cache struct {
	db          *sql.DB
	keyword     bleve.Index
	keywordPath string
	embedder    ports.Embedder
	dir         string
	logger      *slog.Logger
}

var _ ports.Cache = (*Cache)(nil)

// SearchResult pairs a cached record with its retrieval score. For
// similarity search Distance is cosine distance (lower ranks first); Score
// is a merged or keyword relevance score (higher ranks first).
type SearchResult struct {
	Record   domain.InboxRecord
	Score    float64
	Distance float64
}

// Open creates or opens the cache under dir.
func Open(dir string, embedder ports.Embedder, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, "cache.db"))
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS inbox_records (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		original_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		author_name TEXT,
		title TEXT,
		content TEXT NOT NULL,
		url TEXT,
		published_at TEXT,
		payload TEXT NOT NULL,
		embedding BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_natural_key ON inbox_records(source, original_id, author_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	keywordPath := filepath.Join(dir, "keyword.bleve")
	keyword, err := openKeywordIndex(keywordPath)
	if err != nil {
		return nil, err
	}

	return &Cache{
		db:          db,
		keyword:     keyword,
		keywordPath: keywordPath,
		embedder:    embedder,
		dir:         dir,
		logger:      logger,
	}, nil
}

// Close releases the underlying stores.
func (c *Cache) Close() error {
	if err := c.keyword.Close(); err != nil {
		return fmt.Errorf("close keyword index: %w", err)
	}
	return c.db.Close()
}

// IndexRecords indexes records one by one. An embedding failure downgrades
// the record to vector-less rather than dropping it. Returns the number of
// records indexed.
func (c *Cache) IndexRecords(ctx context.Context, items []domain.InboxRecord) (int, error) {
	indexed := 0
	for _, item := range items {
		var vector []float32
		if c.embedder != nil && item.Content != "" {
			vectors, err := c.embedder.Embed(ctx, []string{item.Content})
			if err != nil || len(vectors) == 0 {
				c.logger.Warn("embedding failed, indexing without vector", "id", item.ID, "error", err)
			} else {
				vector = vectors[0]
			}
		}

		if err := c.upsert(ctx, item, vector); err != nil {
			c.logger.Error("failed to index record", "id", item.ID, "error", err)
			continue
		}

		if err := c.indexKeyword(item); err != nil {
			c.logger.Warn("keyword indexing failed", "id", item.ID, "error", err)
		}

		indexed++
	}

	return indexed, nil
}

func (c *Cache) upsert(ctx context.Context, item domain.InboxRecord, vector []float32) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	query, args, err := sq.Insert("inbox_records").
		Columns("id", "source", "original_id", "author_id", "author_name",
			"title", "content", "url", "published_at", "payload", "embedding").
		Values(item.ID, string(item.Source), item.OriginalID, item.AuthorID, item.AuthorName,
			item.Title, item.Content, item.URL, item.PublishedAt.UTC().Format("2006-01-02T15:04:05Z"),
			string(payload), serializeVector(vector)).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			content = excluded.content,
			embedding = excluded.embedding`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

type cachedRow struct {
	record domain.InboxRecord
	vector []float32
}

func (c *Cache) loadRows(ctx context.Context) ([]cachedRow, error) {
	query, args, err := sq.Select("payload", "embedding").From("inbox_records").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	defer rows.Close()

	var out []cachedRow
	for rows.Next() {
		var payload string
		var blob []byte
		if err := rows.Scan(&payload, &blob); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		var record domain.InboxRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			c.logger.Warn("skipping cache row with bad payload", "error", err)
			continue
		}
		out = append(out, cachedRow{record: record, vector: deserializeVector(blob)})
	}

	return out, rows.Err()
}

// GetAll returns every cached record.
func (c *Cache) GetAll(ctx context.Context) ([]domain.InboxRecord, error) {
	rows, err := c.loadRows(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]domain.InboxRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record)
	}
	return records, nil
}

// SearchSimilar embeds the query, ranks cached records by ascending cosine
// distance, truncates to topK, then applies equality filters post-retrieval.
// Records without vectors do not participate.
func (c *Cache) SearchSimilar(ctx context.Context, query string, topK int, filters map[string]string) ([]SearchResult, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}

	vectors, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}
	queryVector := vectors[0]

	rows, err := c.loadRows(ctx)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, row := range rows {
		if row.vector == nil {
			continue
		}
		d := cosineDistance(queryVector, row.vector)
		results = append(results, SearchResult{Record: row.record, Distance: d, Score: 1 - d})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > topK {
		results = results[:topK]
	}

	if len(filters) == 0 {
		return results, nil
	}

	filtered := results[:0]
	for _, r := range results {
		if matchesFilters(r.Record, filters) {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func matchesFilters(r domain.InboxRecord, filters map[string]string) bool {
	for key, want := range filters {
		var got string
		switch key {
		case "source":
			got = string(r.Source)
		case "author_id":
			got = r.AuthorID
		case "author_name":
			got = r.AuthorName
		case "feed_id":
			got = r.FeedID
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}

// SearchKeyword runs a bleve query-string search over the cached records.
func (c *Cache) SearchKeyword(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	scores, order, err := c.searchKeywordIDs(query, topK)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, nil
	}

	byID, err := c.recordsByID(ctx, order)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(order))
	for _, id := range order {
		record, ok := byID[id]
		if !ok {
			continue
		}
		results = append(results, SearchResult{Record: record, Score: scores[id]})
	}
	return results, nil
}

// SearchHybrid merges keyword and similarity results with min-max
// normalized scores. keywordWeight is the share given to keyword relevance.
func (c *Cache) SearchHybrid(ctx context.Context, query string, topK int, keywordWeight float64) ([]SearchResult, error) {
	if keywordWeight < 0 || keywordWeight > 1 {
		return nil, fmt.Errorf("keywordWeight must be between 0 and 1")
	}
	semanticWeight := 1 - keywordWeight

	// Over-fetch candidates so the merge has material to work with.
	candidateLimit := topK * 3

	keywordResults, err := c.SearchKeyword(ctx, query, candidateLimit)
	if err != nil {
		return nil, err
	}

	semanticResults, err := c.SearchSimilar(ctx, query, candidateLimit, nil)
	if err != nil {
		c.logger.Warn("similarity search unavailable, keyword results only", "error", err)
		if len(keywordResults) > topK {
			keywordResults = keywordResults[:topK]
		}
		return keywordResults, nil
	}

	keywordScores := normalizeScores(keywordResults)
	semanticScores := normalizeScores(semanticResults)

	merged := map[string]SearchResult{}
	for _, r := range keywordResults {
		r.Score = keywordScores[r.Record.ID] * keywordWeight
		merged[r.Record.ID] = r
	}
	for _, r := range semanticResults {
		if existing, ok := merged[r.Record.ID]; ok {
			existing.Score += semanticScores[r.Record.ID] * semanticWeight
			merged[r.Record.ID] = existing
		} else {
			r.Score = semanticScores[r.Record.ID] * semanticWeight
			merged[r.Record.ID] = r
		}
	}

	combined := make([]SearchResult, 0, len(merged))
	for _, r := range merged {
		combined = append(combined, r)
	}
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Score > combined[j].Score
	})

	if len(combined) > topK {
		combined = combined[:topK]
	}
	return combined, nil
}

func normalizeScores(results []SearchResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	if len(results) == 0 {
		return normalized
	}

	minScore, maxScore := results[0].Score, results[0].Score
	for _, r := range results {
		if r.Score < minScore {
			minScore = r.Score
		}
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}

	scoreRange := maxScore - minScore
	for _, r := range results {
		if scoreRange == 0 {
			normalized[r.Record.ID] = 1
		} else {
			normalized[r.Record.ID] = (r.Score - minScore) / scoreRange
		}
	}
	return normalized
}

func (c *Cache) recordsByID(ctx context.Context, ids []string) (map[string]domain.InboxRecord, error) {
	query, args, err := sq.Select("payload").
		From("inbox_records").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.InboxRecord, len(ids))
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var record domain.InboxRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			continue
		}
		out[record.ID] = record
	}
	return out, rows.Err()
}

// DeleteByNaturalKeys removes matching records. The cache has no efficient
// point delete: this reads everything, filters, and rebuilds, so the cost is
// O(total cache size), not O(deleted count).
func (c *Cache) DeleteByNaturalKeys(ctx context.Context, keys map[domain.NaturalKey]struct{}) (int, error) {
	all, err := c.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	remaining := make([]domain.InboxRecord, 0, len(all))
	for _, r := range all {
		if _, drop := keys[r.Key()]; drop {
			continue
		}
		remaining = append(remaining, r)
	}

	deleted := len(all) - len(remaining)
	if deleted == 0 {
		return 0, nil
	}

	if _, err := c.RebuildIndex(ctx, remaining); err != nil {
		return 0, err
	}
	return deleted, nil
}

// RebuildIndex drops everything and re-indexes from the caller-supplied
// authoritative set. This is the disaster-recovery path.
func (c *Cache) RebuildIndex(ctx context.Context, items []domain.InboxRecord) (int, error) {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM inbox_records"); err != nil {
		return 0, fmt.Errorf("clear cache table: %w", err)
	}
	if err := c.resetKeywordIndex(); err != nil {
		return 0, err
	}

	return c.IndexRecords(ctx, items)
}

// Stats reports row count and location; a zero row count means the cache is
// cold and must not be trusted as a read path.
func (c *Cache) Stats(ctx context.Context) (ports.CacheStats, error) {
	query, args, err := sq.Select("COUNT(*)").From("inbox_records").ToSql()
	if err != nil {
		return ports.CacheStats{}, fmt.Errorf("build count: %w", err)
	}

	var count int
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return ports.CacheStats{}, fmt.Errorf("count rows: %w", err)
	}

	return ports.CacheStats{Rows: count, Location: c.dir}, nil
}

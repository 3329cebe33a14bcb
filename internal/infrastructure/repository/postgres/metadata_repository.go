package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/datareveal/docverse/internal/core/domain"
)

// MetadataRepository reads the documents table maintained by the external
// ingestion pipeline. This service never writes to it.
type MetadataRepository struct {
	db *sql.DB
}

func NewMetadataRepository(db *sql.DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c PoolConfig) normalize() PoolConfig {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	return c
}

func OpenDB(dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	pool = pool.normalize()
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const recordColumns = `id, filename, entity, folder_name, metadata, formatted_content, uploaded_at`

// FetchCandidates prefilters records whose searchable text contains any of
// the given tokens. The scoring happens in the caller; recency orders the
// candidate window so the limit cuts the oldest documents first.
func (r *MetadataRepository) FetchCandidates(ctx context.Context, tokens []string, limit int) ([]domain.MetadataRecord, error) {
	if limit <= 0 {
		limit = 200
	}

	var rows *sql.Rows
	var err error
	if len(tokens) == 0 {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM documents
ORDER BY uploaded_at DESC
LIMIT $1
`, limit)
	} else {
		patterns := make([]string, 0, len(tokens))
		for _, token := range tokens {
			patterns = append(patterns, "%"+escapeLike(token)+"%")
		}
		rows, err = r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM documents
WHERE filename ILIKE ANY($1)
   OR entity ILIKE ANY($1)
   OR folder_name ILIKE ANY($1)
   OR metadata::text ILIKE ANY($1)
ORDER BY uploaded_at DESC
LIMIT $2
`, patterns, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query metadata candidates: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// SearchByField looks up one named metadata field. Filename and Entity live
// in their own columns; everything else sits in the metadata JSONB document.
func (r *MetadataRepository) SearchByField(ctx context.Context, field, value string, exact bool, limit int) ([]domain.MetadataRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var predicate string
	args := []any{value, limit}
	switch field {
	case "Filename":
		predicate = "filename"
	case "Entity":
		predicate = "entity"
	default:
		predicate = "metadata->>$3"
		args = append(args, field)
	}

	var condition string
	if exact {
		condition = fmt.Sprintf("LOWER(%s) = LOWER($1)", predicate)
	} else {
		condition = fmt.Sprintf("%s ILIKE '%%' || $1 || '%%'", predicate)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM documents
WHERE `+condition+`
ORDER BY uploaded_at DESC, id ASC
LIMIT $2
`, args...)
	if err != nil {
		return nil, fmt.Errorf("query metadata by field: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]domain.MetadataRecord, error) {
	records := make([]domain.MetadataRecord, 0, 16)
	for rows.Next() {
		var record domain.MetadataRecord
		var fieldsRaw []byte
		var content sql.NullString

		if err := rows.Scan(
			&record.DocumentID, &record.Filename, &record.Entity, &record.FolderName,
			&fieldsRaw, &content, &record.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("scan metadata record: %w", err)
		}

		if len(fieldsRaw) > 0 {
			if err := json.Unmarshal(fieldsRaw, &record.Fields); err != nil {
				return nil, fmt.Errorf("unmarshal metadata fields: %w", err)
			}
		}
		record.Content = content.String
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metadata records: %w", err)
	}
	return records, nil
}

// escapeLike neutralizes LIKE wildcards inside user-derived tokens.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"resthub/internal/models"
)

// DocumentRepository stores resources as JSONB documents in a table shaped
// (id, data, created_at, updated_at).
type DocumentRepository interface {
	Insert(ctx context.Context, doc models.Document) (models.Document, error)
	Find(ctx context.Context, opts models.QueryOptions, paginate bool) ([]models.Document, error)
	Count(ctx context.Context, filter []models.Condition) (int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (models.Document, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Document, error)
	Replace(ctx context.Context, id uuid.UUID, doc models.Document) (models.Document, error)
	Delete(ctx context.Context, id uuid.UUID) (models.Document, error)
}

type documentRepo struct {
	db    Database
	table string
}

// NewDocumentRepository returns a repository over table. The name is quoted
// as an identifier and must come from code, not from a request.
func NewDocumentRepository(db Database, table string) DocumentRepository {
	return &documentRepo{db: db, table: pgx.Identifier{table}.Sanitize()}
}

const documentColumns = "id, data, created_at, updated_at"

func (r *documentRepo) Insert(ctx context.Context, doc models.Document) (models.Document, error) {
	data, err := encodeData(doc)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, data, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING %s
	`, r.table, documentColumns)

	out, err := scanDocument(r.db.QueryRow(ctx, query, uuid.New(), data))
	if err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", r.table, mapError(err))
	}
	return out, nil
}

func (r *documentRepo) Find(ctx context.Context, opts models.QueryOptions, paginate bool) ([]models.Document, error) {
	var b sqlBuilder
	where, err := b.where(opts.Filter)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s%s%s", documentColumns, r.table, where, b.orderBy(opts.Sort))
	if paginate {
		fmt.Fprintf(&sb, " LIMIT %s OFFSET %s", b.bind(opts.Limit()), b.bind(opts.Offset()))
	}

	rows, err := r.db.Query(ctx, sb.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", r.table, mapQueryError(err))
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying %s: %w", r.table, mapQueryError(err))
	}
	return docs, nil
}

func (r *documentRepo) Count(ctx context.Context, filter []models.Condition) (int64, error) {
	var b sqlBuilder
	where, err := b.where(filter)
	if err != nil {
		return 0, err
	}

	var total int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", r.table, where)
	if err := r.db.QueryRow(ctx, query, b.args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting %s: %w", r.table, mapQueryError(err))
	}
	return total, nil
}

func (r *documentRepo) FindByID(ctx context.Context, id uuid.UUID) (models.Document, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", documentColumns, r.table)
	doc, err := scanDocument(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return doc, nil
}

func (r *documentRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Document, error) {
	if len(ids) == 0 {
		return []models.Document{}, nil
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ANY($1)", documentColumns, r.table)
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", r.table, mapQueryError(err))
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying %s: %w", r.table, mapQueryError(err))
	}
	return docs, nil
}

func (r *documentRepo) Replace(ctx context.Context, id uuid.UUID, doc models.Document) (models.Document, error) {
	data, err := encodeData(doc)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET data = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, r.table, documentColumns)

	out, err := scanDocument(r.db.QueryRow(ctx, query, id, data))
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (r *documentRepo) Delete(ctx context.Context, id uuid.UUID) (models.Document, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1 RETURNING %s", r.table, documentColumns)
	doc, err := scanDocument(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return doc, nil
}

// encodeData drops the implicit fields, which live in their own columns.
func encodeData(doc models.Document) ([]byte, error) {
	data, err := json.Marshal(doc.Without(models.ImplicitFields...))
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return data, nil
}

func scanDocument(row pgx.Row) (models.Document, error) {
	var (
		id                   uuid.UUID
		data                 []byte
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &data, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return buildDocument(id, data, createdAt, updatedAt)
}

func buildDocument(id uuid.UUID, data []byte, createdAt, updatedAt time.Time) (models.Document, error) {
	doc := models.Document{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding document %s: %w", id, err)
		}
	}
	doc[models.FieldID] = id.String()
	doc[models.FieldCreatedAt] = createdAt
	doc[models.FieldUpdatedAt] = updatedAt
	return doc, nil
}

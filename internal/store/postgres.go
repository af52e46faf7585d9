package store

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createDocumentsTableSQL = `
		CREATE TABLE IF NOT EXISTS folder_permission_documents (
			operator_id TEXT NOT NULL,
			doc_key     TEXT NOT NULL,
			payload     BYTEA NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (operator_id, doc_key)
		)`

	upsertDocumentSQL = `
		INSERT INTO folder_permission_documents (operator_id, doc_key, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (operator_id, doc_key)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`

	selectDocumentSQL = `
		SELECT payload FROM folder_permission_documents
		WHERE operator_id = $1 AND doc_key = $2`

	existsDocumentSQL = `
		SELECT EXISTS (
			SELECT 1 FROM folder_permission_documents
			WHERE operator_id = $1 AND doc_key = $2
		)`
)

// PostgresBlobs stores documents in the folder_permission_documents table.
type PostgresBlobs struct {
	pool *pgxpool.Pool
}

func NewPostgresBlobs(pool *pgxpool.Pool) *PostgresBlobs {
	return &PostgresBlobs{pool: pool}
}

// EnsureSchema creates the documents table if it does not exist.
func (b *PostgresBlobs) EnsureSchema(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, createDocumentsTableSQL); err != nil {
		return fmt.Errorf(errFailedCreateSchemaFmt, err)
	}
	return nil
}

func (b *PostgresBlobs) Put(ctx context.Context, key Key, data []byte) error {
	if _, err := b.pool.Exec(ctx, upsertDocumentSQL, key.OperatorID, key.DocumentName(), data); err != nil {
		return fmt.Errorf(errFailedUpsertDocumentFmt, err)
	}
	return nil
}

func (b *PostgresBlobs) Get(ctx context.Context, key Key) ([]byte, error) {
	var payload []byte
	err := b.pool.QueryRow(ctx, selectDocumentSQL, key.OperatorID, key.DocumentName()).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key.DocumentName(), apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf(errFailedGetDocumentFmt, err)
	}
	return payload, nil
}

func (b *PostgresBlobs) Has(ctx context.Context, key Key) (bool, error) {
	var exists bool
	if err := b.pool.QueryRow(ctx, existsDocumentSQL, key.OperatorID, key.DocumentName()).Scan(&exists); err != nil {
		return false, fmt.Errorf(errFailedCheckDocumentFmt, err)
	}
	return exists, nil
}

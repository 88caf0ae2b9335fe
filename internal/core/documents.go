package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDocumentNotFound is returned by Read when a document has never been written.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore persists named JSON documents. Write replaces the whole
// document; readers never observe a partial write.
type DocumentStore interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
}

// legacyDocuments maps current document names to the names used by older releases.
var legacyDocuments = map[string]string{
	OrdersDocument:  "orders_v3.json",
	DeletedDocument: "deletedOrders_v3.json",
}

// ── File documents ────────────────────────────────────────────────────────────

// FileDocuments stores each document as a file under Dir.
type FileDocuments struct {
	Dir string
}

func NewFileDocuments(dir string) (*FileDocuments, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &FileDocuments{Dir: dir}, nil
}

func (f *FileDocuments) Path(name string) string {
	return filepath.Join(f.Dir, name)
}

func (f *FileDocuments) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// Write goes through a temp file in the same directory followed by a rename.
func (f *FileDocuments) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.Dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, f.Path(name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

// MigrateLegacy renames documents left by older releases when the current
// document does not exist yet. It reports the documents that were migrated.
func (f *FileDocuments) MigrateLegacy() ([]string, error) {
	var migrated []string
	for current, legacy := range legacyDocuments {
		if _, err := os.Stat(f.Path(current)); err == nil {
			continue
		}
		if _, err := os.Stat(f.Path(legacy)); err != nil {
			continue
		}
		if err := os.Rename(f.Path(legacy), f.Path(current)); err != nil {
			return migrated, fmt.Errorf("failed to migrate %s: %w", legacy, err)
		}
		migrated = append(migrated, current)
	}
	return migrated, nil
}

// ── Postgres documents ────────────────────────────────────────────────────────

// PgDocuments keeps each document as one JSONB row in order_documents.
// The table is created by migrations/001_order_documents.sql.
type PgDocuments struct {
	pool *pgxpool.Pool
}

func NewPgDocuments(pool *pgxpool.Pool) *PgDocuments {
	return &PgDocuments{pool: pool}
}

func (p *PgDocuments) Read(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := p.pool.QueryRow(ctx, "SELECT body FROM order_documents WHERE name = $1", name).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to read document %s: %w", name, err)
	}
	return body, nil
}

func (p *PgDocuments) Write(ctx context.Context, name string, data []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO order_documents (name, body, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`, name, string(data))
	if err != nil {
		return fmt.Errorf("failed to write document %s: %w", name, err)
	}
	return nil
}

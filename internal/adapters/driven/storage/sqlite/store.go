package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Store is a SQLite-backed metadata store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, defaults to ~/.docqa.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".docqa")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := migrate(context.Background(), db); err != nil {
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

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, filename, format, status, size_bytes, chunk_count, error, uploaded_at, processed_at`

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			format = excluded.format,
			status = excluded.status,
			size_bytes = excluded.size_bytes,
			chunk_count = excluded.chunk_count,
			error = excluded.error,
			uploaded_at = excluded.uploaded_at,
			processed_at = excluded.processed_at
	`, doc.ID, doc.Filename, string(doc.Format), string(doc.Status), doc.SizeBytes,
		doc.ChunkCount, doc.Error, doc.UploadedAt.UTC(), nullTime(doc.ProcessedAt))

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewDocumentNotFound(id)
	}
	return doc, err
}

// ListDocuments returns all documents, newest upload first.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	return s.list(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC, id`)
}

// ListByStatus returns documents in the given status, oldest upload first.
func (s *documentStore) ListByStatus(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	return s.list(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE status = ?
		ORDER BY uploaded_at ASC, id
	`, string(status))
}

func (s *documentStore) list(ctx context.Context, query string, args ...any) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// TransitionStatus performs a compare-and-swap on the status column.
func (s *documentStore) TransitionStatus(ctx context.Context, id string, from, to domain.DocumentStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, domain.NewValidationError("status",
			fmt.Sprintf("cannot transition from %s to %s", from, to))
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET status = ?
		WHERE id = ? AND status = ?
	`, string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("transitioning document: %w", err)
	}
	return affected(res)
}

// CompleteDocument records the outcome while the document is still processing.
func (s *documentStore) CompleteDocument(
	ctx context.Context, id string, status domain.DocumentStatus, chunkCount int, errMsg string,
) (bool, error) {
	if !domain.StatusProcessing.CanTransition(status) {
		return false, domain.NewValidationError("status",
			fmt.Sprintf("%s is not a completion status", status))
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, chunk_count = ?, error = ?, processed_at = ?
		WHERE id = ? AND status = ?
	`, string(status), chunkCount, errMsg, time.Now().UTC(), id, string(domain.StatusProcessing))
	if err != nil {
		return false, fmt.Errorf("completing document: %w", err)
	}
	return affected(res)
}

// DeleteDocument removes a document.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

type scanner interface {
	Scan(dest ...any) error
}

// scanDocument scans a single document row.
func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var format, status string
	var processedAt sql.NullTime

	if err := row.Scan(&doc.ID, &doc.Filename, &format, &status, &doc.SizeBytes,
		&doc.ChunkCount, &doc.Error, &doc.UploadedAt, &processedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Format = domain.Format(format)
	doc.Status = domain.DocumentStatus(status)
	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}

	return &doc, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n == 1, nil
}

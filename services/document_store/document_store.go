package document_store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

var ErrNotFound = errors.New("not found")

// Store persists document and collection metadata in Postgres. Vector index
// contents live on disk; the store only records where each index is and a
// pgvector embedding of the document's description for cross-document search.
type Store struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

type DocumentMetadata struct {
	FileName     string
	FileType     string
	CollectionID int
}

type DocumentRecord struct {
	ID              int       `json:"id"`
	FileName        string    `json:"filename"`
	FileType        string    `json:"filetype"`
	Description     string    `json:"description"`
	VectorstorePath string    `json:"vectorstore_path"`
	UploadDate      time.Time `json:"upload_date"`
}

type Collection struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"is_active"`
}

type DocumentSearchResult struct {
	Document        DocumentRecord `json:"document"`
	SimilarityScore float64        `json:"similarity_score"`
}

// EnsureSchema creates the metadata tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id SERIAL PRIMARY KEY,
			filename TEXT NOT NULL,
			filetype TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			description_embedding vector(1536),
			vectorstore_path TEXT NOT NULL,
			chunk_size INTEGER NOT NULL DEFAULT 0,
			chunk_overlap INTEGER NOT NULL DEFAULT 0,
			embedding_model TEXT NOT NULL DEFAULT '',
			upload_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS document_collections (
			id SERIAL PRIMARY KEY,
			document_id INTEGER NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
			collection_id INTEGER NOT NULL REFERENCES collections (id) ON DELETE CASCADE,
			added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (document_id, collection_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure metadata schema: %w", err)
		}
	}
	return nil
}

// CreateDocument registers an ingested document and returns its identifier.
// The description embedding may be nil when description generation failed.
func (s *Store) CreateDocument(ctx context.Context, meta DocumentMetadata, description, vectorstorePath string, descEmbedding *pgvector.Vector, chunkSize, chunkOverlap int, embeddingModel string) (int, error) {
	var id int
	err := s.db.QueryRow(ctx,
		`INSERT INTO documents (filename, filetype, description, description_embedding, vectorstore_path, chunk_size, chunk_overlap, embedding_model)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		meta.FileName, meta.FileType, description, descEmbedding, vectorstorePath, chunkSize, chunkOverlap, embeddingModel,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to store document: %w", err)
	}

	if meta.CollectionID != 0 {
		_, err = s.db.Exec(ctx,
			`INSERT INTO document_collections (document_id, collection_id) VALUES ($1, $2)
			 ON CONFLICT (document_id, collection_id) DO NOTHING`,
			id, meta.CollectionID)
		if err != nil {
			return 0, fmt.Errorf("failed to associate document with collection: %w", err)
		}
	}

	s.logger.Info("Registered document",
		slog.Int("document_id", id),
		slog.String("filename", meta.FileName),
		slog.String("vectorstore_path", vectorstorePath))
	return id, nil
}

func (s *Store) GetDocumentByID(ctx context.Context, id int) (*DocumentRecord, error) {
	var doc DocumentRecord
	err := s.db.QueryRow(ctx,
		`SELECT id, filename, filetype, description, vectorstore_path, upload_date
		 FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.FileName, &doc.FileType, &doc.Description, &doc.VectorstorePath, &doc.UploadDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document %d: %w", id, err)
	}
	return &doc, nil
}

// DeleteDocument removes the metadata row and reports the vectorstore path so
// the caller can clean up the on-disk index.
func (s *Store) DeleteDocument(ctx context.Context, id int) (string, error) {
	var path string
	err := s.db.QueryRow(ctx,
		`DELETE FROM documents WHERE id = $1 RETURNING vectorstore_path`, id,
	).Scan(&path)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to delete document %d: %w", id, err)
	}
	return path, nil
}

func (s *Store) CreateCollection(ctx context.Context, name, description string) (int, error) {
	var id int
	err := s.db.QueryRow(ctx,
		`INSERT INTO collections (name, description) VALUES ($1, $2) RETURNING id`,
		name, description,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	return id, nil
}

// DeactivateCollection soft-deletes a collection; its documents stay
// registered and keep their indexes.
func (s *Store) DeactivateCollection(ctx context.Context, id int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE collections SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate collection %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListCollections(ctx context.Context, includeInactive bool) ([]Collection, error) {
	query := `SELECT id, name, description, is_active FROM collections`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	collections := make([]Collection, 0)
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Active); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

func (s *Store) DocumentsByCollection(ctx context.Context, collectionID int) ([]DocumentRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT d.id, d.filename, d.filetype, d.description, d.vectorstore_path, d.upload_date
		 FROM documents d
		 JOIN document_collections dc ON dc.document_id = d.id
		 WHERE dc.collection_id = $1
		 ORDER BY d.upload_date DESC`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents for collection %d: %w", collectionID, err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// UnassignedDocuments lists documents that belong to no collection.
func (s *Store) UnassignedDocuments(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT d.id, d.filename, d.filetype, d.description, d.vectorstore_path, d.upload_date
		 FROM documents d
		 WHERE NOT EXISTS (SELECT 1 FROM document_collections dc WHERE dc.document_id = d.id)
		 ORDER BY d.upload_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unassigned documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// SearchByDescription ranks documents by cosine similarity between the query
// embedding and each document's description embedding.
func (s *Store) SearchByDescription(ctx context.Context, embedding pgvector.Vector, limit int) ([]DocumentSearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(ctx,
		`SELECT d.id, d.filename, d.filetype, d.description, d.vectorstore_path, d.upload_date,
		        1 - (d.description_embedding <=> $1) AS similarity_score
		 FROM documents d
		 WHERE d.description_embedding IS NOT NULL
		 ORDER BY similarity_score DESC, d.id
		 LIMIT $2`, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	results := make([]DocumentSearchResult, 0)
	for rows.Next() {
		var r DocumentSearchResult
		if err := rows.Scan(&r.Document.ID, &r.Document.FileName, &r.Document.FileType,
			&r.Document.Description, &r.Document.VectorstorePath, &r.Document.UploadDate,
			&r.SimilarityScore); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func scanDocuments(rows pgx.Rows) ([]DocumentRecord, error) {
	docs := make([]DocumentRecord, 0)
	for rows.Next() {
		var d DocumentRecord
		if err := rows.Scan(&d.ID, &d.FileName, &d.FileType, &d.Description, &d.VectorstorePath, &d.UploadDate); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

package repository

import (
	"context"
	"time"

	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/database"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/errors"
)

// Document is a file attached to a claim. FilePath is the on-disk
// location under the uploads dir; FileName is the name the uploader gave.
type Document struct {
	ID           string
	ClaimID      string
	FileName     string
	FilePath     string
	FileType     string
	UploadedByID string
	UploadedAt   time.Time
}

// DocumentRepository handles claim document metadata.
type DocumentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db *database.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a document record.
func (r *DocumentRepository) Create(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO claim_documents (claim_id, file_name, file_path, file_type, uploaded_by_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, uploaded_at
	`

	err := r.db.QueryRow(ctx, query,
		doc.ClaimID,
		doc.FileName,
		doc.FilePath,
		doc.FileType,
		doc.UploadedByID,
	).Scan(&doc.ID, &doc.UploadedAt)

	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create document")
	}

	return nil
}

// ListByClaim returns all documents attached to a claim, oldest first.
func (r *DocumentRepository) ListByClaim(ctx context.Context, claimID string) ([]*Document, error) {
	query := `
		SELECT id, claim_id, file_name, file_path, file_type, uploaded_by_id, uploaded_at
		FROM claim_documents
		WHERE claim_id = $1
		ORDER BY uploaded_at
	`

	rows, err := r.db.Query(ctx, query, claimID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list documents")
	}
	defer rows.Close()

	docs := make([]*Document, 0)
	for rows.Next() {
		doc := &Document{}
		err := rows.Scan(&doc.ID, &doc.ClaimID, &doc.FileName, &doc.FilePath,
			&doc.FileType, &doc.UploadedByID, &doc.UploadedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan document")
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

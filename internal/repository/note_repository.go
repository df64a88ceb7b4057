package repository

import (
	"context"
	"time"

	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/database"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/errors"
)

// Note is a free-text note attached to a claim. AuthorName is joined in
// at read time for display.
type Note struct {
	ID         string
	ClaimID    string
	AuthorID   string
	AuthorName string
	Content    string
	CreatedAt  time.Time
}

// NoteRepository handles claim notes.
type NoteRepository struct {
	db *database.DB
}

// NewNoteRepository creates a new note repository.
func NewNoteRepository(db *database.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create inserts a note.
func (r *NoteRepository) Create(ctx context.Context, note *Note) error {
	query := `
		INSERT INTO claim_notes (claim_id, author_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		note.ClaimID,
		note.AuthorID,
		note.Content,
	).Scan(&note.ID, &note.CreatedAt)

	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create note")
	}

	return nil
}

// ListByClaim returns all notes for a claim with author names, oldest first.
func (r *NoteRepository) ListByClaim(ctx context.Context, claimID string) ([]*Note, error) {
	query := `
		SELECT n.id, n.claim_id, n.author_id,
		       u.first_name || ' ' || u.last_name,
		       n.content, n.created_at
		FROM claim_notes n
		JOIN users u ON u.id = n.author_id
		WHERE n.claim_id = $1
		ORDER BY n.created_at
	`

	rows, err := r.db.Query(ctx, query, claimID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list notes")
	}
	defer rows.Close()

	notes := make([]*Note, 0)
	for rows.Next() {
		note := &Note{}
		err := rows.Scan(&note.ID, &note.ClaimID, &note.AuthorID,
			&note.AuthorName, &note.Content, &note.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan note")
		}
		notes = append(notes, note)
	}

	return notes, nil
}

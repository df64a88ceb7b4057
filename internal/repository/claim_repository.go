package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/database"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/errors"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/workflow"
)

// Claim represents a claim record. Monetary amounts are cents.
type Claim struct {
	ID                  string
	ClaimNumber         string
	PolicyID            string
	CustomerID          string
	AssignedAdjusterID  *string
	Status              workflow.Status
	IncidentDate        time.Time
	IncidentDescription string
	IncidentLocation    string
	EstimatedDamage     *int64
	ApprovedAmount      *int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ClaimPatch carries the optional fields that may accompany a status
// transition. Nil fields are left untouched (merge-patch).
type ClaimPatch struct {
	EstimatedDamage    *int64
	ApprovedAmount     *int64
	AssignedAdjusterID *string
}

// ClaimFilter narrows List results. Nil fields are ignored.
type ClaimFilter struct {
	CustomerID         *string
	AssignedAdjusterID *string
	// IncludeUnassigned widens an adjuster filter to also return claims
	// with no adjuster yet.
	IncludeUnassigned bool
	Statuses          []workflow.Status
}

const claimColumns = `id, claim_number, policy_id, customer_id, assigned_adjuster_id,
	       status, incident_date, incident_description, incident_location,
	       estimated_damage, approved_amount, created_at, updated_at`

// ClaimRepository handles claim data operations.
type ClaimRepository struct {
	db *database.DB
}

// NewClaimRepository creates a new claim repository.
func NewClaimRepository(db *database.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

func scanClaim(row pgx.Row) (*Claim, error) {
	claim := &Claim{}
	err := row.Scan(
		&claim.ID,
		&claim.ClaimNumber,
		&claim.PolicyID,
		&claim.CustomerID,
		&claim.AssignedAdjusterID,
		&claim.Status,
		&claim.IncidentDate,
		&claim.IncidentDescription,
		&claim.IncidentLocation,
		&claim.EstimatedDamage,
		&claim.ApprovedAmount,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// Create inserts a new claim. The claim_number column carries a unique
// index; a collision surfaces as a unique-violation error the caller can
// detect with IsUniqueViolation and retry with a fresh number.
func (r *ClaimRepository) Create(ctx context.Context, claim *Claim) error {
	query := `
		INSERT INTO claims (claim_number, policy_id, customer_id, status,
		                    incident_date, incident_description, incident_location)
		VALUES ($1, $2, $3, $4::claim_status, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		claim.ClaimNumber,
		claim.PolicyID,
		claim.CustomerID,
		claim.Status,
		claim.IncidentDate,
		claim.IncidentDescription,
		claim.IncidentLocation,
	).Scan(&claim.ID, &claim.CreatedAt, &claim.UpdatedAt)

	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create claim")
	}

	return nil
}

// GetByID retrieves a claim by ID.
func (r *ClaimRepository) GetByID(ctx context.Context, id string) (*Claim, error) {
	query := fmt.Sprintf(`SELECT %s FROM claims WHERE id = $1`, claimColumns)

	claim, err := scanClaim(r.db.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("claim", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get claim")
	}
	return claim, nil
}

// List retrieves claims matching the filter, newest first, with
// offset pagination. Returns the page and the total match count.
func (r *ClaimRepository) List(ctx context.Context, filter ClaimFilter, limit, offset int) ([]*Claim, int64, error) {
	query := fmt.Sprintf(`SELECT %s FROM claims WHERE 1=1`, claimColumns)
	countQuery := `SELECT COUNT(*) FROM claims WHERE 1=1`

	args := []any{}
	argCount := 1

	if filter.CustomerID != nil {
		clause := fmt.Sprintf(" AND customer_id = $%d", argCount)
		query += clause
		countQuery += clause
		args = append(args, *filter.CustomerID)
		argCount++
	}

	if filter.AssignedAdjusterID != nil {
		var clause string
		if filter.IncludeUnassigned {
			clause = fmt.Sprintf(" AND (assigned_adjuster_id = $%d OR assigned_adjuster_id IS NULL)", argCount)
		} else {
			clause = fmt.Sprintf(" AND assigned_adjuster_id = $%d", argCount)
		}
		query += clause
		countQuery += clause
		args = append(args, *filter.AssignedAdjusterID)
		argCount++
	}

	if len(filter.Statuses) > 0 {
		clause := fmt.Sprintf(" AND status = ANY($%d::claim_status[])", argCount)
		query += clause
		countQuery += clause
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		argCount++
	}

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count claims")
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to list claims")
	}
	defer rows.Close()

	claims := make([]*Claim, 0)
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan claim")
		}
		claims = append(claims, claim)
	}

	return claims, total, nil
}

// UpdateStatusCAS moves a claim from one status to another with a
// compare-and-swap on the status the transition was authorized against.
// Patch fields that are nil are left untouched; non-nil fields overwrite.
// Returns the updated row, errors.Conflict if the claim exists but its
// status no longer matches, or errors.NotFound if the claim is gone.
// Exactly one row is written on success and none otherwise.
func (r *ClaimRepository) UpdateStatusCAS(ctx context.Context, id string, from, to workflow.Status, patch ClaimPatch) (*Claim, error) {
	query := fmt.Sprintf(`
		UPDATE claims
		SET status = $3::claim_status,
		    estimated_damage = COALESCE($4, estimated_damage),
		    approved_amount = COALESCE($5, approved_amount),
		    assigned_adjuster_id = COALESCE($6, assigned_adjuster_id),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2::claim_status
		RETURNING %s
	`, claimColumns)

	claim, err := scanClaim(r.db.QueryRow(ctx, query, id, from, to,
		patch.EstimatedDamage, patch.ApprovedAmount, patch.AssignedAdjusterID))

	if stderrors.Is(err, pgx.ErrNoRows) {
		// Either the claim vanished or another writer got there first.
		var exists bool
		probeErr := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM claims WHERE id = $1)`, id).Scan(&exists)
		if probeErr != nil {
			return nil, errors.Wrap(probeErr, errors.ErrCodeInternal, "failed to probe claim after conflict")
		}
		if !exists {
			return nil, errors.NotFound("claim", id)
		}
		return nil, errors.Conflict(fmt.Sprintf("claim %s is no longer in status %s", id, from))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to update claim status")
	}

	return claim, nil
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == "23505"
}

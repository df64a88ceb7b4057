package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/database"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/errors"
)

// Policy represents an insured vehicle owned by a customer.
// CoverageAmount is cents.
type Policy struct {
	ID             string
	PolicyNumber   string
	CustomerID     string
	VehicleMake    string
	VehicleModel   string
	VehicleYear    int
	LicensePlate   string
	CoverageAmount int64
	IsActive       bool
	CreatedAt      time.Time
}

const policyColumns = `id, policy_number, customer_id, vehicle_make, vehicle_model,
	       vehicle_year, license_plate, coverage_amount, is_active, created_at`

// PolicyRepository handles policy data operations.
type PolicyRepository struct {
	db *database.DB
}

// NewPolicyRepository creates a new policy repository.
func NewPolicyRepository(db *database.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

func scanPolicy(row pgx.Row) (*Policy, error) {
	p := &Policy{}
	err := row.Scan(
		&p.ID,
		&p.PolicyNumber,
		&p.CustomerID,
		&p.VehicleMake,
		&p.VehicleModel,
		&p.VehicleYear,
		&p.LicensePlate,
		&p.CoverageAmount,
		&p.IsActive,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new policy.
func (r *PolicyRepository) Create(ctx context.Context, policy *Policy) error {
	query := `
		INSERT INTO policies (policy_number, customer_id, vehicle_make, vehicle_model,
		                      vehicle_year, license_plate, coverage_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, is_active, created_at
	`

	err := r.db.QueryRow(ctx, query,
		policy.PolicyNumber,
		policy.CustomerID,
		policy.VehicleMake,
		policy.VehicleModel,
		policy.VehicleYear,
		policy.LicensePlate,
		policy.CoverageAmount,
	).Scan(&policy.ID, &policy.IsActive, &policy.CreatedAt)

	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create policy")
	}

	return nil
}

// GetByID retrieves a policy by ID.
func (r *PolicyRepository) GetByID(ctx context.Context, id string) (*Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = $1`

	policy, err := scanPolicy(r.db.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("policy", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get policy")
	}
	return policy, nil
}

// GetByCustomerID returns the customer's policy, or NotFound when the
// customer has none yet.
func (r *PolicyRepository) GetByCustomerID(ctx context.Context, customerID string) (*Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE customer_id = $1 ORDER BY created_at LIMIT 1`

	policy, err := scanPolicy(r.db.QueryRow(ctx, query, customerID))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("policy for customer", customerID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get policy")
	}
	return policy, nil
}

// List retrieves policies. A nil customerID returns all policies
// (staff view); otherwise only the customer's own.
func (r *PolicyRepository) List(ctx context.Context, customerID *string) ([]*Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies`
	args := []any{}
	if customerID != nil {
		query += ` WHERE customer_id = $1`
		args = append(args, *customerID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list policies")
	}
	defer rows.Close()

	policies := make([]*Policy, 0)
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan policy")
		}
		policies = append(policies, policy)
	}

	return policies, nil
}

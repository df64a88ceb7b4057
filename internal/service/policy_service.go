package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/errors"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/logger"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/repository"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/workflow"
)

// Demo policy written when a customer has none yet. Real policy intake
// lives in a separate underwriting system.
var defaultPolicy = repository.Policy{
	VehicleMake:    "Toyota",
	VehicleModel:   "Camry",
	VehicleYear:    2020,
	LicensePlate:   "ABC123",
	CoverageAmount: 5_000_000, // cents
}

// PolicyService handles policy business logic.
type PolicyService struct {
	policyRepo PolicyStore
	log        *logger.Logger
}

// NewPolicyService creates a new policy service.
func NewPolicyService(policyRepo PolicyStore, log *logger.Logger) *PolicyService {
	return &PolicyService{policyRepo: policyRepo, log: log}
}

// CreateDefaultPolicy gives the actor a default policy if they have none.
// Idempotent: an existing policy is returned unchanged. Only customers
// and agents may call it.
func (s *PolicyService) CreateDefaultPolicy(ctx context.Context, actor Actor) (*repository.Policy, bool, error) {
	if actor.Role != workflow.RoleCustomer && actor.Role != workflow.RoleAgent {
		return nil, false, errors.Forbidden(fmt.Sprintf("role %s may not create policies", actor.Role))
	}

	existing, err := s.policyRepo.GetByCustomerID(ctx, actor.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, errors.ErrCodeNotFound) {
		return nil, false, err
	}

	policy := defaultPolicy
	policy.PolicyNumber = newPolicyNumber()
	policy.CustomerID = actor.ID

	if err := s.policyRepo.Create(ctx, &policy); err != nil {
		return nil, false, err
	}

	s.log.Info().
		Str("policy_id", policy.ID).
		Str("policy_number", policy.PolicyNumber).
		Str("customer_id", actor.ID).
		Msg("Policy created")

	return &policy, true, nil
}

func newPolicyNumber() string {
	return "POL-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// ListPolicies returns the actor's own policies for customers, all
// policies for staff roles.
func (s *PolicyService) ListPolicies(ctx context.Context, actor Actor) ([]*repository.Policy, error) {
	if actor.Role == workflow.RoleCustomer {
		return s.policyRepo.List(ctx, &actor.ID)
	}
	return s.policyRepo.List(ctx, nil)
}

// GetPolicy retrieves a policy, restricting customers to their own.
func (s *PolicyService) GetPolicy(ctx context.Context, actor Actor, id string) (*repository.Policy, error) {
	policy, err := s.policyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == workflow.RoleCustomer && policy.CustomerID != actor.ID {
		return nil, errors.Forbidden("access denied")
	}
	return policy, nil
}

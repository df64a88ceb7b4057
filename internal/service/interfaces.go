package service

import (
	"context"

	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/repository"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/workflow"
)

// Stores are declared here, on the consumer side, so services can be
// exercised against in-memory fakes. The repository types satisfy them.

// ClaimStore persists claims.
type ClaimStore interface {
	Create(ctx context.Context, claim *repository.Claim) error
	GetByID(ctx context.Context, id string) (*repository.Claim, error)
	List(ctx context.Context, filter repository.ClaimFilter, limit, offset int) ([]*repository.Claim, int64, error)
	UpdateStatusCAS(ctx context.Context, id string, from, to workflow.Status, patch repository.ClaimPatch) (*repository.Claim, error)
}

// PolicyStore persists policies.
type PolicyStore interface {
	Create(ctx context.Context, policy *repository.Policy) error
	GetByID(ctx context.Context, id string) (*repository.Policy, error)
	GetByCustomerID(ctx context.Context, customerID string) (*repository.Policy, error)
	List(ctx context.Context, customerID *string) ([]*repository.Policy, error)
}

// UserStore persists users.
type UserStore interface {
	Create(ctx context.Context, user *repository.User) error
	GetByID(ctx context.Context, id string) (*repository.User, error)
	GetByEmail(ctx context.Context, email string) (*repository.User, error)
	ListAdjusters(ctx context.Context) ([]*repository.User, error)
}

// DocumentStore persists claim document metadata.
type DocumentStore interface {
	Create(ctx context.Context, doc *repository.Document) error
	ListByClaim(ctx context.Context, claimID string) ([]*repository.Document, error)
}

// NoteStore persists claim notes.
type NoteStore interface {
	Create(ctx context.Context, note *repository.Note) error
	ListByClaim(ctx context.Context, claimID string) ([]*repository.Note, error)
}

// EventPublisher publishes claim lifecycle events. Implementations must
// be non-fatal: a failed publish is logged, never returned.
type EventPublisher interface {
	PublishClaimEvent(ctx context.Context, eventType, claimID, actorID string, payload map[string]any)
}

// NopPublisher discards events. Used when NATS is disabled and in tests.
type NopPublisher struct{}

func (NopPublisher) PublishClaimEvent(ctx context.Context, eventType, claimID, actorID string, payload map[string]any) {
}

// Actor is the authenticated caller, as resolved by the auth middleware.
type Actor struct {
	ID   string
	Role workflow.Role
}

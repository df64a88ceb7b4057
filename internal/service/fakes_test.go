package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/errors"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/repository"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/workflow"
)

// uniqueViolation mimics the Postgres error the repositories surface on
// a duplicate key, so IsUniqueViolation recognizes it.
func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
}

// fakeClaimStore is an in-memory ClaimStore with the same
// compare-and-swap semantics as the Postgres repository.
type fakeClaimStore struct {
	mu     sync.Mutex
	seq    int
	claims map[string]*repository.Claim
	// numbers enforces claim_number uniqueness like the DB index.
	numbers map[string]bool
	// failCreates makes the next n Create calls fail with a unique
	// violation regardless of the number, to exercise the retry loop.
	failCreates int
	writes      int
	// onGet runs once after the next GetByID returns, outside the lock.
	// Tests use it to interleave a concurrent write between a service's
	// read and its compare-and-swap.
	onGet func()
}

func newFakeClaimStore() *fakeClaimStore {
	return &fakeClaimStore{
		claims:  make(map[string]*repository.Claim),
		numbers: make(map[string]bool),
	}
}

func (f *fakeClaimStore) Create(ctx context.Context, claim *repository.Claim) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreates > 0 {
		f.failCreates--
		return uniqueViolation()
	}
	if f.numbers[claim.ClaimNumber] {
		return uniqueViolation()
	}

	f.seq++
	claim.ID = fmt.Sprintf("claim-%d", f.seq)
	claim.CreatedAt = time.Now()
	claim.UpdatedAt = claim.CreatedAt
	f.numbers[claim.ClaimNumber] = true
	cp := *claim
	f.claims[claim.ID] = &cp
	f.writes++
	return nil
}

func (f *fakeClaimStore) GetByID(ctx context.Context, id string) (*repository.Claim, error) {
	f.mu.Lock()
	claim, ok := f.claims[id]
	if !ok {
		f.mu.Unlock()
		return nil, errors.NotFound("claim", id)
	}
	cp := *claim
	hook := f.onGet
	f.onGet = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &cp, nil
}

func (f *fakeClaimStore) List(ctx context.Context, filter repository.ClaimFilter, limit, offset int) ([]*repository.Claim, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matches := func(c *repository.Claim) bool {
		if filter.CustomerID != nil && c.CustomerID != *filter.CustomerID {
			return false
		}
		if filter.AssignedAdjusterID != nil {
			assigned := c.AssignedAdjusterID != nil && *c.AssignedAdjusterID == *filter.AssignedAdjusterID
			unassigned := filter.IncludeUnassigned && c.AssignedAdjusterID == nil
			if !assigned && !unassigned {
				return false
			}
		}
		if len(filter.Statuses) > 0 {
			found := false
			for _, s := range filter.Statuses {
				if c.Status == s {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}

	out := make([]*repository.Claim, 0)
	for _, c := range f.claims {
		if matches(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	total := int64(len(out))
	if offset > len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeClaimStore) UpdateStatusCAS(ctx context.Context, id string, from, to workflow.Status, patch repository.ClaimPatch) (*repository.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	claim, ok := f.claims[id]
	if !ok {
		return nil, errors.NotFound("claim", id)
	}
	if claim.Status != from {
		return nil, errors.Conflict(fmt.Sprintf("claim %s is no longer in status %s", id, from))
	}

	claim.Status = to
	if patch.EstimatedDamage != nil {
		v := *patch.EstimatedDamage
		claim.EstimatedDamage = &v
	}
	if patch.ApprovedAmount != nil {
		v := *patch.ApprovedAmount
		claim.ApprovedAmount = &v
	}
	if patch.AssignedAdjusterID != nil {
		v := *patch.AssignedAdjusterID
		claim.AssignedAdjusterID = &v
	}
	// Guarantee updated_at strictly advances, as NOW() does between
	// distinct statements.
	now := time.Now()
	if !now.After(claim.UpdatedAt) {
		now = claim.UpdatedAt.Add(time.Nanosecond)
	}
	claim.UpdatedAt = now
	f.writes++

	cp := *claim
	return &cp, nil
}

// fakePolicyStore is an in-memory PolicyStore.
type fakePolicyStore struct {
	mu       sync.Mutex
	seq      int
	policies map[string]*repository.Policy
}

func newFakePolicyStore() *fakePolicyStore {
	return &fakePolicyStore{policies: make(map[string]*repository.Policy)}
}

func (f *fakePolicyStore) Create(ctx context.Context, policy *repository.Policy) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	policy.ID = fmt.Sprintf("policy-%d", f.seq)
	policy.IsActive = true
	policy.CreatedAt = time.Now()
	cp := *policy
	f.policies[policy.ID] = &cp
	return nil
}

func (f *fakePolicyStore) GetByID(ctx context.Context, id string) (*repository.Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	policy, ok := f.policies[id]
	if !ok {
		return nil, errors.NotFound("policy", id)
	}
	cp := *policy
	return &cp, nil
}

func (f *fakePolicyStore) GetByCustomerID(ctx context.Context, customerID string) (*repository.Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.policies {
		if p.CustomerID == customerID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errors.NotFound("policy for customer", customerID)
}

func (f *fakePolicyStore) List(ctx context.Context, customerID *string) ([]*repository.Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*repository.Policy, 0)
	for _, p := range f.policies {
		if customerID == nil || p.CustomerID == *customerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeUserStore is an in-memory UserStore.
type fakeUserStore struct {
	mu    sync.Mutex
	seq   int
	users map[string]*repository.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*repository.User)}
}

func (f *fakeUserStore) Create(ctx context.Context, user *repository.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == user.Email {
			return uniqueViolation()
		}
	}
	f.seq++
	user.ID = fmt.Sprintf("user-%d", f.seq)
	user.IsActive = true
	user.CreatedAt = time.Now()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return nil, errors.NotFound("user", id)
	}
	cp := *user
	return &cp, nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.NotFound("user", email)
}

func (f *fakeUserStore) ListAdjusters(ctx context.Context) ([]*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*repository.User, 0)
	for _, u := range f.users {
		if u.Role == workflow.RoleAdjuster && u.IsActive {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeDocStore is an in-memory DocumentStore.
type fakeDocStore struct {
	mu   sync.Mutex
	seq  int
	docs []*repository.Document
}

func (f *fakeDocStore) Create(ctx context.Context, doc *repository.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	doc.ID = fmt.Sprintf("doc-%d", f.seq)
	doc.UploadedAt = time.Now()
	cp := *doc
	f.docs = append(f.docs, &cp)
	return nil
}

func (f *fakeDocStore) ListByClaim(ctx context.Context, claimID string) ([]*repository.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*repository.Document, 0)
	for _, d := range f.docs {
		if d.ClaimID == claimID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeNoteStore is an in-memory NoteStore.
type fakeNoteStore struct {
	mu    sync.Mutex
	seq   int
	notes []*repository.Note
}

func (f *fakeNoteStore) Create(ctx context.Context, note *repository.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	note.ID = fmt.Sprintf("note-%d", f.seq)
	note.CreatedAt = time.Now()
	cp := *note
	f.notes = append(f.notes, &cp)
	return nil
}

func (f *fakeNoteStore) ListByClaim(ctx context.Context, claimID string) ([]*repository.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*repository.Note, 0)
	for _, n := range f.notes {
		if n.ClaimID == claimID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishClaimEvent(ctx context.Context, eventType, claimID, actorID string, payload map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

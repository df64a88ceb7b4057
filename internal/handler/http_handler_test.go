package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/errors"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/logger"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/middleware"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/repository"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/service"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/workflow"
)

// memClaims is a minimal in-memory ClaimStore for handler tests.
type memClaims struct {
	mu          sync.Mutex
	seq         int
	claims      map[string]*repository.Claim
	casConflict bool
}

func newMemClaims() *memClaims {
	return &memClaims{claims: make(map[string]*repository.Claim)}
}

func (m *memClaims) Create(ctx context.Context, claim *repository.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	claim.ID = fmt.Sprintf("claim-%d", m.seq)
	claim.CreatedAt = time.Now()
	claim.UpdatedAt = claim.CreatedAt
	cp := *claim
	m.claims[claim.ID] = &cp
	return nil
}

func (m *memClaims) GetByID(ctx context.Context, id string) (*repository.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	claim, ok := m.claims[id]
	if !ok {
		return nil, errors.NotFound("claim", id)
	}
	cp := *claim
	return &cp, nil
}

func (m *memClaims) List(ctx context.Context, filter repository.ClaimFilter, limit, offset int) ([]*repository.Claim, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*repository.Claim, 0)
	for _, c := range m.claims {
		cp := *c
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (m *memClaims) UpdateStatusCAS(ctx context.Context, id string, from, to workflow.Status, patch repository.ClaimPatch) (*repository.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	claim, ok := m.claims[id]
	if !ok {
		return nil, errors.NotFound("claim", id)
	}
	if m.casConflict || claim.Status != from {
		return nil, errors.Conflict("claim status changed")
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
	claim.UpdatedAt = time.Now()
	cp := *claim
	return &cp, nil
}

// memPolicies is a minimal in-memory PolicyStore.
type memPolicies struct {
	policies map[string]*repository.Policy
}

func (m *memPolicies) Create(ctx context.Context, policy *repository.Policy) error { return nil }

func (m *memPolicies) GetByID(ctx context.Context, id string) (*repository.Policy, error) {
	p, ok := m.policies[id]
	if !ok {
		return nil, errors.NotFound("policy", id)
	}
	return p, nil
}

func (m *memPolicies) GetByCustomerID(ctx context.Context, customerID string) (*repository.Policy, error) {
	return nil, errors.NotFound("policy for customer", customerID)
}

func (m *memPolicies) List(ctx context.Context, customerID *string) ([]*repository.Policy, error) {
	return nil, nil
}

type memDocs struct{}

func (memDocs) Create(ctx context.Context, doc *repository.Document) error { return nil }
func (memDocs) ListByClaim(ctx context.Context, claimID string) ([]*repository.Document, error) {
	return nil, nil
}

type memNotes struct{}

func (memNotes) Create(ctx context.Context, note *repository.Note) error { return nil }
func (memNotes) ListByClaim(ctx context.Context, claimID string) ([]*repository.Note, error) {
	return nil, nil
}

func newTestHandler(t *testing.T) (*HTTPHandler, *memClaims) {
	t.Helper()
	claims := newMemClaims()
	policies := &memPolicies{policies: map[string]*repository.Policy{
		"policy-1": {ID: "policy-1", PolicyNumber: "POL-11111111", CustomerID: "cust-1"},
	}}
	claimSvc := service.NewClaimService(claims, policies, memDocs{}, memNotes{},
		service.NopPublisher{}, t.TempDir(), logger.Nop())
	policySvc := service.NewPolicyService(policies, logger.Nop())
	authSvc := service.NewAuthService(nil, "secret", time.Minute, logger.Nop())
	return NewHTTPHandler(claimSvc, policySvc, authSvc, 10<<20, logger.Nop()), claims
}

func seedClaim(t *testing.T, claims *memClaims, status workflow.Status) *repository.Claim {
	t.Helper()
	c := &repository.Claim{
		ClaimNumber:         "CLM-TEST0001",
		PolicyID:            "policy-1",
		CustomerID:          "cust-1",
		Status:              status,
		IncidentDate:        time.Now().Add(-time.Hour),
		IncidentDescription: "side mirror clipped",
		IncidentLocation:    "oak ave",
	}
	if err := claims.Create(context.Background(), c); err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	claims.mu.Lock()
	claims.claims[c.ID].Status = status
	claims.mu.Unlock()
	return c
}

// do runs a request through the handler with the actor injected the way
// the auth middleware would.
func do(h http.HandlerFunc, method, target, body string, actor service.Actor) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req = req.WithContext(middleware.WithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHealthReflectsDatabase(t *testing.T) {
	up := Health(func(ctx context.Context) error { return nil })
	rec := httptest.NewRecorder()
	up(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthy: want 200, got %d", rec.Code)
	}

	down := Health(func(ctx context.Context) error { return fmt.Errorf("connection refused") })
	rec = httptest.NewRecorder()
	down(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy: want 503, got %d", rec.Code)
	}
}

func TestUpdateClaimStatusEndpoint(t *testing.T) {
	h, claims := newTestHandler(t)
	claim := seedClaim(t, claims, workflow.StatusSubmitted)
	agent := service.Actor{ID: "agent-1", Role: workflow.RoleAgent}

	body := fmt.Sprintf(`{"id":%q,"status":"under_review"}`, claim.ID)
	rec := do(h.UpdateClaimStatus, http.MethodPut, "/api/v1/claims/status", body, agent)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp claimResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "under_review" {
		t.Errorf("response status: want under_review, got %s", resp.Status)
	}
}

func TestUpdateClaimStatusErrorMapping(t *testing.T) {
	h, claims := newTestHandler(t)
	claim := seedClaim(t, claims, workflow.StatusSubmitted)

	cases := []struct {
		name  string
		body  string
		actor service.Actor
		want  int
	}{
		{
			name:  "forbidden transition",
			body:  fmt.Sprintf(`{"id":%q,"status":"settled"}`, claim.ID),
			actor: service.Actor{ID: "agent-1", Role: workflow.RoleAgent},
			want:  http.StatusForbidden,
		},
		{
			name:  "customer may never transition",
			body:  fmt.Sprintf(`{"id":%q,"status":"under_review"}`, claim.ID),
			actor: service.Actor{ID: "cust-1", Role: workflow.RoleCustomer},
			want:  http.StatusForbidden,
		},
		{
			name:  "missing claim",
			body:  `{"id":"nope","status":"under_review"}`,
			actor: service.Actor{ID: "admin-1", Role: workflow.RoleAdmin},
			want:  http.StatusNotFound,
		},
		{
			name:  "unknown status",
			body:  fmt.Sprintf(`{"id":%q,"status":"escalated"}`, claim.ID),
			actor: service.Actor{ID: "admin-1", Role: workflow.RoleAdmin},
			want:  http.StatusBadRequest,
		},
		{
			name:  "malformed body",
			body:  `{"id":`,
			actor: service.Actor{ID: "admin-1", Role: workflow.RoleAdmin},
			want:  http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		rec := do(h.UpdateClaimStatus, http.MethodPut, "/api/v1/claims/status", tc.body, tc.actor)
		if rec.Code != tc.want {
			t.Errorf("%s: want %d, got %d (%s)", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}

	// None of the failures may have moved the claim.
	after, _ := claims.GetByID(context.Background(), claim.ID)
	if after.Status != workflow.StatusSubmitted {
		t.Errorf("claim moved by rejected requests: %s", after.Status)
	}
}

func TestUpdateClaimStatusConflictMapsTo409(t *testing.T) {
	h, claims := newTestHandler(t)
	claim := seedClaim(t, claims, workflow.StatusInvestigating)
	manager := service.Actor{ID: "mgr-1", Role: workflow.RoleManager}

	// Simulate a concurrent writer moving the claim between the service's
	// read and its compare-and-set write.
	claims.mu.Lock()
	claims.casConflict = true
	claims.mu.Unlock()

	rec := do(h.UpdateClaimStatus, http.MethodPut, "/api/v1/claims/status",
		fmt.Sprintf(`{"id":%q,"status":"approved"}`, claim.ID), manager)
	if rec.Code != http.StatusConflict {
		t.Fatalf("lost race: want 409, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestCreateClaimEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	customer := service.Actor{ID: "cust-1", Role: workflow.RoleCustomer}

	body := `{"policy_id":"policy-1","incident_date":"2026-08-01T10:00:00Z",` +
		`"incident_description":"hit a pothole","incident_location":"route 9"}`
	rec := do(h.CreateClaim, http.MethodPost, "/api/v1/claims", body, customer)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: want 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp claimResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "submitted" {
		t.Errorf("status: want submitted, got %s", resp.Status)
	}
	if resp.CustomerID != "cust-1" {
		t.Errorf("customer_id: want cust-1, got %s", resp.CustomerID)
	}

	rec = do(h.CreateClaim, http.MethodPost, "/api/v1/claims",
		`{"policy_id":"missing","incident_date":"2026-08-01T10:00:00Z",`+
			`"incident_description":"x","incident_location":"y"}`, customer)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing policy: want 404, got %d", rec.Code)
	}
}

func TestClaimTransitionsEndpoint(t *testing.T) {
	h, claims := newTestHandler(t)
	claim := seedClaim(t, claims, workflow.StatusSubmitted)

	rec := do(h.ClaimTransitions, http.MethodGet, "/api/v1/claims/transitions?id="+claim.ID, "",
		service.Actor{ID: "agent-1", Role: workflow.RoleAgent})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status  string   `json:"status"`
		Allowed []string `json:"allowed_statuses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "submitted" {
		t.Errorf("status: want submitted, got %s", resp.Status)
	}
	want := map[string]bool{"under_review": true, "rejected": true}
	if len(resp.Allowed) != len(want) {
		t.Fatalf("allowed: want %v, got %v", want, resp.Allowed)
	}
	for _, s := range resp.Allowed {
		if !want[s] {
			t.Errorf("allowed contains unexpected %s", s)
		}
	}
}

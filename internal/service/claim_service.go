package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/errors"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/logger"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/repository"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/workflow"
)

// claimNumberAttempts bounds the retry loop on claim-number collisions.
// Numbers carry 8 hex chars of a v4 uuid, so a second collision in a row
// is already storage corruption territory.
const claimNumberAttempts = 3

// ClaimService handles claim business logic: creation gating, role-gated
// status transitions, and per-role visibility.
type ClaimService struct {
	claimRepo  ClaimStore
	policyRepo PolicyStore
	docRepo    DocumentStore
	noteRepo   NoteStore
	events     EventPublisher
	uploadsDir string
	log        *logger.Logger
}

// NewClaimService creates a new claim service.
func NewClaimService(
	claimRepo ClaimStore,
	policyRepo PolicyStore,
	docRepo DocumentStore,
	noteRepo NoteStore,
	events EventPublisher,
	uploadsDir string,
	log *logger.Logger,
) *ClaimService {
	return &ClaimService{
		claimRepo:  claimRepo,
		policyRepo: policyRepo,
		docRepo:    docRepo,
		noteRepo:   noteRepo,
		events:     events,
		uploadsDir: uploadsDir,
		log:        log,
	}
}

// CreateClaimRequest represents a create claim request.
type CreateClaimRequest struct {
	PolicyID            string
	IncidentDate        time.Time
	IncidentDescription string
	IncidentLocation    string
}

// UpdateStatusRequest represents a status transition request. Optional
// fields that are nil are left untouched on the claim (merge-patch).
// Monetary amounts are cents.
type UpdateStatusRequest struct {
	ClaimID            string
	NewStatus          string
	EstimatedDamage    *int64
	ApprovedAmount     *int64
	AssignedAdjusterID *string
}

// CreateClaim files a new claim against an existing policy. Only
// customers and agents may file. The claim starts in submitted, owned by
// the policy's customer (an agent may file on a customer's behalf).
func (s *ClaimService) CreateClaim(ctx context.Context, actor Actor, req *CreateClaimRequest) (*repository.Claim, error) {
	if actor.Role != workflow.RoleCustomer && actor.Role != workflow.RoleAgent {
		return nil, errors.Forbidden(fmt.Sprintf("role %s may not file claims", actor.Role))
	}

	if req.PolicyID == "" {
		return nil, errors.InvalidInput("policy_id", "policy_id is required")
	}
	if strings.TrimSpace(req.IncidentDescription) == "" {
		return nil, errors.InvalidInput("incident_description", "description is required")
	}
	if strings.TrimSpace(req.IncidentLocation) == "" {
		return nil, errors.InvalidInput("incident_location", "location is required")
	}
	if req.IncidentDate.IsZero() {
		return nil, errors.InvalidInput("incident_date", "incident date is required")
	}

	policy, err := s.policyRepo.GetByID(ctx, req.PolicyID)
	if err != nil {
		return nil, err
	}

	claim := &repository.Claim{
		PolicyID:            policy.ID,
		CustomerID:          policy.CustomerID,
		Status:              workflow.StatusSubmitted,
		IncidentDate:        req.IncidentDate,
		IncidentDescription: req.IncidentDescription,
		IncidentLocation:    req.IncidentLocation,
	}

	// Claim numbers are unique under concurrent creation via the storage
	// uniqueness constraint; regenerate and retry on collision.
	for attempt := 1; ; attempt++ {
		claim.ClaimNumber = newClaimNumber()
		err = s.claimRepo.Create(ctx, claim)
		if err == nil {
			break
		}
		if repository.IsUniqueViolation(err) && attempt < claimNumberAttempts {
			continue
		}
		if repository.IsUniqueViolation(err) {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to generate unique claim number")
		}
		return nil, err
	}

	s.log.Info().
		Str("claim_id", claim.ID).
		Str("claim_number", claim.ClaimNumber).
		Str("policy_id", policy.ID).
		Str("customer_id", claim.CustomerID).
		Str("filed_by", actor.ID).
		Msg("Claim created")

	s.events.PublishClaimEvent(ctx, "claim_created", claim.ID, actor.ID, map[string]any{
		"claim_number": claim.ClaimNumber,
		"policy_id":    policy.ID,
	})

	return claim, nil
}

// newClaimNumber generates a collision-resistant claim number.
func newClaimNumber() string {
	return "CLM-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// GetClaim retrieves a claim, enforcing per-role visibility: customers
// see only their own claims, adjusters only claims assigned to them.
func (s *ClaimService) GetClaim(ctx context.Context, actor Actor, id string) (*repository.Claim, error) {
	claim, err := s.claimRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case workflow.RoleCustomer:
		if claim.CustomerID != actor.ID {
			return nil, errors.Forbidden("access denied")
		}
	case workflow.RoleAdjuster:
		if claim.AssignedAdjusterID == nil || *claim.AssignedAdjusterID != actor.ID {
			return nil, errors.Forbidden("access denied")
		}
	}

	return claim, nil
}

// ListClaims returns the claims visible to the actor's role:
// customers their own, agents the intake queue, adjusters their
// assignments plus unassigned work, managers everything in progress,
// admins all.
func (s *ClaimService) ListClaims(ctx context.Context, actor Actor, page, pageSize int) ([]*repository.Claim, int64, error) {
	filter := repository.ClaimFilter{}

	switch actor.Role {
	case workflow.RoleCustomer:
		filter.CustomerID = &actor.ID
	case workflow.RoleAgent:
		filter.Statuses = []workflow.Status{workflow.StatusSubmitted, workflow.StatusUnderReview}
	case workflow.RoleAdjuster:
		filter.AssignedAdjusterID = &actor.ID
		filter.IncludeUnassigned = true
		filter.Statuses = []workflow.Status{workflow.StatusAssigned, workflow.StatusInvestigating, workflow.StatusApproved}
	case workflow.RoleManager:
		filter.Statuses = []workflow.Status{workflow.StatusUnderReview, workflow.StatusAssigned, workflow.StatusInvestigating, workflow.StatusApproved}
	case workflow.RoleAdmin:
		// no filter
	}

	offset := (page - 1) * pageSize
	return s.claimRepo.List(ctx, filter, pageSize, offset)
}

// UpdateStatus applies a role-gated status transition. Precondition
// order: the claim must exist, the target status must parse, optional
// fields must be well-formed, and the transition must appear in the
// actor's allow-list for the claim's current status. The write is a
// compare-and-swap on that status, so of two racing mutually exclusive
// transitions exactly one succeeds and the other gets a Conflict.
// Rejected calls leave the claim byte-for-byte unchanged.
func (s *ClaimService) UpdateStatus(ctx context.Context, actor Actor, req *UpdateStatusRequest) (*repository.Claim, error) {
	claim, err := s.claimRepo.GetByID(ctx, req.ClaimID)
	if err != nil {
		return nil, err
	}

	target, err := workflow.ParseStatus(req.NewStatus)
	if err != nil {
		return nil, err
	}
	if req.EstimatedDamage != nil && *req.EstimatedDamage < 0 {
		return nil, errors.InvalidInput("estimated_damage", "amount cannot be negative")
	}
	if req.ApprovedAmount != nil && *req.ApprovedAmount < 0 {
		return nil, errors.InvalidInput("approved_amount", "amount cannot be negative")
	}

	if !workflow.CanTransition(claim.Status, target, actor.Role) {
		return nil, errors.Forbidden(fmt.Sprintf(
			"cannot transition claim from %s to %s with role %s", claim.Status, target, actor.Role))
	}

	patch := repository.ClaimPatch{
		EstimatedDamage:    req.EstimatedDamage,
		ApprovedAmount:     req.ApprovedAmount,
		AssignedAdjusterID: req.AssignedAdjusterID,
	}

	updated, err := s.claimRepo.UpdateStatusCAS(ctx, claim.ID, claim.Status, target, patch)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("claim_id", claim.ID).
		Str("claim_number", claim.ClaimNumber).
		Str("from_status", string(claim.Status)).
		Str("to_status", string(target)).
		Str("actor_id", actor.ID).
		Str("actor_role", string(actor.Role)).
		Msg("Claim status updated")

	s.events.PublishClaimEvent(ctx, "claim_status_changed", claim.ID, actor.ID, map[string]any{
		"claim_number": claim.ClaimNumber,
		"from_status":  string(claim.Status),
		"to_status":    string(target),
	})

	return updated, nil
}

// AllowedNextStatuses exposes the transition table so the API layer can
// render which actions the actor may take on a claim.
func (s *ClaimService) AllowedNextStatuses(status workflow.Status, role workflow.Role) []workflow.Status {
	return workflow.AllowedNextStatuses(status, role)
}

// AttachDocument stores an uploaded file on disk under a generated name
// and records its metadata against the claim.
func (s *ClaimService) AttachDocument(ctx context.Context, actor Actor, claimID, fileName, fileType string, content io.Reader) (*repository.Document, error) {
	if _, err := s.claimRepo.GetByID(ctx, claimID); err != nil {
		return nil, err
	}

	ext := filepath.Ext(fileName)
	storedName := strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	storedPath := filepath.Join(s.uploadsDir, storedName)

	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create uploads directory")
	}

	f, err := os.Create(storedPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to store document")
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		os.Remove(storedPath)
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to store document")
	}

	doc := &repository.Document{
		ClaimID:      claimID,
		FileName:     fileName,
		FilePath:     storedPath,
		FileType:     fileType,
		UploadedByID: actor.ID,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		os.Remove(storedPath)
		return nil, err
	}

	s.log.Info().
		Str("claim_id", claimID).
		Str("document_id", doc.ID).
		Str("file_name", fileName).
		Str("uploaded_by", actor.ID).
		Msg("Document uploaded")

	s.events.PublishClaimEvent(ctx, "document_uploaded", claimID, actor.ID, map[string]any{
		"document_id": doc.ID,
		"file_name":   fileName,
	})

	return doc, nil
}

// ListDocuments returns the documents attached to a claim the actor may see.
func (s *ClaimService) ListDocuments(ctx context.Context, actor Actor, claimID string) ([]*repository.Document, error) {
	if _, err := s.GetClaim(ctx, actor, claimID); err != nil {
		return nil, err
	}
	return s.docRepo.ListByClaim(ctx, claimID)
}

// AddNote attaches a free-text note to a claim.
func (s *ClaimService) AddNote(ctx context.Context, actor Actor, claimID, content string) (*repository.Note, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.InvalidInput("content", "note content is required")
	}
	if _, err := s.claimRepo.GetByID(ctx, claimID); err != nil {
		return nil, err
	}

	note := &repository.Note{
		ClaimID:  claimID,
		AuthorID: actor.ID,
		Content:  content,
	}
	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("claim_id", claimID).
		Str("note_id", note.ID).
		Str("author_id", actor.ID).
		Msg("Note added")

	return note, nil
}

// ListNotes returns the notes on a claim the actor may see.
func (s *ClaimService) ListNotes(ctx context.Context, actor Actor, claimID string) ([]*repository.Note, error) {
	if _, err := s.GetClaim(ctx, actor, claimID); err != nil {
		return nil, err
	}
	return s.noteRepo.ListByClaim(ctx, claimID)
}

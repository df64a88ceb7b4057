// Package handler exposes the service layer over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/errors"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/logger"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/middleware"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/repository"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/service"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	claims    *service.ClaimService
	policies  *service.PolicyService
	auth      *service.AuthService
	maxUpload int64
	log       *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(claims *service.ClaimService, policies *service.PolicyService, auth *service.AuthService, maxUploadBytes int64, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		claims:    claims,
		policies:  policies,
		auth:      auth,
		maxUpload: maxUploadBytes,
		log:       log,
	}
}

// ─── JSON helpers ────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps error codes to HTTP statuses. Internal details are not
// leaked; coded messages are safe to show.
func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeForbidden:
		status = http.StatusForbidden
	case errors.ErrCodeConflict:
		status = http.StatusConflict
	case errors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case errors.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg, "code": string(code)})
}

func actorFrom(r *http.Request) service.Actor {
	actor, _ := middleware.ActorFromContext(r.Context())
	return actor
}

// Health returns the liveness handler for GET /health. It reports 503
// when the database is unreachable so load balancers stop routing here.
func Health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

// ─── response shapes ─────────────────────────────────────────────────────────

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *repository.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

type policyResponse struct {
	ID             string    `json:"id"`
	PolicyNumber   string    `json:"policy_number"`
	VehicleMake    string    `json:"vehicle_make"`
	VehicleModel   string    `json:"vehicle_model"`
	VehicleYear    int       `json:"vehicle_year"`
	LicensePlate   string    `json:"license_plate"`
	CoverageAmount int64     `json:"coverage_amount"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

func toPolicyResponse(p *repository.Policy) policyResponse {
	return policyResponse{
		ID:             p.ID,
		PolicyNumber:   p.PolicyNumber,
		VehicleMake:    p.VehicleMake,
		VehicleModel:   p.VehicleModel,
		VehicleYear:    p.VehicleYear,
		LicensePlate:   p.LicensePlate,
		CoverageAmount: p.CoverageAmount,
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt,
	}
}

type claimResponse struct {
	ID                  string    `json:"id"`
	ClaimNumber         string    `json:"claim_number"`
	PolicyID            string    `json:"policy_id"`
	CustomerID          string    `json:"customer_id"`
	AssignedAdjusterID  *string   `json:"assigned_adjuster_id"`
	Status              string    `json:"status"`
	IncidentDate        time.Time `json:"incident_date"`
	IncidentDescription string    `json:"incident_description"`
	IncidentLocation    string    `json:"incident_location"`
	EstimatedDamage     *int64    `json:"estimated_damage"`
	ApprovedAmount      *int64    `json:"approved_amount"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toClaimResponse(c *repository.Claim) claimResponse {
	return claimResponse{
		ID:                  c.ID,
		ClaimNumber:         c.ClaimNumber,
		PolicyID:            c.PolicyID,
		CustomerID:          c.CustomerID,
		AssignedAdjusterID:  c.AssignedAdjusterID,
		Status:              string(c.Status),
		IncidentDate:        c.IncidentDate,
		IncidentDescription: c.IncidentDescription,
		IncidentLocation:    c.IncidentLocation,
		EstimatedDamage:     c.EstimatedDamage,
		ApprovedAmount:      c.ApprovedAmount,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

// ─── auth endpoints ──────────────────────────────────────────────────────────

// Register handles POST /auth/register.
func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Role      string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.InvalidInput("body", "invalid request body"))
		return
	}

	user, err := h.auth.Register(r.Context(), &service.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login handles POST /auth/login.
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.InvalidInput("body", "invalid request body"))
		return
	}

	token, _, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// Me handles GET /auth/me.
func (h *HTTPHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	user, err := h.auth.GetUser(r.Context(), actor.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// ListAdjusters handles GET /api/v1/users/adjusters.
func (h *HTTPHandler) ListAdjusters(w http.ResponseWriter, r *http.Request) {
	adjusters, err := h.auth.ListAdjusters(r.Context(), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]map[string]string, 0, len(adjusters))
	for _, a := range adjusters {
		out = append(out, map[string]string{
			"id":   a.ID,
			"name": a.FirstName + " " + a.LastName,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ─── policy endpoints ────────────────────────────────────────────────────────

// CreatePolicy handles POST /policies.
func (h *HTTPHandler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	policy, created, err := h.policies.CreateDefaultPolicy(r.Context(), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toPolicyResponse(policy))
}

// ListPolicies handles GET /policies.
func (h *HTTPHandler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policies.ListPolicies(r.Context(), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]policyResponse, 0, len(policies))
	for _, p := range policies {
		out = append(out, toPolicyResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// ─── claim endpoints ─────────────────────────────────────────────────────────

// CreateClaim handles POST /api/v1/claims.
func (h *HTTPHandler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PolicyID            string    `json:"policy_id"`
		IncidentDate        time.Time `json:"incident_date"`
		IncidentDescription string    `json:"incident_description"`
		IncidentLocation    string    `json:"incident_location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.InvalidInput("body", "invalid request body"))
		return
	}

	claim, err := h.claims.CreateClaim(r.Context(), actorFrom(r), &service.CreateClaimRequest{
		PolicyID:            req.PolicyID,
		IncidentDate:        req.IncidentDate,
		IncidentDescription: req.IncidentDescription,
		IncidentLocation:    req.IncidentLocation,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toClaimResponse(claim))
}

// ListClaims handles GET /api/v1/claims.
func (h *HTTPHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	claims, total, err := h.claims.ListClaims(r.Context(), actorFrom(r), page, pageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]claimResponse, 0, len(claims))
	for _, c := range claims {
		out = append(out, toClaimResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"claims":    out,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetClaim handles GET /api/v1/claims/get?id=...
func (h *HTTPHandler) GetClaim(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, r, errors.InvalidInput("id", "claim id is required"))
		return
	}

	claim, err := h.claims.GetClaim(r.Context(), actorFrom(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimResponse(claim))
}

// UpdateClaimStatus handles PUT /api/v1/claims/status.
func (h *HTTPHandler) UpdateClaimStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID                 string  `json:"id"`
		Status             string  `json:"status"`
		EstimatedDamage    *int64  `json:"estimated_damage"`
		ApprovedAmount     *int64  `json:"approved_amount"`
		AssignedAdjusterID *string `json:"assigned_adjuster_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.InvalidInput("body", "invalid request body"))
		return
	}
	if req.ID == "" {
		h.writeError(w, r, errors.InvalidInput("id", "claim id is required"))
		return
	}

	claim, err := h.claims.UpdateStatus(r.Context(), actorFrom(r), &service.UpdateStatusRequest{
		ClaimID:            req.ID,
		NewStatus:          req.Status,
		EstimatedDamage:    req.EstimatedDamage,
		ApprovedAmount:     req.ApprovedAmount,
		AssignedAdjusterID: req.AssignedAdjusterID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimResponse(claim))
}

// ClaimTransitions handles GET /api/v1/claims/transitions?id=...
// It returns the statuses the caller may move the claim to, so the UI
// can render only the legal actions.
func (h *HTTPHandler) ClaimTransitions(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, r, errors.InvalidInput("id", "claim id is required"))
		return
	}

	actor := actorFrom(r)
	claim, err := h.claims.GetClaim(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	allowed := h.claims.AllowedNextStatuses(claim.Status, actor.Role)
	out := make([]string, 0, len(allowed))
	for _, s := range allowed {
		out = append(out, string(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           string(claim.Status),
		"allowed_statuses": out,
	})
}

// ─── document and note endpoints ─────────────────────────────────────────────

// UploadDocument handles POST /api/v1/claims/documents (multipart).
func (h *HTTPHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.writeError(w, r, errors.InvalidInput("file", "invalid multipart form"))
		return
	}

	claimID := r.FormValue("claim_id")
	if claimID == "" {
		h.writeError(w, r, errors.InvalidInput("claim_id", "claim id is required"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, errors.InvalidInput("file", "file is required"))
		return
	}
	defer file.Close()

	doc, err := h.claims.AttachDocument(r.Context(), actorFrom(r), claimID,
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"document_id": doc.ID,
		"file_name":   doc.FileName,
	})
}

// ListDocuments handles GET /api/v1/claims/documents?claim_id=...
func (h *HTTPHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	claimID := r.URL.Query().Get("claim_id")
	if claimID == "" {
		h.writeError(w, r, errors.InvalidInput("claim_id", "claim id is required"))
		return
	}

	docs, err := h.claims.ListDocuments(r.Context(), actorFrom(r), claimID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, map[string]any{
			"id":          d.ID,
			"file_name":   d.FileName,
			"file_type":   d.FileType,
			"uploaded_at": d.UploadedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// AddNote handles POST /api/v1/claims/notes.
func (h *HTTPHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClaimID string `json:"claim_id"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.InvalidInput("body", "invalid request body"))
		return
	}

	note, err := h.claims.AddNote(r.Context(), actorFrom(r), req.ClaimID, req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         note.ID,
		"content":    note.Content,
		"created_at": note.CreatedAt,
	})
}

// ListNotes handles GET /api/v1/claims/notes?claim_id=...
func (h *HTTPHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	claimID := r.URL.Query().Get("claim_id")
	if claimID == "" {
		h.writeError(w, r, errors.InvalidInput("claim_id", "claim id is required"))
		return
	}

	notes, err := h.claims.ListNotes(r.Context(), actorFrom(r), claimID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]map[string]any, 0, len(notes))
	for _, n := range notes {
		out = append(out, map[string]any{
			"id":          n.ID,
			"author_id":   n.AuthorID,
			"author_name": n.AuthorName,
			"content":     n.Content,
			"created_at":  n.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

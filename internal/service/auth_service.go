package service

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/errors"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/logger"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/repository"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/workflow"
)

// AuthService handles registration, login and the user directory.
type AuthService struct {
	userRepo  UserStore
	jwtSecret []byte
	tokenTTL  time.Duration
	log       *logger.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(userRepo UserStore, jwtSecret string, tokenTTL time.Duration, log *logger.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		log:       log,
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

// Register creates a new user account with a bcrypt password hash.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*repository.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.InvalidInput("email", "valid email is required")
	}
	if len(req.Password) < 8 {
		return nil, errors.InvalidInput("password", "password must be at least 8 characters")
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return nil, errors.InvalidInput("name", "first and last name are required")
	}

	role, err := workflow.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to hash password")
	}

	user := &repository.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, errors.InvalidInput("email", "email already registered")
		}
		return nil, err
	}

	s.log.Info().
		Str("user_id", user.ID).
		Str("role", string(user.Role)).
		Msg("User registered")

	return user, nil
}

// Login verifies credentials and issues a signed bearer token.
// Missing user and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *repository.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", nil, errors.Unauthorized("invalid credentials")
	}
	if !user.IsActive {
		return "", nil, errors.Unauthorized("invalid credentials")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, errors.Unauthorized("invalid credentials")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to sign token")
	}

	s.log.Info().
		Str("user_id", user.ID).
		Str("role", string(user.Role)).
		Msg("User logged in")

	return signed, user, nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, id string) (*repository.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ListAdjusters returns active adjusters. Only managers and admins may
// browse the directory (it renders the assignment picker).
func (s *AuthService) ListAdjusters(ctx context.Context, actor Actor) ([]*repository.User, error) {
	if actor.Role != workflow.RoleManager && actor.Role != workflow.RoleAdmin {
		return nil, errors.Forbidden("only managers and admins may list adjusters")
	}
	return s.userRepo.ListAdjusters(ctx)
}

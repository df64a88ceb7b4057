package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/client"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/config"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/database"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/handler"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/logger"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/middleware"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/repository"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/service"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/workflow"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Claims Service")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize event publisher. The service stays up without a broker;
	// transition events are simply not published.
	var events service.EventPublisher = service.NopPublisher{}
	if cfg.NATS.Enabled {
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Service.Name),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS connection failed, events disabled")
		} else {
			defer nc.Drain()
			events = client.NewNotificationPublisher(nc, log.Logger)
			log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
		}
	}

	// Initialize repositories
	claimRepo := repository.NewClaimRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	userRepo := repository.NewUserRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	noteRepo := repository.NewNoteRepository(db)

	// Initialize services
	claimService := service.NewClaimService(claimRepo, policyRepo, docRepo, noteRepo, events, cfg.Uploads.Dir, log)
	policyService := service.NewPolicyService(policyRepo, log)
	authService := service.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, log)

	// Setup HTTP routes
	maxUpload := cfg.Uploads.MaxSizeMB << 20
	httpHandler := handler.NewHTTPHandler(claimService, policyService, authService, maxUpload, log)

	auth := middleware.Auth(cfg.Auth.JWTSecret, func(ctx context.Context, userID string) (workflow.Role, error) {
		user, err := authService.GetUser(ctx, userID)
		if err != nil {
			return "", err
		}
		return user.Role, nil
	})

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", handler.Health(db.Ping))

	// Auth routes
	mux.HandleFunc("/auth/register", httpHandler.Register)
	mux.HandleFunc("/auth/login", httpHandler.Login)
	mux.Handle("/auth/me", auth(http.HandlerFunc(httpHandler.Me)))

	// Policy routes
	mux.Handle("/policies", auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListPolicies(w, r)
		case http.MethodPost:
			httpHandler.CreatePolicy(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	// Claim routes
	mux.Handle("/api/v1/claims", auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListClaims(w, r)
		case http.MethodPost:
			httpHandler.CreateClaim(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	mux.Handle("/api/v1/claims/get", auth(http.HandlerFunc(httpHandler.GetClaim)))
	mux.Handle("/api/v1/claims/status", auth(http.HandlerFunc(httpHandler.UpdateClaimStatus)))
	mux.Handle("/api/v1/claims/transitions", auth(http.HandlerFunc(httpHandler.ClaimTransitions)))
	mux.Handle("/api/v1/claims/documents", auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListDocuments(w, r)
		case http.MethodPost:
			httpHandler.UploadDocument(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	mux.Handle("/api/v1/claims/notes", auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListNotes(w, r)
		case http.MethodPost:
			httpHandler.AddNote(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	mux.Handle("/api/v1/users/adjusters", auth(http.HandlerFunc(httpHandler.ListAdjusters)))

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(cfg.Server.WriteTimeout)(h)
	h = middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Start gRPC server with the standard health service so orchestrators
	// can probe readiness over gRPC.
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gRPC listener")
	}

	go func() {
		log.Info().Int("port", cfg.Server.GRPCPort).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Stop gRPC server gracefully
	grpcServer.GracefulStop()

	log.Info().Msg("Server stopped")
}

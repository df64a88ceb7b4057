package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/service"
	"github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/workflow"
)

const actorKey contextKey = "actor"

// Auth validates the Bearer token on every request and injects the
// resolved Actor into the request context. Requests without a valid
// token get a 401 and never reach the handler.
func Auth(jwtSecret string, resolve func(ctx context.Context, userID string) (workflow.Role, error)) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w)
				return
			}

			token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "),
				&jwt.RegisteredClaims{},
				func(tok *jwt.Token) (any, error) { return secret, nil },
				jwt.WithValidMethods([]string{"HS256"}),
				jwt.WithExpirationRequired(),
			)
			if err != nil || !token.Valid {
				unauthorized(w)
				return
			}

			claims := token.Claims.(*jwt.RegisteredClaims)
			role, err := resolve(r.Context(), claims.Subject)
			if err != nil {
				unauthorized(w)
				return
			}

			actor := service.Actor{ID: claims.Subject, Role: role}
			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}

// ActorFromContext returns the authenticated actor placed by Auth.
func ActorFromContext(ctx context.Context) (service.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(service.Actor)
	return actor, ok
}

// WithActor returns a context carrying the actor. Test helper for
// exercising handlers without the Auth middleware.
func WithActor(ctx context.Context, actor service.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

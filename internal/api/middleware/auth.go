package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rohits-web03/vidtube/internal/auth"
	"github.com/rohits-web03/vidtube/internal/logging"
	"github.com/rohits-web03/vidtube/internal/session"
	"github.com/rohits-web03/vidtube/internal/utils"
)

type contextKey string

const UserIDKey contextKey = "userID"

// AccessTokenParser verifies an access token and returns its claims.
type AccessTokenParser interface {
	ParseAccess(token string) (*auth.AccessClaims, error)
}

// UserIDFromContext returns the id AuthMiddleware stored for the request.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// WithUserID stores id the way AuthMiddleware does.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// AuthMiddleware rejects requests without a valid access token.
func AuthMiddleware(tokens AccessTokenParser, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			raw := session.AccessToken(r)
			if raw == "" {
				unauthorized(w)
				return
			}

			claims, err := tokens.ParseAccess(raw)
			if err != nil {
				logger.Debug(r.Context(), "access token rejected", "err", err)
				unauthorized(w)
				return
			}

			userID, err := auth.SubjectID(claims)
			if err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	utils.JSONResponse(w, http.StatusUnauthorized, utils.Payload{
		Message: "Unauthorized request",
	})
}

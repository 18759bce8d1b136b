package api

import (
	"context"
	"fmt"
	"net/http"

	_ "github.com/rohits-web03/vidtube/docs"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/rohits-web03/vidtube/internal/api/handlers"
	"github.com/rohits-web03/vidtube/internal/api/middleware"
	"github.com/rohits-web03/vidtube/internal/logging"
	"github.com/rs/cors"
)

// Deps is everything the router needs to serve the user routes.
type Deps struct {
	Users  *handlers.UserHandler
	Tokens middleware.AccessTokenParser
	Cors   cors.Options
	Logger logging.Logger
}

func SetupRouter(deps Deps) http.Handler {
	mainMux := http.NewServeMux()
	c := cors.New(deps.Cors)

	mainMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	mainMux.HandleFunc("/docs/", httpSwagger.WrapHandler)

	requireAuth := middleware.AuthMiddleware(deps.Tokens, deps.Logger)

	userMux := http.NewServeMux()
	userMux.HandleFunc("POST /register", deps.Users.Register)
	userMux.HandleFunc("POST /login", deps.Users.Login)
	userMux.HandleFunc("POST /refresh-token", deps.Users.RefreshToken)

	// ---------- PROTECTED ROUTES ----------
	userMux.Handle("POST /logout", requireAuth(http.HandlerFunc(deps.Users.Logout)))
	userMux.Handle("GET /current-user", requireAuth(http.HandlerFunc(deps.Users.CurrentUser)))

	mainMux.Handle("/api/v1/users/",
		http.StripPrefix("/api/v1/users", userMux),
	)

	deps.Logger.Debug(context.Background(), "router initialized")
	handler := c.Handler(mainMux)
	handler = middleware.Logger(deps.Logger)(handler)
	return handler
}

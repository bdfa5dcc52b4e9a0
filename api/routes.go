package api

import (
	"net/http"

	"github.com/garnizeh/folio/internal/cache"
	"github.com/garnizeh/folio/internal/config"
	"github.com/garnizeh/folio/internal/jobs"
	"github.com/garnizeh/folio/internal/metrics"
	"github.com/garnizeh/folio/internal/portfolio"
	"github.com/garnizeh/folio/pkg/repository"
	"github.com/gorilla/mux"
)

// Deps are the collaborators the routes are built from. Writer, Jobs and
// Metrics may be nil.
type Deps struct {
	Portfolio   *portfolio.Service
	Registry    cache.Subscriber
	Writer      repository.Writer
	Submissions repository.SubmissionRepo
	Jobs        jobs.Enqueuer
	Metrics     *metrics.Metrics
}

func SetupRoutes(cfg *config.Config, version, buildTime string, deps Deps) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(RecoveryMiddleware)
	r.Use(MetricsMiddleware(deps.Metrics))

	// Create handlers
	systemHandler := &SystemHandler{}
	cardsHandler := NewCardsHandler(deps.Portfolio)
	portfolioHandler := NewPortfolioHandler(deps.Portfolio)
	streamHandler := NewStreamHandler(deps.Portfolio, deps.Registry, cfg.Search.Debounce, cfg.Search.MinChars)
	submissionHandler := NewSubmissionHandler(deps.Portfolio.Provider(), deps.Submissions, deps.Jobs)
	authHandler := NewAuthHandler(cfg.Admin.Email, cfg.Admin.PasswordHash, cfg.JWTSecret, cfg.TokenDuration)
	adminHandler := NewAdminHandler(deps.Writer)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}
	r.HandleFunc("/projects/cards", cardsHandler.ProjectCards).Methods("GET")

	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.HandleFunc("/organization", portfolioHandler.Organization).Methods("GET")
	apiV1.HandleFunc("/projects", portfolioHandler.ListProjects).Methods("GET")
	apiV1.HandleFunc("/projects/{id}", portfolioHandler.GetProject).Methods("GET")
	apiV1.HandleFunc("/members", portfolioHandler.ListMembers).Methods("GET")
	apiV1.HandleFunc("/members/{id}", portfolioHandler.GetMember).Methods("GET")
	apiV1.HandleFunc("/members/{id}/skills", portfolioHandler.ListSkills).Methods("GET")
	apiV1.HandleFunc("/members/{id}/documents", portfolioHandler.ListDocuments).Methods("GET")
	apiV1.HandleFunc("/members/{id}/certificates", portfolioHandler.ListCertificates).Methods("GET")
	apiV1.HandleFunc("/members/{id}/experience", portfolioHandler.ListExperience).Methods("GET")
	apiV1.HandleFunc("/events", streamHandler.Events).Methods("GET")
	apiV1.HandleFunc("/live/{grid}", streamHandler.Live).Methods("GET")
	apiV1.HandleFunc("/contact", submissionHandler.Contact).Methods("POST")
	apiV1.HandleFunc("/documents/{id}/requests", submissionHandler.RequestDocument).Methods("POST")
	apiV1.HandleFunc("/auth/signin", authHandler.Signin).Methods("POST")

	// API v1 Protected routes
	admin := apiV1.PathPrefix("/admin").Subrouter()
	admin.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))
	admin.HandleFunc("/signout", authHandler.Signout).Methods("POST")
	admin.HandleFunc("/{collection}/{id}", adminHandler.Put).Methods("PUT")
	admin.HandleFunc("/{collection}/{id}", adminHandler.Delete).Methods("DELETE")

	// Preflight requests only reach the CORS middleware through a matching
	// route. A MatcherFunc keeps other methods on unknown paths a 404.
	r.MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
		return req.Method == http.MethodOptions
	}).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

// Package api is the blog's JSON API over the services. Reads are served
// through the cached repositories; writes need a verified bearer token.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"inkwell/internal/auth"
	"inkwell/internal/logger"
	"inkwell/internal/metrics"
	"inkwell/internal/service"
)

type Server struct {
	articles      *service.ArticleService
	categories    *service.CategoryService
	users         *service.UserService
	verifier      auth.Verifier
	metrics       *metrics.Metrics
	logger        *zap.Logger
	allowedOrigin string
}

func NewServer(
	articles *service.ArticleService,
	categories *service.CategoryService,
	users *service.UserService,
	verifier auth.Verifier,
	m *metrics.Metrics,
	allowedOrigin string,
	log *zap.Logger,
) *Server {
	return &Server{
		articles:      articles,
		categories:    categories,
		users:         users,
		verifier:      verifier,
		metrics:       m,
		logger:        logger.Component(log, "API"),
		allowedOrigin: allowedOrigin,
	}
}

// Router wires the middleware chain and every route.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(s.logRequests)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{s.allowedOrigin},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/healthz", s.healthz)
	router.Handle("/metrics", s.metrics.Handler())

	router.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.listArticles)
			r.Post("/", s.createArticle)
			r.Get("/{id}", s.getArticle)
			r.Patch("/{id}", s.updateArticle)
			r.Delete("/{id}", s.deleteArticle)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.listCategories)
			r.Post("/", s.createCategory)
			r.Get("/{id}", s.getCategory)
			r.Patch("/{id}", s.updateCategory)
			r.Delete("/{id}", s.deleteCategory)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.listUsers)
			r.Post("/", s.signUp)
			r.Get("/me", s.me)
			r.Get("/{id}", s.getUser)
			r.Get("/{id}/articles", s.listUserArticles)
			r.Patch("/{id}", s.updateUser)
			r.Delete("/{id}", s.deleteUser)
		})
	})

	return router
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.String("ip", r.RemoteAddr),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

// authenticate attaches the principal when a bearer token is present. A
// missing token is anonymous; a bad one is rejected outright.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			s.logger.Debug("Token rejected", zap.Error(err))
			s.respondError(w, service.Unauthorized("Token verification failed"))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"saas-payment-core/internal/domain/ports/repository"
	"saas-payment-core/internal/infra/logging"
	"saas-payment-core/internal/usecase"
)

// CallbackLimiter throttles inbound provider callbacks per source. The Redis
// limiter satisfies it; tests plug in a fake.
type CallbackLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Deps collects everything the HTTP surface needs. All fields are required
// except Limiter, which disables callback throttling when nil.
type Deps struct {
	Initiation  usecase.PaymentInitiation
	Callbacks   usecase.CallbackProcessor
	Credits     *usecase.CreditingActions
	Invoices    repository.InvoiceRepository
	Ledger      repository.LedgerRepository
	Sessions    *SessionManager
	Links       *PayLinkSigner
	Limiter     CallbackLimiter
	Credentials usecase.CredentialStore

	CallbackRate   int
	CallbackWindow time.Duration
	PublicBaseURL  string
}

type Server struct {
	deps     Deps
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewServer(deps Deps, logger *zerolog.Logger) *Server {
	return &Server{
		deps:     deps,
		validate: validator.New(),
		log:      logger,
	}
}

// Router assembles the full HTTP surface: the authenticated tenant API, the
// public payment-link endpoint, and the callback endpoints providers hit.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(traceMiddleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Post("/plans/{id}/checkout", s.handlePlanCheckout)
		r.Post("/invoices/{id}/checkout", s.handleInvoiceCheckout)
		r.Post("/invoices/{id}/link", s.handleInvoiceLink)
		r.Get("/invoices/{id}", s.handleInvoiceGet)
		r.Put("/credentials/{gateway}", s.handleCredentialPut)
		r.Delete("/credentials/{gateway}", s.handleCredentialDelete)
	})

	r.Post("/pay/{token}", s.handlePayLink)

	// Providers deliver redirects as GET and webhooks as POST to the same path.
	r.Get("/callbacks/{gateway}/{flow}", s.handleCallback)
	r.Post("/callbacks/{gateway}/{flow}", s.handleCallback)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type sessionCtxKey struct{}

// traceMiddleware carries chi's request id into the logging context so every
// log line emitted for this request can be correlated.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionMiddleware authenticates the tenant API with the platform's session
// JWTs and stashes the claims on the request context.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.deps.Sessions.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), sessionCtxKey{}, claims)
		ctx = logging.WithTenantID(ctx, claims.TenantID)
		ctx = logging.WithUserID(ctx, claims.UserID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) *SessionClaims {
	claims, _ := ctx.Value(sessionCtxKey{}).(*SessionClaims)
	return claims
}

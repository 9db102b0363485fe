package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/repository"
	"saas-payment-core/internal/infra/logging"
	"saas-payment-core/internal/infra/metrics"
	"saas-payment-core/internal/infra/redis"
)

const maxCallbackBody = 1 << 20 // 1 MiB

type planCheckoutRequest struct {
	Cycle   string `json:"cycle" validate:"required,oneof=monthly yearly"`
	Gateway string `json:"gateway" validate:"required"`
}

type invoiceCheckoutRequest struct {
	Amount  int64  `json:"amount" validate:"required,gt=0"`
	Gateway string `json:"gateway" validate:"required"`
}

type credentialPutRequest struct {
	Mode    string            `json:"mode" validate:"required,oneof=sandbox live"`
	Enabled bool              `json:"enabled"`
	Secrets map[string]string `json:"secrets" validate:"required,min=1"`
}

type checkoutResponse struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url,omitempty"`
	ClientToken string `json:"client_token,omitempty"`
}

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeDomainError maps domain sentinels onto HTTP statuses for the tenant
// API. Callback endpoints have their own mapping; providers retry on 5xx.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvoiceSettled):
		http.Error(w, "Invoice already settled", http.StatusConflict)
	case errors.Is(err, domain.ErrUnknownGateway):
		http.Error(w, "Unknown gateway", http.StatusNotFound)
	case errors.Is(err, domain.ErrGatewayNotConfigured):
		http.Error(w, "Payment method unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, domain.ErrProviderUnavailable):
		http.Error(w, "Payment provider unavailable, try again", http.StatusBadGateway)
	case errors.Is(err, domain.ErrInvalidPaymentToken):
		http.Error(w, "Invalid or expired payment link", http.StatusUnauthorized)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handlePlanCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	planID := chi.URLParam(r, "id")

	var req planCheckoutRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	claims := sessionFrom(ctx)
	intent, res, err := s.deps.Initiation.InitiatePlan(ctx, claims.UserID(), planID, model.BillingCycle(req.Cycle), model.Gateway(req.Gateway))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.IncIntentInitiated(string(intent.Gateway), string(intent.Target.Type))

	writeJSON(w, http.StatusCreated, checkoutResponse{
		Reference:   intent.ExternalReference,
		RedirectURL: res.RedirectURL,
		ClientToken: res.ClientToken,
	})
}

// loadOwnedInvoice fetches the invoice and enforces tenant ownership when the
// session carries a tenant id.
func (s *Server) loadOwnedInvoice(w http.ResponseWriter, r *http.Request) (*model.Invoice, bool) {
	ctx := r.Context()
	invoiceID := chi.URLParam(r, "id")

	inv, err := s.deps.Invoices.FindByID(ctx, repository.NoTX, invoiceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
		} else {
			http.Error(w, "Failed to get invoice", http.StatusInternalServerError)
		}
		return nil, false
	}

	if claims := sessionFrom(ctx); claims != nil && claims.TenantID != "" && claims.TenantID != inv.TenantID {
		// Hide other tenants' invoices entirely.
		http.NotFound(w, r)
		return nil, false
	}
	return inv, true
}

func (s *Server) handleInvoiceCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req invoiceCheckoutRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	inv, ok := s.loadOwnedInvoice(w, r)
	if !ok {
		return
	}

	intent, res, err := s.deps.Initiation.InitiateInvoice(ctx, inv.ID, req.Amount, model.Gateway(req.Gateway))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.IncIntentInitiated(string(intent.Gateway), string(intent.Target.Type))

	writeJSON(w, http.StatusCreated, checkoutResponse{
		Reference:   intent.ExternalReference,
		RedirectURL: res.RedirectURL,
		ClientToken: res.ClientToken,
	})
}

func (s *Server) handleInvoiceLink(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.loadOwnedInvoice(w, r)
	if !ok {
		return
	}

	token, expiresAt, err := s.deps.Links.Mint(inv.ID, inv.TenantID)
	if err != nil {
		http.Error(w, "Failed to mint payment link", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		URL       string    `json:"url"`
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}{
		URL:       s.deps.PublicBaseURL + "/pay/" + token,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

func (s *Server) handleInvoiceGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	inv, ok := s.loadOwnedInvoice(w, r)
	if !ok {
		return
	}

	entries, err := s.deps.Ledger.ListByInvoice(ctx, repository.NoTX, inv.ID)
	if err != nil {
		http.Error(w, "Failed to list payments", http.StatusInternalServerError)
		return
	}
	remaining, err := s.deps.Credits.InvoiceBalance(ctx, repository.NoTX, inv.ID)
	if err != nil {
		http.Error(w, "Failed to compute balance", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Invoice   *model.Invoice       `json:"invoice"`
		Payments  []*model.LedgerEntry `json:"payments"`
		Remaining int64                `json:"remaining"`
	}{
		Invoice:   inv,
		Payments:  entries,
		Remaining: remaining,
	})
}

// handleCredentialPut lets a tenant configure or rotate its own gateway
// credentials. The tenant id always comes from the session, never from the
// payload.
func (s *Server) handleCredentialPut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := sessionFrom(ctx)
	if claims.TenantID == "" {
		http.Error(w, "Session carries no tenant", http.StatusForbidden)
		return
	}

	var req credentialPutRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	err := s.deps.Credentials.Store(ctx, &model.CredentialSet{
		TenantID: claims.TenantID,
		Gateway:  model.Gateway(chi.URLParam(r, "gateway")),
		Mode:     model.CredentialMode(req.Mode),
		Enabled:  req.Enabled,
		Secrets:  req.Secrets,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCredentialDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := sessionFrom(ctx)
	if claims.TenantID == "" {
		http.Error(w, "Session carries no tenant", http.StatusForbidden)
		return
	}

	if err := s.deps.Credentials.Remove(ctx, claims.TenantID, model.Gateway(chi.URLParam(r, "gateway"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePayLink is the unauthenticated flow behind shareable payment links.
// The token is the sole capability; it names exactly one invoice.
func (s *Server) handlePayLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invoiceID, err := s.deps.Links.Verify(chi.URLParam(r, "token"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req invoiceCheckoutRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	intent, res, err := s.deps.Initiation.InitiateInvoice(ctx, invoiceID, req.Amount, model.Gateway(req.Gateway))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.IncIntentInitiated(string(intent.Gateway), string(intent.Target.Type))

	writeJSON(w, http.StatusCreated, checkoutResponse{
		Reference:   intent.ExternalReference,
		RedirectURL: res.RedirectURL,
		ClientToken: res.ClientToken,
	})
}

// handleCallback accepts both payer redirects (GET) and server-to-server
// webhooks (POST). The provider gets its 200 once the payload is durably
// recorded and verified; business-level rejections still answer 200 so
// providers stop retrying.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	gateway := model.Gateway(chi.URLParam(r, "gateway"))

	if s.deps.Limiter != nil {
		allowed, err := s.deps.Limiter.Allow(ctx, redis.CallbackKey(string(gateway), r.RemoteAddr), s.deps.CallbackRate, s.deps.CallbackWindow)
		if err != nil {
			logging.With(ctx, s.log).Warn().Err(err).Msg("callback rate limiter unavailable, letting request through")
		} else if !allowed {
			metrics.IncCallback(string(gateway), "throttled")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	query := make(map[string]string, len(r.URL.Query()))
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}
	headers := make(map[string]string, len(r.Header))
	for k, vs := range r.Header {
		if len(vs) > 0 {
			headers[http.CanonicalHeaderKey(k)] = vs[0]
		}
	}

	cb := &model.Callback{
		Gateway:    gateway,
		Query:      query,
		Headers:    headers,
		Body:       body,
		RemoteAddr: r.RemoteAddr,
		ReceivedAt: time.Now(),
	}

	err = s.deps.Callbacks.Process(ctx, gateway, cb)
	switch {
	case err == nil:
		metrics.IncCallback(string(gateway), "ok")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	case errors.Is(err, domain.ErrAuthenticity):
		metrics.IncAuthenticityFailure(string(gateway))
		metrics.IncCallback(string(gateway), "authenticity_failed")
		logging.With(ctx, s.log).Warn().Str("gateway", string(gateway)).Str("remote", r.RemoteAddr).Msg("callback failed authenticity verification")
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, domain.ErrUnknownGateway):
		metrics.IncCallback(string(gateway), "unknown_gateway")
		http.NotFound(w, r)
	case errors.Is(err, domain.ErrInvalidArgument):
		metrics.IncCallback(string(gateway), "malformed")
		http.Error(w, "Bad request", http.StatusBadRequest)
	default:
		// Transient: storage down, provider verify unreachable, credentials
		// missing. 5xx makes the provider redeliver.
		metrics.IncCallback(string(gateway), "error")
		logging.With(ctx, s.log).Error().Err(err).Str("gateway", string(gateway)).Msg("callback processing failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

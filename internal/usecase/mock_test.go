//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/adapter"
	"saas-payment-core/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
// It writes to io.Discard to prevent logs from cluttering test output.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// MockIntentRepo is an in-memory intent store keyed by external reference.
// TransitionIfPending reproduces the conditional-update semantics of the
// Postgres implementation, including first-wins under concurrency.
type MockIntentRepo struct {
	mu    sync.Mutex
	store map[string]*model.PaymentIntent // by ExternalReference

	SaveFunc                func(ctx context.Context, tx repository.Tx, in *model.PaymentIntent) error
	TransitionIfPendingFunc func(ctx context.Context, tx repository.Tx, externalRef string, state model.IntentState, providerRef *string, resolvedAt time.Time) (bool, error)
}

func NewMockIntentRepo() *MockIntentRepo {
	return &MockIntentRepo{store: make(map[string]*model.PaymentIntent)}
}

var _ repository.IntentRepository = (*MockIntentRepo)(nil)

func (r *MockIntentRepo) Save(ctx context.Context, tx repository.Tx, in *model.PaymentIntent) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, in)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *in
	r.store[in.ExternalReference] = &cp
	return nil
}

func (r *MockIntentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range r.store {
		if in.ID == id {
			cp := *in
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockIntentRepo) FindByExternalReference(ctx context.Context, tx repository.Tx, ref string) (*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.store[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (r *MockIntentRepo) SetProviderReference(ctx context.Context, tx repository.Tx, id string, providerRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range r.store {
		if in.ID == id {
			ref := providerRef
			in.ProviderReference = &ref
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *MockIntentRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, externalRef string, state model.IntentState, providerRef *string, resolvedAt time.Time) (bool, error) {
	if r.TransitionIfPendingFunc != nil {
		return r.TransitionIfPendingFunc(ctx, tx, externalRef, state, providerRef, resolvedAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.store[externalRef]
	if !ok || in.State != model.IntentStatePending {
		return false, nil
	}
	in.State = state
	if providerRef != nil {
		in.ProviderReference = providerRef
	}
	t := resolvedAt
	in.ResolvedAt = &t
	in.UpdatedAt = resolvedAt
	return true, nil
}

func (r *MockIntentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentIntent
	for _, in := range r.store {
		if in.State == model.IntentStatePending && in.CreatedAt.Before(olderThan) {
			cp := *in
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// MockLedgerRepo reproduces the insert-if-absent uniqueness over
// (invoice_id, external_reference).
type MockLedgerRepo struct {
	mu      sync.Mutex
	entries []*model.LedgerEntry

	InsertIfAbsentFunc func(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) (bool, error)
}

func NewMockLedgerRepo() *MockLedgerRepo {
	return &MockLedgerRepo{}
}

var _ repository.LedgerRepository = (*MockLedgerRepo)(nil)

func (r *MockLedgerRepo) InsertIfAbsent(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) (bool, error) {
	if r.InsertIfAbsentFunc != nil {
		return r.InsertIfAbsentFunc(ctx, tx, e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.InvoiceID == e.InvoiceID && existing.ExternalReference == e.ExternalReference {
			return false, nil
		}
	}
	cp := *e
	r.entries = append(r.entries, &cp)
	return true, nil
}

func (r *MockLedgerRepo) SumByInvoice(ctx context.Context, tx repository.Tx, invoiceID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, e := range r.entries {
		if e.InvoiceID == invoiceID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (r *MockLedgerRepo) ListByInvoice(ctx context.Context, tx repository.Tx, invoiceID string) ([]*model.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.LedgerEntry
	for _, e := range r.entries {
		if e.InvoiceID == invoiceID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Entries returns a snapshot for assertions.
func (r *MockLedgerRepo) Entries() []*model.LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.LedgerEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

type MockInvoiceRepo struct {
	mu    sync.Mutex
	store map[string]*model.Invoice

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error)
}

func NewMockInvoiceRepo() *MockInvoiceRepo {
	return &MockInvoiceRepo{store: make(map[string]*model.Invoice)}
}

var _ repository.InvoiceRepository = (*MockInvoiceRepo)(nil)

func (r *MockInvoiceRepo) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inv
	r.store[inv.ID] = &cp
	return nil
}

func (r *MockInvoiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *MockInvoiceRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.InvoiceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	inv.Status = status
	inv.UpdatedAt = time.Now()
	return nil
}

type MockPlanRepo struct {
	mu    sync.Mutex
	store map[string]*model.SubscriptionPlan
}

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{store: make(map[string]*model.SubscriptionPlan)}
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func (r *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.SubscriptionPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *plan
	r.store[plan.ID] = &cp
	return nil
}

func (r *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.SubscriptionPlan
	for _, p := range r.store {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type MockSubscriptionRepo struct {
	mu    sync.Mutex
	store map[string]*model.PlanAssignment

	UpsertAssignmentFunc func(ctx context.Context, tx repository.Tx, a *model.PlanAssignment) error
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: make(map[string]*model.PlanAssignment)}
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func (r *MockSubscriptionRepo) Assignment(ctx context.Context, tx repository.Tx, userID string) (*model.PlanAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.store[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MockSubscriptionRepo) UpsertAssignment(ctx context.Context, tx repository.Tx, a *model.PlanAssignment) error {
	if r.UpsertAssignmentFunc != nil {
		return r.UpsertAssignmentFunc(ctx, tx, a)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.store[a.UserID] = &cp
	return nil
}

type MockCredentialRepo struct {
	mu    sync.Mutex
	store map[string]*model.CredentialSet // key: tenantID + "/" + gateway

	FindFunc func(ctx context.Context, tx repository.Tx, tenantID string, gateway model.Gateway) (*model.CredentialSet, error)
	calls    int
}

func NewMockCredentialRepo() *MockCredentialRepo {
	return &MockCredentialRepo{store: make(map[string]*model.CredentialSet)}
}

var _ repository.CredentialRepository = (*MockCredentialRepo)(nil)

func credKey(tenantID string, gateway model.Gateway) string {
	return tenantID + "/" + string(gateway)
}

func (r *MockCredentialRepo) Find(ctx context.Context, tx repository.Tx, tenantID string, gateway model.Gateway) (*model.CredentialSet, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.FindFunc != nil {
		return r.FindFunc(ctx, tx, tenantID, gateway)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.store[credKey(tenantID, gateway)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *cs
	return &cp, nil
}

func (r *MockCredentialRepo) Save(ctx context.Context, tx repository.Tx, cs *model.CredentialSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cs
	r.store[credKey(cs.TenantID, cs.Gateway)] = &cp
	return nil
}

func (r *MockCredentialRepo) Delete(ctx context.Context, tx repository.Tx, tenantID string, gateway model.Gateway) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, credKey(tenantID, gateway))
	return nil
}

func (r *MockCredentialRepo) FindCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type MockCallbackLogRepo struct {
	mu       sync.Mutex
	Recorded int

	RecordFunc func(ctx context.Context, tx repository.Tx, gateway model.Gateway, externalRef string, payload []byte, receivedAt time.Time) error
}

func NewMockCallbackLogRepo() *MockCallbackLogRepo {
	return &MockCallbackLogRepo{}
}

var _ repository.CallbackLogRepository = (*MockCallbackLogRepo)(nil)

func (r *MockCallbackLogRepo) Record(ctx context.Context, tx repository.Tx, gateway model.Gateway, externalRef string, payload []byte, receivedAt time.Time) error {
	if r.RecordFunc != nil {
		return r.RecordFunc(ctx, tx, gateway, externalRef, payload, receivedAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Recorded++
	return nil
}

// =============================
// Transaction manager
// =============================

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately with NoTX by default. Tests that need
// to verify transactional behavior assign a custom WithTxFunc.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Gateway adapter + registry
// =============================

type MockGatewayAdapter struct {
	GatewayName model.Gateway

	InitiateFunc  func(ctx context.Context, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.InitiationResult, error)
	ReferenceFunc func(cb *model.Callback) (string, error)
	ConfirmFunc   func(ctx context.Context, cb *model.Callback, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.ConfirmationResult, error)
}

var _ adapter.GatewayAdapter = (*MockGatewayAdapter)(nil)

func (m *MockGatewayAdapter) Name() model.Gateway {
	if m.GatewayName == "" {
		return model.GatewayNoop
	}
	return m.GatewayName
}

func (m *MockGatewayAdapter) Initiate(ctx context.Context, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.InitiationResult, error) {
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, intent, creds)
	}
	return &model.InitiationResult{
		RedirectURL:       "https://pay.example/" + intent.ExternalReference,
		ExternalReference: intent.ExternalReference,
	}, nil
}

func (m *MockGatewayAdapter) Reference(cb *model.Callback) (string, error) {
	if m.ReferenceFunc != nil {
		return m.ReferenceFunc(cb)
	}
	if ref := cb.Query["order_id"]; ref != "" {
		return ref, nil
	}
	return "", domain.ErrInvalidArgument
}

func (m *MockGatewayAdapter) Confirm(ctx context.Context, cb *model.Callback, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.ConfirmationResult, error) {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, cb, intent, creds)
	}
	return &model.ConfirmationResult{
		ExternalReference: intent.ExternalReference,
		Outcome:           model.OutcomeSucceeded,
		ConfirmedAmount:   intent.Amount,
		ConfirmedCurrency: intent.Currency,
	}, nil
}

type MockRegistry struct {
	adapters map[model.Gateway]adapter.GatewayAdapter
}

func NewMockRegistry(adapters ...adapter.GatewayAdapter) *MockRegistry {
	m := make(map[model.Gateway]adapter.GatewayAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &MockRegistry{adapters: m}
}

func (r *MockRegistry) Lookup(gw model.Gateway) (adapter.GatewayAdapter, bool) {
	a, ok := r.adapters[gw]
	return a, ok
}

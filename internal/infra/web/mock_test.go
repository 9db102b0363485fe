//go:build !integration

package web

import (
	"context"
	"sync"
	"time"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/repository"
)

// --- Mock use cases (ports) ---

type mockInitiation struct {
	InitiatePlanFunc    func(ctx context.Context, userID, planID string, cycle model.BillingCycle, gateway model.Gateway) (*model.PaymentIntent, *model.InitiationResult, error)
	InitiateInvoiceFunc func(ctx context.Context, invoiceID string, amount int64, gateway model.Gateway) (*model.PaymentIntent, *model.InitiationResult, error)
}

func (m *mockInitiation) InitiatePlan(ctx context.Context, userID, planID string, cycle model.BillingCycle, gateway model.Gateway) (*model.PaymentIntent, *model.InitiationResult, error) {
	if m.InitiatePlanFunc != nil {
		return m.InitiatePlanFunc(ctx, userID, planID, cycle, gateway)
	}
	intent := &model.PaymentIntent{
		ExternalReference: "ref-plan",
		Gateway:           gateway,
		Target:            model.Target{Type: model.TargetPlanSubscription, Ref: planID, Cycle: cycle},
		State:             model.IntentStatePending,
	}
	return intent, &model.InitiationResult{RedirectURL: "https://pay.example/ref-plan", ExternalReference: "ref-plan"}, nil
}

func (m *mockInitiation) InitiateInvoice(ctx context.Context, invoiceID string, amount int64, gateway model.Gateway) (*model.PaymentIntent, *model.InitiationResult, error) {
	if m.InitiateInvoiceFunc != nil {
		return m.InitiateInvoiceFunc(ctx, invoiceID, amount, gateway)
	}
	intent := &model.PaymentIntent{
		ExternalReference: "ref-inv",
		Gateway:           gateway,
		Target:            model.Target{Type: model.TargetInvoice, Ref: invoiceID},
		State:             model.IntentStatePending,
	}
	return intent, &model.InitiationResult{RedirectURL: "https://pay.example/ref-inv", ExternalReference: "ref-inv"}, nil
}

type mockCallbacks struct {
	mu       sync.Mutex
	Received []*model.Callback

	ProcessFunc func(ctx context.Context, gateway model.Gateway, cb *model.Callback) error
}

func (m *mockCallbacks) Process(ctx context.Context, gateway model.Gateway, cb *model.Callback) error {
	m.mu.Lock()
	m.Received = append(m.Received, cb)
	m.mu.Unlock()
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, gateway, cb)
	}
	return nil
}

type mockCredentialStore struct {
	mu      sync.Mutex
	saved   []*model.CredentialSet
	removed []string // tenantID + "/" + gateway

	StoreFunc func(ctx context.Context, cs *model.CredentialSet) error
}

func (m *mockCredentialStore) Store(ctx context.Context, cs *model.CredentialSet) error {
	m.mu.Lock()
	m.saved = append(m.saved, cs)
	m.mu.Unlock()
	if m.StoreFunc != nil {
		return m.StoreFunc(ctx, cs)
	}
	return nil
}

func (m *mockCredentialStore) Remove(ctx context.Context, tenantID string, gateway model.Gateway) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, tenantID+"/"+string(gateway))
	return nil
}

// --- Mock repositories ---

type mockInvoiceRepo struct {
	mu    sync.Mutex
	store map[string]*model.Invoice
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{store: make(map[string]*model.Invoice)}
}

func (m *mockInvoiceRepo) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inv
	m.store[inv.ID] = &cp
	return nil
}

func (m *mockInvoiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockInvoiceRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.InvoiceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	inv.Status = status
	return nil
}

type mockLedgerRepo struct {
	mu      sync.Mutex
	entries []*model.LedgerEntry
}

func (m *mockLedgerRepo) InsertIfAbsent(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.entries {
		if ex.InvoiceID == e.InvoiceID && ex.ExternalReference == e.ExternalReference {
			return false, nil
		}
	}
	cp := *e
	m.entries = append(m.entries, &cp)
	return true, nil
}

func (m *mockLedgerRepo) SumByInvoice(ctx context.Context, tx repository.Tx, invoiceID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, e := range m.entries {
		if e.InvoiceID == invoiceID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (m *mockLedgerRepo) ListByInvoice(ctx context.Context, tx repository.Tx, invoiceID string) ([]*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.LedgerEntry
	for _, e := range m.entries {
		if e.InvoiceID == invoiceID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Mock rate limiter ---

type mockLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	limit  int
}

func newMockLimiter(limit int) *mockLimiter {
	return &mockLimiter{counts: make(map[string]int), limit: limit}
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key] <= m.limit, nil
}

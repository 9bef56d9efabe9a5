package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ruralpay/payauth/internal/aml"
	"github.com/ruralpay/payauth/internal/config"
	"github.com/ruralpay/payauth/internal/cooloff"
	"github.com/ruralpay/payauth/internal/cop"
	"github.com/ruralpay/payauth/internal/fraud"
	"github.com/ruralpay/payauth/internal/limits"
	"github.com/ruralpay/payauth/internal/models"
	"github.com/ruralpay/payauth/internal/modulus"
	"github.com/ruralpay/payauth/internal/rails"
	"github.com/ruralpay/payauth/internal/stepup"
	"github.com/stretchr/testify/require"
)

// fakeBank is an in-memory account directory and ledger.
type fakeBank struct {
	mu        sync.Mutex
	accounts  map[string]*models.Account
	applied   map[string]bool
	transfers []models.LedgerTransfer
	err       error
}

func (b *fakeBank) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

func (b *fakeBank) FindByDetails(ctx context.Context, sortCode, accountNumber string) (*models.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acct := range b.accounts {
		if acct.SortCode == sortCode && acct.AccountNumber == accountNumber {
			cp := *acct
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (b *fakeBank) Transfer(ctx context.Context, t models.LedgerTransfer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if b.applied[t.TransactionID] {
		return models.ErrDuplicateTransaction
	}
	from := b.accounts[t.FromAccountID]
	if from.Balance < t.Amount+t.Fee {
		return models.ErrInsufficientFunds
	}
	from.Balance -= t.Amount + t.Fee
	if to, ok := b.accounts[t.ToAccountID]; ok {
		to.Balance += t.Amount
	}
	b.applied[t.TransactionID] = true
	b.transfers = append(b.transfers, t)
	return nil
}

func (b *fakeBank) balances() map[string]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int64, len(b.accounts))
	for id, acct := range b.accounts {
		out[id] = acct.Balance
	}
	return out
}

type fakePayees struct {
	mu   sync.Mutex
	rows map[string]*models.Payee
}

func (p *fakePayees) Get(ctx context.Context, ownerID, payeeID string) (*models.Payee, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	row, ok := p.rows[payeeID]
	if !ok || row.OwnerID != ownerID {
		return nil, models.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (p *fakePayees) Resolve(ctx context.Context, payee *models.Payee) (*models.Payee, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, row := range p.rows {
		if row.OwnerID == payee.OwnerID && row.SortCode == payee.SortCode && row.AccountNumber == payee.AccountNumber {
			cp := *row
			return &cp, nil
		}
	}
	cp := *payee
	p.rows[payee.ID] = &cp
	return payee, nil
}

func (p *fakePayees) Update(ctx context.Context, ownerID, payeeID string, update models.PayeeUpdate) (*models.Payee, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	row, ok := p.rows[payeeID]
	if !ok || row.OwnerID != ownerID {
		return nil, models.ErrNotFound
	}
	if update.FirstUsedAt != nil {
		row.FirstUsedAt = update.FirstUsedAt
	}
	if update.Reference != nil {
		row.Reference = *update.Reference
	}
	if update.Favourite != nil {
		row.Favourite = *update.Favourite
	}
	cp := *row
	return &cp, nil
}

func (p *fakePayees) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rows)
}

type fakeAuth struct {
	pins     map[string]string
	tier     models.KYCTier
	verified map[string]bool
}

func (a *fakeAuth) VerifyPIN(ctx context.Context, userID, pin string) (bool, error) {
	return a.pins[userID] == pin, nil
}

func (a *fakeAuth) Tier(ctx context.Context, userID string) (models.KYCTier, error) {
	return a.tier, nil
}

func (a *fakeAuth) IsChallengeVerified(ctx context.Context, userID, challengeID string) (bool, error) {
	return a.verified[challengeID], nil
}

type fakeHistory struct {
	mu     sync.Mutex
	recent []models.PaymentRecord
	total  int64
}

func (h *fakeHistory) OutboundTotal(ctx context.Context, userID string, since time.Time) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total, nil
}

func (h *fakeHistory) RecentPayments(ctx context.Context, userID string, since time.Time) ([]models.PaymentRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recent, nil
}

type recorder struct {
	mu          sync.Mutex
	auditErr    error
	events      []models.AuditEvent
	alerts      []aml.Alert
	outcomes    map[string]Outcome
	invalidated [][]string
	settlements []models.SettlementInstruction
	orders      []*models.StandingOrder
}

func (r *recorder) Record(ctx context.Context, event models.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.auditErr != nil {
		return r.auditErr
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) FindBlock(ctx context.Context, userID, intentID string) (models.Stage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.UserID != userID || e.IntentID != intentID {
			continue
		}
		if e.EventType == "fraud_block" || e.EventType == "aml_block" {
			return models.Stage(e.Stage), nil
		}
	}
	return "", models.ErrNotFound
}

func (r *recorder) forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = map[string]Outcome{}
}

func (r *recorder) RecordAlerts(ctx context.Context, intentID, userID string, alerts []aml.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alerts...)
	return nil
}

func (r *recorder) Load(ctx context.Context, userID, intentID string) (Outcome, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out, ok := r.outcomes[userID+"/"+intentID]
	return out, ok, nil
}

func (r *recorder) Save(ctx context.Context, userID, intentID string, outcome Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[userID+"/"+intentID] = outcome
	return nil
}

func (r *recorder) Invalidate(ctx context.Context, userID string, accountIDs ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, accountIDs)
	return nil
}

func (r *recorder) Enqueue(ctx context.Context, instruction models.SettlementInstruction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settlements = append(r.settlements, instruction)
	return nil
}

func (r *recorder) CreateStandingOrder(ctx context.Context, order *models.StandingOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, order)
	return nil
}

func (r *recorder) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []string
	for _, e := range r.events {
		types = append(types, e.EventType)
	}
	return types
}

// brokenOutcomes is an outcome memo that never holds anything.
type brokenOutcomes struct {
	loadErr error
	saveErr error
}

func (b brokenOutcomes) Load(ctx context.Context, userID, intentID string) (Outcome, bool, error) {
	return nil, false, b.loadErr
}

func (b brokenOutcomes) Save(ctx context.Context, userID, intentID string, outcome Outcome) error {
	return b.saveErr
}

type holderNames map[string]string

func (h holderNames) HolderName(ctx context.Context, sortCode, accountNumber string) (string, error) {
	name, ok := h[sortCode+accountNumber]
	if !ok {
		return "", cop.ErrHolderNotFound
	}
	return name, nil
}

type countingFraud struct {
	FraudScorer
	calls int
}

func (c *countingFraud) Score(ctx context.Context, in fraud.Input) (fraud.Assessment, error) {
	c.calls++
	return c.FraudScorer.Score(ctx, in)
}

const (
	userID = "user-1"
	pin    = "1234"

	barclaysSortCode = "202959"
	barclaysAccount  = "63748738"
)

// harness wires the real stage implementations to in-memory collaborators.
type harness struct {
	now     time.Time
	bank    *fakeBank
	payees  *fakePayees
	auth    *fakeAuth
	history *fakeHistory
	rec     *recorder
	holders holderNames
	fraud   *countingFraud
	deps    Dependencies
	cfg     config.PipelineConfig
	orch    *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }
	opened := h.now.AddDate(-2, 0, 0)

	h.bank = &fakeBank{
		applied: map[string]bool{},
		accounts: map[string]*models.Account{
			"acc-main":      {ID: "acc-main", OwnerID: userID, SortCode: "040004", AccountNumber: "11112222", HolderName: "Alice Walker", Balance: 5_000_000, Status: models.AccountStatusActive, OpenedAt: opened},
			"acc-savings":   {ID: "acc-savings", OwnerID: userID, SortCode: "040004", AccountNumber: "33334444", HolderName: "Alice Walker", Balance: 100_000, Status: models.AccountStatusActive, OpenedAt: opened},
			"acc-other":     {ID: "acc-other", OwnerID: "user-2", SortCode: "040004", AccountNumber: "55556666", HolderName: "Bob Other", Balance: 0, Status: models.AccountStatusActive, OpenedAt: opened},
			"clearing-fps":  {ID: "clearing-fps", OwnerID: "bank", Status: models.AccountStatusActive},
			"clearing-bacs": {ID: "clearing-bacs", OwnerID: "bank", Status: models.AccountStatusActive},
		},
	}
	h.payees = &fakePayees{rows: map[string]*models.Payee{}}
	h.auth = &fakeAuth{pins: map[string]string{userID: pin}, tier: models.TierStandard, verified: map[string]bool{}}
	h.history = &fakeHistory{}
	h.rec = &recorder{outcomes: map[string]Outcome{}}
	h.holders = holderNames{}

	cfg := config.LoadRiskConfig()
	checksum, err := modulus.NewValidator()
	require.NoError(t, err)
	monitor, err := aml.NewMonitor(cfg.AML, h.history, clock)
	require.NoError(t, err)
	h.fraud = &countingFraud{FraudScorer: fraud.NewEngine(cfg.Fraud, h.history, clock)}

	h.deps = Dependencies{
		PIN:        h.auth,
		Accounts:   h.bank,
		KYC:        h.auth,
		Payees:     h.payees,
		Ledger:     h.bank,
		Schedules:  h.rec,
		Audit:      h.rec,
		Compliance: h.rec,
		Outcomes:   h.rec,
		Blocks:     h.rec,
		Cache:      h.rec,
		Settlement: h.rec,
		Checksum:   checksum,
		CoP:        cop.NewMatcher(h.holders),
		Fraud:      h.fraud,
		AML:        monitor,
		Limits:     limits.NewEnforcer(cfg.Limits, h.history, clock),
		CoolingOff: cooloff.NewEnforcer(cfg.Cooling),
		StepUp:     stepup.NewGate(cfg.StepUp, nil, nil, clock),
		Challenges: h.auth,
		Rails:      rails.NewSelector(cfg.Rails),
		Now:        clock,
	}
	h.cfg = cfg.Pipeline
	h.orch = New(h.deps, h.cfg)
	return h
}

// rewire rebuilds the orchestrator after a test swaps a collaborator.
func (h *harness) rewire(change func(*Dependencies)) {
	change(&h.deps)
	h.orch = New(h.deps, h.cfg)
}

func (h *harness) savePayee(p models.Payee) {
	h.payees.rows[p.ID] = &p
}

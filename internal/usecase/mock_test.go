//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/domain/ports/repository"
)

// -----------------------------
// Utilities
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func clonePayment(p *model.Payment) *model.Payment {
	cp := *p
	return &cp
}

// paidPayment builds a paid row whose expiry is relative to now.
func paidPayment(ref, subject, group string, paidAt time.Time, tier model.DurationTier) *model.Payment {
	p, err := model.NewPendingPayment(ref, subject, group, decimal.NewFromInt(5000), tier, "NGN", "")
	if err != nil {
		panic(err)
	}
	p.ApplyPaid(model.PaidDetails{ProcessorRef: "tx-" + ref, PaidAt: paidAt})
	return p
}

// =============================
// Repositories
// =============================

// ---- MockPaymentRepo ----

// MockPaymentRepo mirrors the conditional-update semantics of the SQL repository.
type MockPaymentRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Payment // by ID

	InsertErr   error
	FindErr     error
	ListErr     error
	MarkPaidErr error
	ExpireErr   map[string]error // by ID
	Revenue     []*model.OwnerRevenue
	// BeforeMarkPaid runs inside MarkPaidIfUnpaid before the condition is
	// checked; tests use it to simulate a concurrent writer.
	BeforeMarkPaid func(id string)
	// BeforeExpire is the same hook for ExpireIfActive.
	BeforeExpire func(id string)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{rows: map[string]*model.Payment{}, ExpireErr: map[string]error{}}
}

// Seed stores rows as-is.
func (m *MockPaymentRepo) Seed(ps ...*model.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range ps {
		m.rows[p.ID] = clonePayment(p)
	}
}

// Get returns the stored row by reference, or nil.
func (m *MockPaymentRepo) Get(reference string) *model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.Reference == reference {
			return clonePayment(p)
		}
	}
	return nil
}

func (m *MockPaymentRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *MockPaymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Reference == p.Reference {
			return domain.ErrDuplicateReference
		}
	}
	m.rows[p.ID] = clonePayment(p)
	return nil
}

// newestWhere returns matching rows newest first. Caller holds the lock.
func (m *MockPaymentRepo) newestWhere(match func(p *model.Payment) bool) []*model.Payment {
	var out []*model.Payment
	for _, p := range m.rows {
		if match(p) {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MockPaymentRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Payment, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.newestWhere(func(p *model.Payment) bool { return p.Reference == reference })
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return rows[0], nil
}

func (m *MockPaymentRepo) FindByTransactionRef(ctx context.Context, tx repository.Tx, transactionRef string) (*model.Payment, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	if transactionRef == "" {
		return nil, domain.ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.newestWhere(func(p *model.Payment) bool { return p.TransactionRef == transactionRef })
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return rows[0], nil
}

func (m *MockPaymentRepo) FindOpenByAttributes(ctx context.Context, tx repository.Tx, subjectID, groupID string, amount decimal.Decimal) ([]*model.Payment, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newestWhere(func(p *model.Payment) bool {
		return p.SubjectID == subjectID && p.GroupID == groupID && p.Amount.Equal(amount) && p.Status.IsOpen()
	}), nil
}

func (m *MockPaymentRepo) ListBySubjectAndGroup(ctx context.Context, tx repository.Tx, subjectID, groupID string) ([]*model.Payment, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newestWhere(func(p *model.Payment) bool { return p.SubjectID == subjectID && p.GroupID == groupID }), nil
}

func (m *MockPaymentRepo) MarkPaidIfUnpaid(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	if m.BeforeMarkPaid != nil {
		m.BeforeMarkPaid(p.ID)
	}
	if m.MarkPaidErr != nil {
		return false, m.MarkPaidErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[p.ID]
	if !ok || cur.Status.IsPaidFamily() {
		return false, nil
	}
	m.rows[p.ID] = clonePayment(p)
	return true, nil
}

func (m *MockPaymentRepo) MarkFailedIfOpen(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[p.ID]
	if !ok || !cur.Status.IsOpen() {
		return false, nil
	}
	cur.Status = model.PaymentStatusFailed
	cur.FailureReason = p.FailureReason
	return true, nil
}

func (m *MockPaymentRepo) ExpireIfActive(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	if err := m.ExpireErr[id]; err != nil {
		return false, err
	}
	if m.BeforeExpire != nil {
		m.BeforeExpire(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[id]
	if !ok || cur.SubscriptionStatus != model.SubscriptionStatusActive {
		return false, nil
	}
	cur.SubscriptionStatus = model.SubscriptionStatusExpired
	return true, nil
}

func (m *MockPaymentRepo) ListActiveSubscriptions(ctx context.Context, tx repository.Tx, afterID string, limit int) ([]*model.Payment, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.rows {
		if p.SubscriptionStatus == model.SubscriptionStatusActive && p.ID > afterID {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockPaymentRepo) ListRevocationCandidates(ctx context.Context, tx repository.Tx, now time.Time) ([]model.AccessPair, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entitled := map[model.AccessPair]bool{}
	seen := map[model.AccessPair]bool{}
	for _, p := range m.rows {
		pair := model.AccessPair{SubjectID: p.SubjectID, GroupID: p.GroupID}
		seen[pair] = true
		if p.IsEntitled(now) {
			entitled[pair] = true
		}
	}
	var out []model.AccessPair
	for pair := range seen {
		if !entitled[pair] {
			out = append(out, pair)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupID != out[j].GroupID {
			return out[i].GroupID < out[j].GroupID
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	return out, nil
}

func (m *MockPaymentRepo) List(ctx context.Context, tx repository.Tx, f repository.PaymentFilter) ([]*model.Payment, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	rows := m.newestWhere(func(p *model.Payment) bool { return f.Status == "" || p.Status == f.Status })
	m.mu.Unlock()
	if f.Offset >= len(rows) {
		return nil, nil
	}
	rows = rows[f.Offset:]
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows, nil
}

// RevenueByOwnerSince needs the group table; tests set Revenue directly.
func (m *MockPaymentRepo) RevenueByOwnerSince(ctx context.Context, tx repository.Tx, since time.Time) ([]*model.OwnerRevenue, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Revenue, nil
}

func (m *MockPaymentRepo) CountEntitled(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.rows {
		if p.IsEntitled(now) {
			n++
		}
	}
	return n, nil
}

// ---- MockGroupRepo ----

type MockGroupRepo struct {
	mu     sync.Mutex
	groups map[string]*model.Group

	UpsertErr error
}

var _ repository.GroupRepository = (*MockGroupRepo)(nil)

func NewMockGroupRepo(gs ...*model.Group) *MockGroupRepo {
	m := &MockGroupRepo{groups: map[string]*model.Group{}}
	for _, g := range gs {
		cp := *g
		m.groups[g.GroupID] = &cp
	}
	return m
}

func (m *MockGroupRepo) Upsert(ctx context.Context, tx repository.Tx, g *model.Group) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	m.groups[g.GroupID] = &cp
	return nil
}

func (m *MockGroupRepo) FindByID(ctx context.Context, tx repository.Tx, groupID string) (*model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *g
	cp.SubscribedUsers = append([]string(nil), g.SubscribedUsers...)
	return &cp, nil
}

func (m *MockGroupRepo) FindByIDs(ctx context.Context, tx repository.Tx, groupIDs []string) ([]*model.Group, error) {
	var out []*model.Group
	for _, id := range groupIDs {
		if g, err := m.FindByID(ctx, tx, id); err == nil {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *MockGroupRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Group
	for _, g := range m.groups {
		if g.OwnerID == ownerID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockGroupRepo) SetActive(ctx context.Context, tx repository.Tx, groupID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return domain.ErrNotFound
	}
	g.IsActive = active
	return nil
}

func (m *MockGroupRepo) AddSubscriber(ctx context.Context, tx repository.Tx, groupID, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return domain.ErrNotFound
	}
	if !g.HasSubscriber(subjectID) {
		g.SubscribedUsers = append(g.SubscribedUsers, subjectID)
	}
	return nil
}

func (m *MockGroupRepo) RemoveSubscriber(ctx context.Context, tx repository.Tx, groupID, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return domain.ErrNotFound
	}
	kept := g.SubscribedUsers[:0]
	for _, s := range g.SubscribedUsers {
		if s != subjectID {
			kept = append(kept, s)
		}
	}
	g.SubscribedUsers = kept
	return nil
}

func (m *MockGroupRepo) CountGroupsAndOwners(ctx context.Context, tx repository.Tx) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owners := map[string]bool{}
	for _, g := range m.groups {
		owners[g.OwnerID] = true
	}
	return len(m.groups), len(owners), nil
}

// ---- MockWebhookEventRepo ----

type MockWebhookEventRepo struct {
	mu     sync.Mutex
	nextID int64
	events map[string]*model.WebhookEvent // by processor/event id

	RecordErr error
}

var _ repository.WebhookEventRepository = (*MockWebhookEventRepo)(nil)

func NewMockWebhookEventRepo() *MockWebhookEventRepo {
	return &MockWebhookEventRepo{events: map[string]*model.WebhookEvent{}}
}

func (m *MockWebhookEventRepo) Record(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) (*model.WebhookEvent, bool, error) {
	if m.RecordErr != nil {
		return nil, false, m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := e.Processor + "/" + e.EventID
	if cur, ok := m.events[key]; ok {
		cp := *cur
		return &cp, false, nil
	}
	m.nextID++
	cp := *e
	cp.ID = m.nextID
	m.events[key] = &cp
	out := cp
	return &out, true, nil
}

func (m *MockWebhookEventRepo) MarkOutcome(ctx context.Context, tx repository.Tx, id int64, outcome model.WebhookOutcome, processingErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			now := time.Now().UTC()
			e.Outcome = outcome
			e.ProcessingError = processingErr
			e.ProcessedAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockWebhookEventRepo) Get(processor, eventID string) *model.WebhookEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[processor+"/"+eventID]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// ---- MockSessionRepo ----

type MockSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.BotSession
}

var _ repository.SessionRepository = (*MockSessionRepo)(nil)

func NewMockSessionRepo() *MockSessionRepo {
	return &MockSessionRepo{sessions: map[string]*model.BotSession{}}
}

func (m *MockSessionRepo) Get(ctx context.Context, subjectID string) (*model.BotSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[subjectID]
	if !ok {
		return nil, domain.ErrSessionExpired
	}
	cp := *s
	cp.Data = map[string]string{}
	for k, v := range s.Data {
		cp.Data[k] = v
	}
	return &cp, nil
}

func (m *MockSessionRepo) Save(ctx context.Context, s *model.BotSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.SubjectID] = &cp
	return nil
}

func (m *MockSessionRepo) Clear(ctx context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, subjectID)
	return nil
}

// ---- MockPayoutAccountRepo ----

type MockPayoutAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*model.PayoutAccount
}

var _ repository.PayoutAccountRepository = (*MockPayoutAccountRepo)(nil)

func NewMockPayoutAccountRepo() *MockPayoutAccountRepo {
	return &MockPayoutAccountRepo{accounts: map[string]*model.PayoutAccount{}}
}

func (m *MockPayoutAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.PayoutAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.accounts[a.OwnerID] = &cp
	return nil
}

func (m *MockPayoutAccountRepo) FindByOwner(ctx context.Context, tx repository.Tx, ownerID string) (*model.PayoutAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// ---- MockTxManager ----

type MockTxManager struct {
	Calls int
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- MockChat ----

// MockChat implements adapter.ChatPlatform and adapter.Messenger.
type MockChat struct {
	mu sync.Mutex

	Statuses map[string]adapter.MembershipStatus // "group/subject"
	Errors   map[string]error                    // "op:group/subject"

	Approved []string
	Declined []string
	Banned   []string
	Unbanned []string
	DMs      map[string][]string
}

var (
	_ adapter.ChatPlatform = (*MockChat)(nil)
	_ adapter.Messenger    = (*MockChat)(nil)
)

func NewMockChat() *MockChat {
	return &MockChat{
		Statuses: map[string]adapter.MembershipStatus{},
		Errors:   map[string]error{},
		DMs:      map[string][]string{},
	}
}

func key(groupID, subjectID string) string { return groupID + "/" + subjectID }

func (m *MockChat) SetStatus(groupID, subjectID string, st adapter.MembershipStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses[key(groupID, subjectID)] = st
}

func (m *MockChat) fail(op, groupID, subjectID string) error {
	if err := m.Errors[op+":"+key(groupID, subjectID)]; err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMembershipAPI, op, err)
	}
	return nil
}

func (m *MockChat) ApproveJoinRequest(ctx context.Context, groupID, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("approve", groupID, subjectID); err != nil {
		return err
	}
	m.Approved = append(m.Approved, key(groupID, subjectID))
	return nil
}

func (m *MockChat) DeclineJoinRequest(ctx context.Context, groupID, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("decline", groupID, subjectID); err != nil {
		return err
	}
	m.Declined = append(m.Declined, key(groupID, subjectID))
	return nil
}

func (m *MockChat) BanMember(ctx context.Context, groupID, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ban", groupID, subjectID); err != nil {
		return err
	}
	m.Banned = append(m.Banned, key(groupID, subjectID))
	m.Statuses[key(groupID, subjectID)] = adapter.MembershipKicked
	return nil
}

func (m *MockChat) UnbanMember(ctx context.Context, groupID, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("unban", groupID, subjectID); err != nil {
		return err
	}
	m.Unbanned = append(m.Unbanned, key(groupID, subjectID))
	m.Statuses[key(groupID, subjectID)] = adapter.MembershipLeft
	return nil
}

func (m *MockChat) GetMembershipStatus(ctx context.Context, groupID, subjectID string) (adapter.MembershipStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("get", groupID, subjectID); err != nil {
		return "", err
	}
	st, ok := m.Statuses[key(groupID, subjectID)]
	if !ok {
		return adapter.MembershipLeft, nil
	}
	return st, nil
}

func (m *MockChat) SendDirectMessage(ctx context.Context, subjectID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DMs[subjectID] = append(m.DMs[subjectID], text)
	return nil
}

func (m *MockChat) SendButtons(ctx context.Context, subjectID, text string, rows [][]adapter.InlineButton) error {
	return m.SendDirectMessage(ctx, subjectID, text)
}

// ---- MockPublisher ----

type MockPublisher struct {
	mu     sync.Mutex
	Events []adapter.DomainEvent
	Err    error
}

var _ adapter.EventPublisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, ev adapter.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return m.Err
}

func (m *MockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Type)
	}
	return out
}

// ---- MockResolver ----

type MockResolver struct {
	Banks    []adapter.Bank
	Accounts map[string]string // "bank/number" -> name
	BanksErr error
	Err      error
	Calls    int
}

var _ adapter.AccountResolver = (*MockResolver)(nil)

func (m *MockResolver) ListBanks(ctx context.Context) ([]adapter.Bank, error) {
	if m.BanksErr != nil {
		return nil, m.BanksErr
	}
	return m.Banks, nil
}

func (m *MockResolver) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*adapter.ResolvedAccount, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	name, ok := m.Accounts[bankCode+"/"+accountNumber]
	if !ok {
		return nil, fmt.Errorf("%w: account not found", domain.ErrResolution)
	}
	return &adapter.ResolvedAccount{AccountNumber: accountNumber, AccountName: name, BankCode: bankCode}, nil
}

// ---- MockTranslator ----

// MockTranslator renders "key|arg1|arg2" so tests can assert on both.
type MockTranslator struct{}

func (MockTranslator) T(key string, args ...interface{}) string {
	if len(args) == 0 {
		return key
	}
	parts := []string{key}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, "|")
}

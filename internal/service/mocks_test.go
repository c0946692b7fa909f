package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
)

// --- Mocks ---

// memStore is an in-memory TransactionStore + UserStore.
type memStore struct {
	mu        sync.Mutex
	seq       int
	txs       []domain.Transaction
	users     map[string]string // address -> userID
	createErr error
	lookupErr error
	creates   int
}

func newMemStore() *memStore {
	return &memStore{users: map[string]string{}}
}

func (m *memStore) bind(address, userID string) *memStore {
	m.users[address] = userID
	return m
}

func (m *memStore) CreateTransaction(_ context.Context, userID string, in *domain.NewTransaction) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.seq++
	tx := domain.Transaction{
		ID:          fmt.Sprintf("tx-%d", m.seq),
		UserID:      userID,
		Kind:        in.Kind,
		Amount:      in.Amount,
		Description: in.Description,
		Category:    in.Category,
		Date:        in.Date,
		Origin:      in.Origin,
		CreatedAt:   time.Now(),
	}
	m.txs = append(m.txs, tx)
	return &tx, nil
}

func (m *memStore) UpdateTransaction(_ context.Context, id, userID string, in *domain.TransactionUpdate) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.txs {
		if m.txs[i].ID == id && m.txs[i].UserID == userID {
			m.txs[i].Kind = in.Kind
			m.txs[i].Amount = in.Amount
			m.txs[i].Description = in.Description
			m.txs[i].Category = in.Category
			m.txs[i].Date = in.Date
			tx := m.txs[i]
			return &tx, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
}

func (m *memStore) DeleteTransaction(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.txs {
		if m.txs[i].ID == id && m.txs[i].UserID == userID {
			m.txs = append(m.txs[:i], m.txs[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "transaction", ID: id}
}

func (m *memStore) ListTransactions(_ context.Context, userID string) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Transaction{}
	for _, t := range m.txs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) FindUserByChannelAddress(_ context.Context, address string) (*domain.User, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	id, ok := m.users[address]
	if !ok {
		return nil, nil
	}
	return &domain.User{ID: id, WhatsAppNumber: address}, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txs)
}

// mockExtractor answers by message text.
type mockExtractor struct {
	mu      sync.Mutex
	results map[string]*domain.ExtractionResult
	err     error
	delay   time.Duration
	calls   int
}

func (m *mockExtractor) Extract(ctx context.Context, msg *domain.InboundMessage) (*domain.ExtractionResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	key := msg.Text
	if key == "" && len(msg.Audio) > 0 {
		key = "audio:" + string(msg.Audio)
	}
	if r, ok := m.results[key]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, fmt.Errorf("unexpected message %q", key)
}

// scenarioExtractor knows the phrases used across the tests.
func scenarioExtractor() *mockExtractor {
	return &mockExtractor{results: map[string]*domain.ExtractionResult{
		"vendi um bolo por 35 reais": {Description: "Venda de bolo", Amount: amt("35"), Kind: domain.KindIncome, Category: "Vendas", PromptTokens: 40, CompletionTokens: 12},
		"paguei 20 de uber":          {Description: "Uber", Amount: amt("20"), Kind: domain.KindExpense, Category: "Transporte"},
		"vendi um bolo":              {Description: "Venda de bolo", Amount: amt("0"), Kind: domain.KindIncome, Category: "Vendas"},
		"vendi um bolo por 150":      {Description: "Venda de bolo", Amount: amt("150.00"), Kind: domain.KindIncome, Category: "Vendas"},
		"audio:OggS-gastei-12":       {Description: "Pão", Amount: amt("12"), Kind: domain.KindExpense, Category: "Alimentação"},
	}}
}

func amt(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// mockMedia serves voice notes by URL.
type mockMedia struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
	calls int
}

func (m *mockMedia) Fetch(_ context.Context, url string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, "", m.err
	}
	b, ok := m.files[url]
	if !ok {
		return nil, "", fmt.Errorf("no media at %s", url)
	}
	return b, "audio/ogg", nil
}

type mockSender struct {
	mu   sync.Mutex
	sent []string
	to   []string
	err  error
}

func (m *mockSender) Send(_ context.Context, to, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.sent = append(m.sent, text)
	return m.err
}

type staleRecorder struct {
	mu    sync.Mutex
	users []string
}

func (s *staleRecorder) MarkStale(_ context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, userID)
}

// fakeRenderer renders a TwiML-like body without the SDK.
type fakeRenderer struct{}

func (fakeRenderer) Render(text string) (string, error) {
	if text == "" {
		return "<Response></Response>", nil
	}
	return "<Response><Message>" + text + "</Message></Response>", nil
}

func (fakeRenderer) ContentType() string { return "text/xml" }

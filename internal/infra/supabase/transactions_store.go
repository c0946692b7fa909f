package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/resilience"
)

// ============================================================
// TransactionStore implementation via PostgREST
// ============================================================

// transactionRow maps the transactions table columns.
type transactionRow struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
	Source      string          `json:"source"`
	CreatedAt   string          `json:"created_at"`
}

func (r transactionRow) toDomain() (domain.Transaction, error) {
	kind, ok := domain.ParseKind(r.Type)
	if !ok {
		return domain.Transaction{}, fmt.Errorf("transaction %s: unknown type %q", r.ID, r.Type)
	}
	date, err := parseDate(r.Date)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", r.ID, err)
	}
	created, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)

	return domain.Transaction{
		ID:          r.ID,
		UserID:      r.UserID,
		Kind:        kind,
		Amount:      r.Amount,
		Description: r.Description,
		Category:    r.Category,
		Date:        date,
		Origin:      domain.ParseOrigin(r.Source),
		CreatedAt:   created,
	}, nil
}

// parseDate accepts a bare date column or a timestamp.
func parseDate(s string) (time.Time, error) {
	if len(s) >= len(domain.DateLayout) {
		if t, err := time.ParseInLocation(domain.DateLayout, s[:len(domain.DateLayout)], time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func decodeRows(body []byte) ([]domain.Transaction, error) {
	var rows []transactionRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func ownedPath(id, userID string) string {
	return fmt.Sprintf("%s?id=eq.%s&user_id=eq.%s", transactionsTable, url.QueryEscape(id), url.QueryEscape(userID))
}

// CreateTransaction inserts exactly one row. It goes through the breaker once and is never retried.
func (c *Client) CreateTransaction(ctx context.Context, userID string, in *domain.NewTransaction) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateTransaction")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("transaction.origin", string(in.Origin)),
	)

	payload := map[string]any{
		"id":          uuid.NewString(),
		"user_id":     userID,
		"type":        in.Kind.StorageValue(),
		"amount":      in.Amount.StringFixed(2),
		"description": in.Description,
		"category":    in.Category,
		"date":        in.Date.Format(domain.DateLayout),
		"source":      in.Origin.StorageValue(),
	}

	body, err := resilience.Execute(c.cb, func() ([]byte, error) {
		return c.doPost(ctx, transactionsTable, payload)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	created, err := decodeRows(body)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}
	if len(created) == 0 {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: fmt.Errorf("insert returned no row")}
	}

	c.logger.Info("transaction created",
		zap.String("transaction_id", created[0].ID),
		zap.String("user_id", userID),
		zap.String("origin", string(in.Origin)),
	)
	return &created[0], nil
}

// UpdateTransaction patches the editable fields of a row owned by userID.
func (c *Client) UpdateTransaction(ctx context.Context, id, userID string, in *domain.TransactionUpdate) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id), attribute.String("user.id", userID))

	payload := map[string]any{
		"type":        in.Kind.StorageValue(),
		"amount":      in.Amount.StringFixed(2),
		"description": in.Description,
		"category":    in.Category,
		"date":        in.Date.Format(domain.DateLayout),
	}

	body, err := resilience.Execute(c.cb, func() ([]byte, error) {
		return c.doPatch(ctx, ownedPath(id, userID), payload)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}
	if isEmpty(body) {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}

	updated, err := decodeRows(body)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}
	return &updated[0], nil
}

// DeleteTransaction removes a row owned by userID.
func (c *Client) DeleteTransaction(ctx context.Context, id, userID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id), attribute.String("user.id", userID))

	body, err := resilience.Execute(c.cb, func() ([]byte, error) {
		return c.doDelete(ctx, ownedPath(id, userID))
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}
	if isEmpty(body) {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return nil
}

// ListTransactions returns every transaction of userID, newest first.
func (c *Client) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var transactions []domain.Transaction

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("%s?user_id=eq.%s&order=date.desc,created_at.desc", transactionsTable, url.QueryEscape(userID))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return retryable(err)
			}

			if isEmpty(body) {
				transactions = []domain.Transaction{}
				return nil
			}

			rows, err := decodeRows(body)
			if err != nil {
				return resilience.Permanent(err)
			}
			transactions = rows
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	span.SetAttributes(attribute.Int("transactions.count", len(transactions)))
	return transactions, nil
}

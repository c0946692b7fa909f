// Package postgres is the direct-SQL persistence backend (STORE_BACKEND=postgres).
// It talks to the same schema Supabase exposes, through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/resilience"
)

var tracer = otel.Tracer("postgres")

// Connect parses databaseURL, sizes the pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return pool, nil
}

// Store implements port.Store on top of a pgx pool.
type Store struct {
	db     *pgxpool.Pool
	cfg    resilience.Config
	logger *zap.Logger
}

// NewStore creates a Store.
func NewStore(db *pgxpool.Pool, cfg resilience.Config, logger *zap.Logger) *Store {
	return &Store{db: db, cfg: cfg, logger: logger}
}

// Ping verifies the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

const transactionColumns = `id::text, user_id::text, type, amount::text, description, category, date, source, created_at`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		t                    domain.Transaction
		kind, amount, source string
	)
	if err := row.Scan(&t.ID, &t.UserID, &kind, &amount, &t.Description, &t.Category, &t.Date, &source, &t.CreatedAt); err != nil {
		return domain.Transaction{}, err
	}

	k, ok := domain.ParseKind(kind)
	if !ok {
		return domain.Transaction{}, fmt.Errorf("transaction %s: unknown type %q", t.ID, kind)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	t.Kind = k
	t.Amount = d
	t.Origin = domain.ParseOrigin(source)
	// date columns carry no zone; pin to the local calendar day.
	t.Date = time.Date(t.Date.Year(), t.Date.Month(), t.Date.Day(), 0, 0, 0, 0, time.Local)
	return t, nil
}

// CreateTransaction issues a single INSERT. It is never retried.
func (s *Store) CreateTransaction(ctx context.Context, userID string, in *domain.NewTransaction) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	query := `
		INSERT INTO transactions (id, user_id, type, amount, description, category, date, source)
		VALUES ($1::uuid, $2, $3, $4::numeric, $5, $6, $7::date, $8)
		RETURNING ` + transactionColumns

	t, err := scanTransaction(s.db.QueryRow(ctx, query,
		uuid.NewString(), userID, in.Kind.StorageValue(), in.Amount.StringFixed(2),
		in.Description, in.Category, in.Date.Format(domain.DateLayout), in.Origin.StorageValue(),
	))
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres/transactions", Err: err}
	}

	s.logger.Info("transaction created",
		zap.String("transaction_id", t.ID),
		zap.String("user_id", userID),
		zap.String("origin", string(in.Origin)),
	)
	return &t, nil
}

// UpdateTransaction updates the editable fields of a row owned by userID.
func (s *Store) UpdateTransaction(ctx context.Context, id, userID string, in *domain.TransactionUpdate) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id), attribute.String("user.id", userID))

	if _, err := uuid.Parse(id); err != nil {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}

	query := `
		UPDATE transactions
		SET type = $3, amount = $4::numeric, description = $5, category = $6, date = $7::date
		WHERE id = $1::uuid AND user_id = $2
		RETURNING ` + transactionColumns

	t, err := scanTransaction(s.db.QueryRow(ctx, query,
		id, userID, in.Kind.StorageValue(), in.Amount.StringFixed(2),
		in.Description, in.Category, in.Date.Format(domain.DateLayout),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres/transactions", Err: err}
	}
	return &t, nil
}

// DeleteTransaction deletes a row owned by userID.
func (s *Store) DeleteTransaction(ctx context.Context, id, userID string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id), attribute.String("user.id", userID))

	if _, err := uuid.Parse(id); err != nil {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1::uuid AND user_id = $2`, id, userID)
	if err != nil {
		return &domain.ErrExternalService{Service: "postgres/transactions", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return nil
}

// ListTransactions returns every transaction of userID, newest first.
func (s *Store) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var out []domain.Transaction
	err := resilience.RetryWithBackoff(ctx, s.cfg, func() error {
		rows, err := s.db.Query(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 ORDER BY date DESC, created_at DESC`,
			userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			t, err := scanTransaction(rows)
			if err != nil {
				return resilience.Permanent(err)
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres/transactions", Err: err}
	}
	if out == nil {
		out = []domain.Transaction{}
	}
	return out, nil
}

// FindUserByChannelAddress returns (nil, nil) when no user is bound to address.
func (s *Store) FindUserByChannelAddress(ctx context.Context, address string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FindUserByChannelAddress")
	defer span.End()

	var (
		u     domain.User
		found bool
	)
	err := s.db.QueryRow(ctx,
		`SELECT id::text, COALESCE(name, ''), whatsapp_number FROM users WHERE whatsapp_number = $1 LIMIT 1`,
		address,
	).Scan(&u.ID, &u.Name, &u.WhatsAppNumber)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = nil
	case err == nil:
		found = true
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres/users", Err: err}
	}

	span.SetAttributes(attribute.Bool("sender.registered", found))
	if !found {
		return nil, nil
	}
	return &u, nil
}

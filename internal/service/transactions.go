package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/port"
)

var txTracer = otel.Tracer("service/transactions")

// TransactionService handles manual CRUD from the dashboard.
// Every operation is scoped by the session user.
type TransactionService struct {
	store     port.TransactionStore
	committer *Committer
	notifier  port.StaleNotifier
	logger    *zap.Logger
}

// NewTransactionService creates a new transaction service.
func NewTransactionService(store port.TransactionStore, committer *Committer, notifier port.StaleNotifier, logger *zap.Logger) *TransactionService {
	return &TransactionService{store: store, committer: committer, notifier: notifier, logger: logger}
}

func (s *TransactionService) List(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.List")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	return s.store.ListTransactions(ctx, userID)
}

// Create records a manual entry with origin web. An empty date means today.
func (s *TransactionService) Create(ctx context.Context, userID string, in *domain.TransactionInput) (*domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.Create")
	defer span.End()

	kind, date, err := parseInput(in)
	if err != nil {
		return nil, err
	}

	amount := in.Amount
	return s.committer.Commit(ctx, userID, domain.OriginWeb, domain.ExtractionResult{
		Description: in.Description,
		Amount:      &amount,
		Kind:        kind,
		Category:    in.Category,
	}, date)
}

// Update edits description, amount, category, date and kind. Owner and id never change.
func (s *TransactionService) Update(ctx context.Context, userID, id string, in *domain.TransactionInput) (*domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	kind, date, err := parseInput(in)
	if err != nil {
		return nil, err
	}
	if date == nil {
		return nil, &domain.ErrValidation{Field: "date", Message: "data obrigatória (AAAA-MM-DD)"}
	}
	if !in.Amount.Round(2).IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "valor deve ser maior que zero"}
	}

	category := normalizeCategory(in.Category)
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = category
	}

	tx, err := s.store.UpdateTransaction(ctx, id, userID, &domain.TransactionUpdate{
		Kind:        kind,
		Amount:      in.Amount.Round(2),
		Description: description,
		Category:    category,
		Date:        calendarDay(*date),
	})
	if err != nil {
		return nil, err
	}

	s.markStale(ctx, userID)
	return tx, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := txTracer.Start(ctx, "TransactionService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	if err := s.store.DeleteTransaction(ctx, id, userID); err != nil {
		return err
	}

	s.logger.Info("transaction deleted", zap.String("transaction_id", id), zap.String("user_id", userID))
	s.markStale(ctx, userID)
	return nil
}

func (s *TransactionService) markStale(ctx context.Context, userID string) {
	if s.notifier != nil {
		s.notifier.MarkStale(ctx, userID)
	}
}

// parseInput validates kind and the optional date of a manual entry.
func parseInput(in *domain.TransactionInput) (domain.Kind, *time.Time, error) {
	kind, ok := domain.ParseKind(in.Kind)
	if !ok {
		return "", nil, &domain.ErrValidation{Field: "kind", Message: "tipo deve ser income ou expense"}
	}
	if !in.Amount.IsPositive() {
		return "", nil, &domain.ErrValidation{Field: "amount", Message: "valor deve ser maior que zero"}
	}

	ds := strings.TrimSpace(in.Date)
	if ds == "" {
		return kind, nil, nil
	}
	d, err := time.ParseInLocation(domain.DateLayout, ds, time.Local)
	if err != nil {
		return "", nil, &domain.ErrValidation{Field: "date", Message: "data inválida (AAAA-MM-DD)"}
	}
	return kind, &d, nil
}

package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/port"
)

// Committer turns a validated extraction into exactly one persisted transaction.
type Committer struct {
	store    port.TransactionStore
	notifier port.StaleNotifier
	now      func() time.Time
	logger   *zap.Logger
}

// NewCommitter creates a Committer. notifier may be nil.
func NewCommitter(store port.TransactionStore, notifier port.StaleNotifier, logger *zap.Logger) *Committer {
	return &Committer{store: store, notifier: notifier, now: time.Now, logger: logger}
}

// WithClock overrides the clock used to default the occurrence date.
func (c *Committer) WithClock(now func() time.Time) *Committer {
	c.now = now
	return c
}

// Commit persists res for userID. date nil means today. The create call is
// issued once; a failure is returned and never retried.
func (c *Committer) Commit(ctx context.Context, userID string, origin domain.Origin, res domain.ExtractionResult, date *time.Time) (*domain.Transaction, error) {
	ctx, span := ingestTracer.Start(ctx, "Committer.Commit")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("transaction.origin", string(origin)))

	if userID == "" {
		return nil, &domain.ErrValidation{Field: "userId", Message: "usuário não resolvido"}
	}
	if !res.Kind.Valid() {
		return nil, &domain.ErrValidation{Field: "kind", Message: "tipo deve ser income ou expense"}
	}
	if res.Amount == nil || !res.Amount.Round(2).IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "valor deve ser maior que zero"}
	}

	category := normalizeCategory(res.Category)
	description := strings.TrimSpace(res.Description)
	if description == "" {
		description = category
	}

	day := c.now()
	if date != nil {
		day = *date
	}

	in := &domain.NewTransaction{
		Kind:        res.Kind,
		Amount:      res.Amount.Round(2),
		Description: description,
		Category:    category,
		Date:        calendarDay(day),
		Origin:      origin,
	}

	tx, err := c.store.CreateTransaction(ctx, userID, in)
	if err != nil {
		c.logger.Error("commit failed: transaction not saved",
			zap.String("user_id", userID),
			zap.String("origin", string(origin)),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.String("transaction.id", tx.ID))
	if c.notifier != nil {
		c.notifier.MarkStale(ctx, userID)
	}
	return tx, nil
}

// normalizeCategory trims, defaults and bounds a free-form category label.
func normalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.DefaultCategory
	}
	if r := []rune(s); len(r) > domain.MaxCategoryLength {
		s = strings.TrimSpace(string(r[:domain.MaxCategoryLength]))
	}
	return s
}

// calendarDay drops the time of day, keeping the local calendar date.
func calendarDay(t time.Time) time.Time {
	t = t.In(time.Local)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/observability"
	"github.com/boddenberg/nexo-bfa-go/internal/port"
)

var reportTracer = otel.Tracer("service/reports")

// Monthly report bounds.
const (
	DefaultReportMonths = 6
	MaxReportMonths     = 24
)

// Dashboard feedback messages (pt-BR).
const (
	feedbackWelcome = "Boas-vindas ao NEXO! Comece registrando sua primeira venda ou despesa."
	feedbackToday   = "Muito bem! Você já registrou entradas hoje. Continue assim!"
	feedbackAlert   = "Atenção: Suas despesas acumuladas superaram suas vendas. Hora de revisar os custos."
	feedbackTip     = "Dica: Tente separar 20% do seu lucro para uma reserva de emergência."
)

// ReportService computes dashboard aggregates and caches them per user.
// It is the consumer of the stale signal emitted after every write.
type ReportService struct {
	store   port.TransactionStore
	cache   port.Cache[any]
	now     func() time.Time
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewReportService creates a new report service.
func NewReportService(store port.TransactionStore, cache port.Cache[any], metrics *observability.Metrics, logger *zap.Logger) *ReportService {
	return &ReportService{store: store, cache: cache, now: time.Now, metrics: metrics, logger: logger}
}

// WithClock overrides the clock used for "today" and month windows.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	return s
}

// MarkStale evicts every cached view of userID.
func (s *ReportService) MarkStale(_ context.Context, userID string) {
	n := s.cache.DeletePrefix(userKeyPrefix(userID))
	s.logger.Debug("report cache invalidated", zap.String("user_id", userID), zap.Int("evicted", n))
}

func userKeyPrefix(userID string) string {
	return fmt.Sprintf("reports:%s:", userID)
}

// Summary returns totals, today's count and the feedback hint.
func (s *ReportService) Summary(ctx context.Context, userID string) (*domain.Summary, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.Summary")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	today := s.now().Format(domain.DateLayout)
	key := userKeyPrefix(userID) + "summary:" + today
	if cached, ok := s.cache.Get(key); ok {
		if sum, ok := cached.(*domain.Summary); ok {
			s.metrics.IncrCacheHit("summary")
			return sum, nil
		}
	}
	s.metrics.IncrCacheMiss("summary")

	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	sum := summarize(txs, today)
	s.cache.Set(key, sum)
	return sum, nil
}

// Monthly returns income, expense and balance for the last months calendar months, oldest first.
func (s *ReportService) Monthly(ctx context.Context, userID string, months int) ([]domain.MonthlyTotals, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.Monthly")
	defer span.End()

	if months <= 0 {
		months = DefaultReportMonths
	}
	if months > MaxReportMonths {
		months = MaxReportMonths
	}
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("report.months", months))

	now := s.now()
	key := fmt.Sprintf("%smonthly:%d:%s", userKeyPrefix(userID), months, now.Format("2006-01"))
	if cached, ok := s.cache.Get(key); ok {
		if m, ok := cached.([]domain.MonthlyTotals); ok {
			s.metrics.IncrCacheHit("monthly")
			return m, nil
		}
	}
	s.metrics.IncrCacheMiss("monthly")

	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := monthlyTotals(txs, now, months)
	s.cache.Set(key, out)
	return out, nil
}

func summarize(txs []domain.Transaction, today string) *domain.Summary {
	sum := &domain.Summary{
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		Count:        len(txs),
	}
	incomeToday := false
	for _, t := range txs {
		isToday := t.DateString() == today
		if isToday {
			sum.TodayCount++
		}
		if t.Kind == domain.KindIncome {
			sum.TotalIncome = sum.TotalIncome.Add(t.Amount)
			incomeToday = incomeToday || isToday
		} else {
			sum.TotalExpense = sum.TotalExpense.Add(t.Amount)
		}
	}
	sum.Balance = sum.TotalIncome.Sub(sum.TotalExpense)
	sum.Feedback = feedbackFor(sum, incomeToday)
	return sum
}

// feedbackFor applies the dashboard hint rules in order; the first match wins.
func feedbackFor(sum *domain.Summary, incomeToday bool) *domain.Feedback {
	switch {
	case sum.Count == 0:
		return &domain.Feedback{Type: domain.FeedbackInfo, Message: feedbackWelcome}
	case incomeToday:
		return &domain.Feedback{Type: domain.FeedbackSuccess, Message: feedbackToday}
	case sum.TotalIncome.IsPositive() && sum.TotalExpense.GreaterThan(sum.TotalIncome):
		return &domain.Feedback{Type: domain.FeedbackAlert, Message: feedbackAlert}
	case sum.Count > 5 && sum.TotalExpense.LessThan(sum.TotalIncome):
		return &domain.Feedback{Type: domain.FeedbackInfo, Message: feedbackTip}
	}
	return nil
}

func monthlyTotals(txs []domain.Transaction, now time.Time, months int) []domain.MonthlyTotals {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local).AddDate(0, -(months - 1), 0)

	byMonth := make(map[string]*domain.MonthlyTotals, months)
	out := make([]domain.MonthlyTotals, 0, months)
	for i := 0; i < months; i++ {
		m := first.AddDate(0, i, 0).Format("2006-01")
		out = append(out, domain.MonthlyTotals{Month: m, Income: decimal.Zero, Expense: decimal.Zero, Balance: decimal.Zero})
	}
	for i := range out {
		byMonth[out[i].Month] = &out[i]
	}

	for _, t := range txs {
		m, ok := byMonth[t.Date.Format("2006-01")]
		if !ok {
			continue
		}
		if t.Kind == domain.KindIncome {
			m.Income = m.Income.Add(t.Amount)
		} else {
			m.Expense = m.Expense.Add(t.Amount)
		}
	}
	for i := range out {
		out[i].Balance = out[i].Income.Sub(out[i].Expense)
	}
	return out
}

package service_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/cache"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/observability"
	"github.com/boddenberg/nexo-bfa-go/internal/service"
)

func reportClock() time.Time {
	return time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
}

func seed(store *memStore, kind domain.Kind, amount, date string) {
	d, _ := time.ParseInLocation(domain.DateLayout, date, time.Local)
	store.CreateTransaction(context.Background(), sellerID, &domain.NewTransaction{
		Kind:        kind,
		Amount:      decimal.RequireFromString(amount),
		Description: "seed",
		Category:    domain.DefaultCategory,
		Date:        d,
		Origin:      domain.OriginChat,
	})
}

func newReportService(t *testing.T, store *memStore) (*service.ReportService, *observability.Metrics) {
	t.Helper()
	c := cache.New[any](5 * time.Minute)
	t.Cleanup(c.Close)
	metrics := observability.NewMetrics()
	return service.NewReportService(store, c, metrics, zap.NewNop()).WithClock(reportClock), metrics
}

func TestSummary_Feedback(t *testing.T) {
	tests := []struct {
		name     string
		seed     func(*memStore)
		wantType domain.FeedbackType
		wantNil  bool
	}{
		{
			name:     "welcome when empty",
			seed:     func(*memStore) {},
			wantType: domain.FeedbackInfo,
		},
		{
			name: "income today",
			seed: func(s *memStore) {
				seed(s, domain.KindExpense, "500", "2024-06-01")
				seed(s, domain.KindIncome, "10", "2024-06-15")
			},
			wantType: domain.FeedbackSuccess,
		},
		{
			name: "expenses above income",
			seed: func(s *memStore) {
				seed(s, domain.KindIncome, "100", "2024-06-01")
				seed(s, domain.KindExpense, "150", "2024-06-02")
			},
			wantType: domain.FeedbackAlert,
		},
		{
			name: "tip after five records",
			seed: func(s *memStore) {
				for i := 0; i < 5; i++ {
					seed(s, domain.KindIncome, "100", "2024-06-01")
				}
				seed(s, domain.KindExpense, "50", "2024-06-02")
			},
			wantType: domain.FeedbackInfo,
		},
		{
			name: "no hint",
			seed: func(s *memStore) {
				seed(s, domain.KindExpense, "50", "2024-06-02")
			},
			wantNil: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			tt.seed(store)
			svc, _ := newReportService(t, store)

			sum, err := svc.Summary(context.Background(), sellerID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if sum.Feedback != nil {
					t.Errorf("expected no feedback, got %+v", sum.Feedback)
				}
				return
			}
			if sum.Feedback == nil || sum.Feedback.Type != tt.wantType {
				t.Errorf("expected feedback %s, got %+v", tt.wantType, sum.Feedback)
			}
		})
	}
}

func TestSummary_Totals(t *testing.T) {
	store := newMemStore()
	seed(store, domain.KindIncome, "150.00", "2024-06-15")
	seed(store, domain.KindExpense, "20.50", "2024-06-15")
	seed(store, domain.KindExpense, "9.50", "2024-05-01")
	svc, _ := newReportService(t, store)

	sum, err := svc.Summary(context.Background(), sellerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.TotalIncome.StringFixed(2) != "150.00" || sum.TotalExpense.StringFixed(2) != "30.00" || sum.Balance.StringFixed(2) != "120.00" {
		t.Errorf("unexpected totals: %+v", sum)
	}
	if sum.Count != 3 || sum.TodayCount != 2 {
		t.Errorf("unexpected counts: count=%d today=%d", sum.Count, sum.TodayCount)
	}
}

func TestSummary_CacheInvalidatedByStaleSignal(t *testing.T) {
	store := newMemStore()
	seed(store, domain.KindIncome, "10", "2024-06-01")
	svc, metrics := newReportService(t, store)
	ctx := context.Background()

	first, _ := svc.Summary(ctx, sellerID)
	seed(store, domain.KindIncome, "5", "2024-06-02")

	cached, _ := svc.Summary(ctx, sellerID)
	if cached.Count != first.Count {
		t.Fatalf("expected cached summary, got count %d", cached.Count)
	}
	if snap := metrics.PipelineSnapshot(); snap.SummaryCacheHitRate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %v", snap.SummaryCacheHitRate)
	}

	svc.MarkStale(ctx, sellerID)
	fresh, _ := svc.Summary(ctx, sellerID)
	if fresh.Count != 2 {
		t.Errorf("expected fresh summary after invalidation, got count %d", fresh.Count)
	}
}

func TestMonthly(t *testing.T) {
	store := newMemStore()
	seed(store, domain.KindIncome, "100", "2024-06-03")
	seed(store, domain.KindExpense, "40", "2024-06-10")
	seed(store, domain.KindExpense, "10", "2024-04-20")
	seed(store, domain.KindIncome, "999", "2023-01-01")
	svc, _ := newReportService(t, store)

	out, err := svc.Monthly(context.Background(), sellerID, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 months, got %d", len(out))
	}
	if out[0].Month != "2024-04" || out[2].Month != "2024-06" {
		t.Errorf("expected oldest first, got %s..%s", out[0].Month, out[2].Month)
	}
	if out[0].Expense.StringFixed(2) != "10.00" || !out[1].Balance.IsZero() {
		t.Errorf("unexpected early months: %+v", out[:2])
	}
	if out[2].Balance.StringFixed(2) != "60.00" {
		t.Errorf("expected June balance 60.00, got %s", out[2].Balance)
	}

	def, _ := svc.Monthly(context.Background(), sellerID, 0)
	if len(def) != service.DefaultReportMonths {
		t.Errorf("expected default of %d months, got %d", service.DefaultReportMonths, len(def))
	}
	capped, _ := svc.Monthly(context.Background(), sellerID, 100)
	if len(capped) != service.MaxReportMonths {
		t.Errorf("expected cap of %d months, got %d", service.MaxReportMonths, len(capped))
	}
}

func TestExport(t *testing.T) {
	store := newMemStore()
	seed(store, domain.KindIncome, "150", "2024-06-15")
	seed(store, domain.KindExpense, "20.5", "2024-06-14")
	svc, _ := newReportService(t, store)

	var buf bytes.Buffer
	if err := svc.Export(context.Background(), sellerID, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("export is not a valid workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Movimentações")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Data" || rows[0][4] != "Valor (R$)" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "2024-06-15" || rows[1][1] != "entrada" || rows[1][5] != "Chat" {
		t.Errorf("unexpected first row: %v", rows[1])
	}
}

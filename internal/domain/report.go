package domain

import "github.com/shopspring/decimal"

// ============================================================
// Reports: dashboard aggregates
// ============================================================

// FeedbackType classifies the dashboard hint.
type FeedbackType string

const (
	FeedbackSuccess FeedbackType = "sucesso"
	FeedbackAlert   FeedbackType = "alerta"
	FeedbackInfo    FeedbackType = "info"
)

// Feedback is the human-readable hint shown above the dashboard cards.
type Feedback struct {
	Type    FeedbackType `json:"type"`
	Message string       `json:"message"`
}

// Summary is returned by GET /v1/reports/summary.
type Summary struct {
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
	Balance      decimal.Decimal `json:"balance"`
	Count        int             `json:"count"`
	TodayCount   int             `json:"todayCount"`
	Feedback     *Feedback       `json:"feedback,omitempty"`
}

// MonthlyTotals is one bar of the monthly report.
type MonthlyTotals struct {
	Month   string          `json:"month"` // YYYY-MM
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

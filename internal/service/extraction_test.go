package service_test

import (
	"errors"
	"testing"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/service"
)

func TestValidateExtraction(t *testing.T) {
	tests := []struct {
		name string
		raw  *domain.ExtractionResult
		err  error
		want domain.ExtractionStatus
	}{
		{"valid income", &domain.ExtractionResult{Kind: domain.KindIncome, Amount: amt("35")}, nil, domain.ExtractionValid},
		{"valid cents", &domain.ExtractionResult{Kind: domain.KindExpense, Amount: amt("0.01")}, nil, domain.ExtractionValid},
		{"transport error", nil, errors.New("dial tcp"), domain.ExtractionMalformed},
		{"nil result", nil, nil, domain.ExtractionMalformed},
		{"unknown kind", &domain.ExtractionResult{Kind: "transfer", Amount: amt("10")}, nil, domain.ExtractionMalformed},
		{"null amount", &domain.ExtractionResult{Kind: domain.KindIncome}, nil, domain.ExtractionEmpty},
		{"zero amount", &domain.ExtractionResult{Kind: domain.KindIncome, Amount: amt("0")}, nil, domain.ExtractionEmpty},
		{"negative amount", &domain.ExtractionResult{Kind: domain.KindExpense, Amount: amt("-5")}, nil, domain.ExtractionEmpty},
		{"rounds to zero", &domain.ExtractionResult{Kind: domain.KindExpense, Amount: amt("0.004")}, nil, domain.ExtractionEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.ValidateExtraction(tt.raw, tt.err)
			if got.Status != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.Status)
			}
			if got.Status == domain.ExtractionMalformed && got.Err == nil {
				t.Error("malformed extraction must carry an error")
			}
		})
	}
}

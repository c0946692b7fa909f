package observability_test

import (
	"testing"
	"time"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/observability"
)

func TestPipelineSnapshot_Empty(t *testing.T) {
	m := observability.NewMetrics()
	snap := m.PipelineSnapshot()

	if snap.TotalMessages != 0 {
		t.Errorf("expected 0 messages, got %d", snap.TotalMessages)
	}
	if snap.CommitRate != 0 {
		t.Errorf("expected 0 commit rate, got %f", snap.CommitRate)
	}
	if len(snap.Outcomes) != len(domain.Outcomes) {
		t.Errorf("expected %d outcome keys, got %d", len(domain.Outcomes), len(snap.Outcomes))
	}
}

func TestPipelineSnapshot_Rates(t *testing.T) {
	m := observability.NewMetrics()
	m.IncrOutcome(domain.ChannelChat, domain.OutcomeCommitted)
	m.IncrOutcome(domain.ChannelTwilio, domain.OutcomeCommitted)
	m.IncrOutcome(domain.ChannelTwilio, domain.OutcomeExtractionFailed)
	m.IncrOutcome(domain.ChannelCloud, domain.OutcomeNotUnderstood)
	m.RecordTokens(120, 30)
	m.IncrCacheHit("summary")
	m.IncrCacheMiss("summary")
	m.RecordStageDuration("extract", 50*time.Millisecond)

	snap := m.PipelineSnapshot()

	if snap.TotalMessages != 4 {
		t.Fatalf("expected 4 messages, got %d", snap.TotalMessages)
	}
	if snap.Outcomes["committed"] != 2 {
		t.Errorf("expected 2 committed, got %d", snap.Outcomes["committed"])
	}
	if snap.CommitRate != 0.5 {
		t.Errorf("expected commit rate 0.5, got %f", snap.CommitRate)
	}
	if snap.ExtractionFailureRate != 0.25 {
		t.Errorf("expected failure rate 0.25, got %f", snap.ExtractionFailureRate)
	}
	if snap.PromptTokens != 120 || snap.CompletionTokens != 30 {
		t.Errorf("unexpected tokens: %d/%d", snap.PromptTokens, snap.CompletionTokens)
	}
	if snap.SummaryCacheHitRate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %f", snap.SummaryCacheHitRate)
	}
}

func TestNewMetrics_Twice(t *testing.T) {
	// Private registries: constructing twice must not panic.
	_ = observability.NewMetrics()
	_ = observability.NewMetrics()
}

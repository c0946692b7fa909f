package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// PipelineMetrics is returned by GET /v1/metrics/pipeline.
type PipelineMetrics struct {
	TotalMessages         int64            `json:"totalMessages"`
	Outcomes              map[string]int64 `json:"outcomes"`
	CommitRate            float64          `json:"commitRate"`
	ExtractionFailureRate float64          `json:"extractionFailureRate"`
	PromptTokens          int64            `json:"promptTokens"`
	CompletionTokens      int64            `json:"completionTokens"`
	SummaryCacheHitRate   float64          `json:"summaryCacheHitRate"`
	Period                string           `json:"period"`
}

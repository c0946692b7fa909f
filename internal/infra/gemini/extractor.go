// Package gemini implements the extraction service on top of the Google GenAI SDK.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/resilience"
)

var tracer = otel.Tracer("gemini")

// DefaultModel is used when GEMINI_MODEL is not set.
const DefaultModel = "gemini-1.5-flash"

const temperature float32 = 0.1

// Options configures the extractor.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string // override for tests or a proxy
	HTTPClient *http.Client
}

// Extractor calls the model once per message. It never retries: a failed
// call is reported to the sender, who re-sends.
type Extractor struct {
	client   *genai.Client
	model    string
	config   *genai.GenerateContentConfig
	cb       *gobreaker.CircuitBreaker
	bulkhead *resilience.Bulkhead
	logger   *zap.Logger
}

// NewExtractor builds the genai client and the fixed generation config.
func NewExtractor(ctx context.Context, opts Options, cb *gobreaker.CircuitBreaker, bulkhead *resilience.Bulkhead, logger *zap.Logger) (*Extractor, error) {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Extractor{
		client: client,
		model:  opts.Model,
		config: &genai.GenerateContentConfig{
			Temperature:       genai.Ptr(temperature),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    responseSchema(),
			SystemInstruction: genai.NewContentFromText(Instruction(), genai.RoleUser),
		},
		cb:       cb,
		bulkhead: bulkhead,
		logger:   logger,
	}, nil
}

// Extract sends the message text and optional audio to the model and decodes the result.
func (e *Extractor) Extract(ctx context.Context, msg *domain.InboundMessage) (*domain.ExtractionResult, error) {
	ctx, span := tracer.Start(ctx, "Gemini.Extract", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", e.model),
		attribute.String("extraction.instruction_version", InstructionVersion),
		attribute.String("message.channel", string(msg.Channel)),
		attribute.Bool("message.has_audio", len(msg.Audio) > 0),
	)

	if err := e.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrTimeout{Operation: "gemini bulkhead"}
	}
	defer e.bulkhead.Release()

	start := time.Now()
	resp, err := resilience.Execute(e.cb, func() (*genai.GenerateContentResponse, error) {
		return e.client.Models.GenerateContent(ctx, e.model, buildContents(msg), e.config)
	})
	if err != nil {
		e.logger.Warn("gemini: generate content failed",
			zap.String("model", e.model),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return nil, &domain.ErrExternalService{Service: "gemini", Err: err}
	}

	raw := resp.Text()
	result, err := decodeResult(raw)
	if err != nil {
		e.logger.Warn("gemini: malformed extraction",
			zap.String("model", e.model),
			zap.String("raw", raw),
			zap.Error(err),
		)
		return nil, &domain.ErrExternalService{Service: "gemini", Err: err}
	}

	if u := resp.UsageMetadata; u != nil {
		result.PromptTokens = int(u.PromptTokenCount)
		result.CompletionTokens = int(u.CandidatesTokenCount)
	}
	span.SetAttributes(
		attribute.Int("gemini.prompt_tokens", result.PromptTokens),
		attribute.Int("gemini.completion_tokens", result.CompletionTokens),
	)

	e.logger.Debug("gemini: extraction OK",
		zap.String("kind", string(result.Kind)),
		zap.Bool("has_amount", result.Amount != nil),
		zap.Duration("latency", time.Since(start)),
	)
	return result, nil
}

func buildContents(msg *domain.InboundMessage) []*genai.Content {
	var parts []*genai.Part
	if msg.Text != "" {
		parts = append(parts, genai.NewPartFromText(msg.Text))
	}
	if len(msg.Audio) > 0 {
		parts = append(parts, genai.NewPartFromBytes(msg.Audio, msg.AudioMIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// Package service provides the business logic layer (use cases).
// IngestService runs the message-to-transaction pipeline for the chat and
// messaging webhook channels; the other services back the dashboard.
package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/observability"
	"github.com/boddenberg/nexo-bfa-go/internal/port"
)

var ingestTracer = otel.Tracer("service/ingest")

// DefaultExtractionTimeout bounds a single extraction call.
const DefaultExtractionTimeout = 15 * time.Second

// IngestService wires Normalizer → Sender Resolver → Extraction → Commit → Responder.
// Every message is processed at most once; there is no retry and no dedupe.
type IngestService struct {
	resolver  *SenderResolver
	extractor port.Extractor
	media     port.MediaFetcher
	committer *Committer
	responder *Responder
	timeout   time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewIngestService creates the pipeline with all stages injected.
func NewIngestService(
	resolver *SenderResolver,
	extractor port.Extractor,
	committer *Committer,
	responder *Responder,
	extractionTimeout time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *IngestService {
	if extractionTimeout <= 0 {
		extractionTimeout = DefaultExtractionTimeout
	}
	return &IngestService{
		resolver:  resolver,
		extractor: extractor,
		committer: committer,
		responder: responder,
		timeout:   extractionTimeout,
		metrics:   metrics,
		logger:    logger,
	}
}

// WithMediaFetcher enables provider-hosted voice notes. Without it they end as
// extraction_failed.
func (s *IngestService) WithMediaFetcher(f port.MediaFetcher) *IngestService {
	s.media = f
	return s
}

// ============================================================
// Channel entry points
// ============================================================

// HandleChat processes a chat submission for the session user.
// The error is only set for malformed input (client-visible 400).
func (s *IngestService) HandleChat(ctx context.Context, userID string, req *domain.ChatRequest) (domain.ChatReply, error) {
	msg, err := NormalizeChat(req)
	if err != nil {
		s.finish(&domain.IngestResult{Outcome: domain.OutcomeMalformedInput, Channel: domain.ChannelChat, UserID: userID, Err: err}, nil)
		return domain.ChatReply{}, err
	}

	res := s.Ingest(ctx, msg, userID)
	return s.responder.ChatReply(res), nil
}

// HandleTwilio processes one form-encoded Twilio delivery.
func (s *IngestService) HandleTwilio(ctx context.Context, in *domain.TwilioInbound) domain.WebhookReply {
	msg, err := NormalizeTwilioForm(in)
	if err != nil {
		res := &domain.IngestResult{Outcome: domain.OutcomeMalformedInput, Channel: domain.ChannelTwilio, Err: err}
		s.finish(res, nil)
		return s.responder.WebhookReply(ctx, domain.ChannelTwilio, "", res)
	}
	return s.HandleWebhook(ctx, msg)
}

// HandleCloud processes a WhatsApp Cloud API push, which may batch several messages.
func (s *IngestService) HandleCloud(ctx context.Context, p *domain.CloudWebhookPayload) domain.WebhookReply {
	msgs, err := NormalizeCloudPayload(p)
	if err != nil {
		res := &domain.IngestResult{Outcome: domain.OutcomeMalformedInput, Channel: domain.ChannelCloud, Err: err}
		s.finish(res, nil)
		return s.responder.WebhookReply(ctx, domain.ChannelCloud, "", res)
	}
	if len(msgs) == 0 {
		s.finish(&domain.IngestResult{Outcome: domain.OutcomeIgnored, Channel: domain.ChannelCloud}, nil)
		return s.responder.Ack(domain.ChannelCloud)
	}

	reply := s.responder.Ack(domain.ChannelCloud)
	acked := 0
	for _, msg := range msgs {
		r := s.HandleWebhook(ctx, msg)
		if r.Status == reply.Status {
			acked++
			continue
		}
		// Only ask for redelivery while no message of the batch was handled.
		if acked == 0 {
			reply = r
		}
	}
	return reply
}

// HandleWebhook runs one normalized messaging-channel message through the pipeline.
func (s *IngestService) HandleWebhook(ctx context.Context, msg *domain.InboundMessage) domain.WebhookReply {
	res := s.Ingest(ctx, msg, "")
	return s.responder.WebhookReply(ctx, msg.Channel, msg.SenderAddress, res)
}

// ============================================================
// Pipeline
// ============================================================

// Ingest runs the pipeline for a normalized message and returns its terminal outcome.
// sessionUserID is used on the chat channel; messaging channels resolve the sender.
func (s *IngestService) Ingest(ctx context.Context, msg *domain.InboundMessage, sessionUserID string) *domain.IngestResult {
	ctx, span := ingestTracer.Start(ctx, "IngestService.Ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("message.channel", string(msg.Channel)),
		attribute.String("message.provider_id", msg.ProviderMessageID),
	)

	start := time.Now()
	res := &domain.IngestResult{Channel: msg.Channel}
	defer func() {
		span.SetAttributes(attribute.String("ingest.outcome", string(res.Outcome)))
		s.finish(res, msg)
		s.metrics.RecordStageDuration("total", time.Since(start))
	}()

	if !msg.HasContent() {
		res.Outcome = domain.OutcomeMalformedInput
		res.Err = &domain.ErrValidation{Field: "text", Message: "mensagem vazia"}
		return res
	}

	// Sender resolution (messaging channels only)
	if msg.Channel == domain.ChannelChat {
		if sessionUserID == "" {
			res.Outcome = domain.OutcomeMalformedInput
			res.Err = &domain.ErrUnauthorized{Message: "sessão sem usuário"}
			return res
		}
		res.UserID = sessionUserID
	} else {
		t := time.Now()
		userID, found, err := s.resolver.Resolve(ctx, msg.SenderAddress)
		s.metrics.RecordStageDuration("resolve", time.Since(t))
		if err != nil {
			res.Outcome = domain.OutcomeLookupFailed
			res.Err = err
			return res
		}
		if !found {
			res.Outcome = domain.OutcomeUnregistered
			return res
		}
		res.UserID = userID
	}
	span.SetAttributes(attribute.String("user.id", res.UserID))

	// Voice notes are downloaded only once the sender is known
	if msg.MediaURL != "" && len(msg.Audio) == 0 {
		if err := s.fetchMedia(ctx, msg); err != nil {
			res.Outcome = domain.OutcomeExtractionFailed
			res.Err = err
			return res
		}
	}

	// Extraction, bounded by the caller-side timeout
	ext := s.extract(ctx, msg)
	switch ext.Status {
	case domain.ExtractionMalformed:
		res.Outcome = domain.OutcomeExtractionFailed
		res.Err = ext.Err
		return res
	case domain.ExtractionEmpty:
		res.Outcome = domain.OutcomeNotUnderstood
		return res
	}

	// Commit: one create call, never retried
	t := time.Now()
	tx, err := s.committer.Commit(ctx, res.UserID, msg.Channel.Origin(), ext.Result, nil)
	s.metrics.RecordStageDuration("commit", time.Since(t))
	if err != nil {
		res.Outcome = domain.OutcomePersistenceFailed
		res.Err = err
		return res
	}

	res.Outcome = domain.OutcomeCommitted
	res.Transaction = tx
	return res
}

func (s *IngestService) extract(ctx context.Context, msg *domain.InboundMessage) domain.Extraction {
	ectx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	t := time.Now()
	raw, err := s.extractor.Extract(ectx, msg)
	s.metrics.RecordStageDuration("extract", time.Since(t))

	if err != nil && errors.Is(ectx.Err(), context.DeadlineExceeded) {
		err = &domain.ErrTimeout{Operation: "extraction"}
	}
	if raw != nil {
		s.metrics.RecordTokens(raw.PromptTokens, raw.CompletionTokens)
	}

	ext := ValidateExtraction(raw, err)
	if ext.Status == domain.ExtractionMalformed {
		s.metrics.IncrExternalError("extraction")
	}
	return ext
}

func (s *IngestService) fetchMedia(ctx context.Context, msg *domain.InboundMessage) error {
	if s.media == nil {
		return &domain.ErrValidation{Field: "MediaUrl0", Message: "áudio não suportado neste canal"}
	}

	t := time.Now()
	audio, contentType, err := s.media.Fetch(ctx, msg.MediaURL)
	s.metrics.RecordStageDuration("media", time.Since(t))
	if err != nil {
		s.metrics.IncrExternalError("media")
		return err
	}
	msg.Audio = audio
	if contentType != "" {
		msg.AudioMIMEType = contentType
	}
	return nil
}

// finish counts the outcome and logs it at a level matching its severity.
func (s *IngestService) finish(res *domain.IngestResult, msg *domain.InboundMessage) {
	s.metrics.IncrOutcome(res.Channel, res.Outcome)

	fields := []zap.Field{
		zap.String("channel", string(res.Channel)),
		zap.String("outcome", string(res.Outcome)),
	}
	if res.UserID != "" {
		fields = append(fields, zap.String("user_id", res.UserID))
	}
	if msg != nil && msg.ProviderMessageID != "" {
		fields = append(fields, zap.String("provider_message_id", msg.ProviderMessageID))
	}
	if res.Transaction != nil {
		fields = append(fields, zap.String("transaction_id", res.Transaction.ID))
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}

	switch res.Outcome {
	case domain.OutcomePersistenceFailed, domain.OutcomeLookupFailed:
		s.logger.Error("message processed", fields...)
	case domain.OutcomeExtractionFailed:
		s.logger.Warn("message processed", fields...)
	case domain.OutcomeUnregistered, domain.OutcomeIgnored:
		s.logger.Debug("message processed", fields...)
	default:
		s.logger.Info("message processed", fields...)
	}
}

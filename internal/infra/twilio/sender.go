// Package twilio adapts the Twilio WhatsApp channel: outbound sends through
// the Messages API, inline TwiML replies and webhook signature checks.
package twilio

import (
	"context"
	"fmt"
	"strings"

	"github.com/sony/gobreaker"
	twiliosdk "github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/resilience"
)

var tracer = otel.Tracer("twilio")

// MessageCreator is the slice of the Twilio REST API the sender uses.
type MessageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// NewMessageCreator builds the REST client for an account.
func NewMessageCreator(accountSID, authToken string) MessageCreator {
	rc := twiliosdk.NewRestClientWithParams(twiliosdk.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return rc.Api
}

// Sender delivers outbound WhatsApp messages.
type Sender struct {
	api    MessageCreator
	from   string
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewSender creates a Sender. from is the bot address, e.g. whatsapp:+14155238886.
func NewSender(creator MessageCreator, from string, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *Sender {
	return &Sender{api: creator, from: WhatsAppAddress(from), cb: cb, logger: logger}
}

// Send posts one message. It is not retried: a duplicate reply is worse than a missing one.
func (s *Sender) Send(ctx context.Context, to, text string) error {
	_, span := tracer.Start(ctx, "Twilio.Send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	params := &api.CreateMessageParams{}
	params.SetTo(WhatsAppAddress(to))
	params.SetFrom(s.from)
	params.SetBody(text)

	msg, err := resilience.Execute(s.cb, func() (*api.ApiV2010Message, error) {
		return s.api.CreateMessage(params)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "twilio", Err: err}
	}

	if msg != nil && msg.Sid != nil {
		span.SetAttributes(attribute.String("twilio.message_sid", *msg.Sid))
		s.logger.Debug("twilio: message sent", zap.String("sid", *msg.Sid))
	}
	return nil
}

// WhatsAppAddress formats a bare number as a Twilio WhatsApp address.
func WhatsAppAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return fmt.Sprintf("whatsapp:+%s", strings.TrimPrefix(number, "+"))
}

// SignatureValidator checks the X-Twilio-Signature header of inbound webhooks.
type SignatureValidator struct {
	validator client.RequestValidator
}

// NewSignatureValidator creates a validator for the account's auth token.
func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{validator: client.NewRequestValidator(authToken)}
}

// Validate reports whether signature matches the url and form params.
func (v *SignatureValidator) Validate(url string, params map[string]string, signature string) bool {
	return v.validator.Validate(url, params, signature)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/port"
)

// User-facing replies (pt-BR).
const (
	MsgNotUnderstood     = "Não consegui identificar um valor ou o tipo de movimentação. Pode repetir de outra forma? (Ex: paguei 30 reais de luz)"
	MsgExtractionFailed  = "Ops, tive um problema técnico. Pode tentar novamente?"
	MsgPersistenceFailed = "Ops, não consegui salvar sua movimentação. Nada foi registrado, pode tentar novamente?"
	MsgMalformedInput    = "Não recebi nenhuma mensagem. Escreva ou grave o que você vendeu ou gastou."
)

// Delivery selects how webhook replies reach the sender.
type Delivery int

const (
	// DeliveryInline answers inside the webhook HTTP response (TwiML).
	DeliveryInline Delivery = iota
	// DeliveryOutbound acks the webhook empty and sends the reply through the provider API.
	DeliveryOutbound
)

// Responder builds the channel-shaped acknowledgment for a terminal outcome.
type Responder struct {
	delivery Delivery
	renderer port.ReplyRenderer
	sender   port.OutboundSender
	logger   *zap.Logger
}

// NewResponder creates a Responder. sender is only used with DeliveryOutbound.
func NewResponder(delivery Delivery, renderer port.ReplyRenderer, sender port.OutboundSender, logger *zap.Logger) *Responder {
	if delivery == DeliveryOutbound && sender == nil {
		logger.Warn("outbound delivery without a sender, falling back to inline replies")
		delivery = DeliveryInline
	}
	return &Responder{delivery: delivery, renderer: renderer, sender: sender, logger: logger}
}

// ChatReply renders the in-app chat bubble.
func (r *Responder) ChatReply(res *domain.IngestResult) domain.ChatReply {
	if res.Outcome == domain.OutcomeCommitted && res.Transaction != nil {
		tx := res.Transaction
		return domain.ChatReply{
			Success:   true,
			ReplyText: replyText(res),
			Transaction: &domain.ChatTransactionSummary{
				Kind:        tx.Kind,
				Description: tx.Description,
				Amount:      tx.Amount,
				Category:    tx.Category,
			},
		}
	}
	return domain.ChatReply{Success: false, ReplyText: replyText(res)}
}

// WebhookReply renders the provider acknowledgment and, in outbound mode, sends
// the reply through the provider API. The ack is 200 for every non-fatal outcome.
func (r *Responder) WebhookReply(ctx context.Context, ch domain.Channel, to string, res *domain.IngestResult) domain.WebhookReply {
	switch res.Outcome {
	case domain.OutcomeMalformedInput:
		return r.reject(ch, http.StatusBadRequest, "Erro: Dados ausentes")
	case domain.OutcomeLookupFailed:
		// Nothing was written; let the provider redeliver.
		return r.reject(ch, http.StatusServiceUnavailable, "Erro: tente novamente")
	}

	text := replyText(res)

	if r.delivery == DeliveryOutbound || ch == domain.ChannelCloud {
		if text != "" {
			r.deliver(ctx, ch, to, text)
		}
		return r.ack(ch, "")
	}
	return r.ack(ch, text)
}

// Ack renders the empty channel acknowledgment.
func (r *Responder) Ack(ch domain.Channel) domain.WebhookReply {
	return r.ack(ch, "")
}

func (r *Responder) deliver(ctx context.Context, ch domain.Channel, to, text string) {
	if r.delivery != DeliveryOutbound {
		r.logger.Warn("reply not delivered: channel has no inline reply format",
			zap.String("channel", string(ch)),
		)
		return
	}
	if err := r.sender.Send(ctx, to, text); err != nil {
		r.logger.Error("outbound reply failed",
			zap.String("channel", string(ch)),
			zap.Error(err),
		)
	}
}

func (r *Responder) ack(ch domain.Channel, text string) domain.WebhookReply {
	if ch == domain.ChannelCloud {
		return domain.WebhookReply{Status: http.StatusOK, ContentType: "application/json", Body: `{"status":"received"}`}
	}

	body, err := r.renderer.Render(text)
	if err != nil {
		r.logger.Error("render reply failed", zap.Error(err))
		body, _ = r.renderer.Render("")
	}
	return domain.WebhookReply{Status: http.StatusOK, ContentType: r.renderer.ContentType(), Body: body}
}

func (r *Responder) reject(ch domain.Channel, status int, msg string) domain.WebhookReply {
	if ch == domain.ChannelCloud {
		b, _ := json.Marshal(map[string]string{"error": msg})
		return domain.WebhookReply{Status: status, ContentType: "application/json", Body: string(b)}
	}
	return domain.WebhookReply{Status: status, ContentType: "text/plain; charset=utf-8", Body: msg}
}

// replyText is the message shown for an outcome. Silent outcomes return "".
func replyText(res *domain.IngestResult) string {
	switch res.Outcome {
	case domain.OutcomeCommitted:
		if res.Transaction == nil {
			return ""
		}
		if res.Channel == domain.ChannelChat {
			return fmt.Sprintf("Entendido! Registrei uma %s de R$ %s.", res.Transaction.Kind.Label(), res.Transaction.Amount.StringFixed(2))
		}
		return committedMessagingText(res.Transaction)
	case domain.OutcomeNotUnderstood:
		return MsgNotUnderstood
	case domain.OutcomeExtractionFailed:
		return MsgExtractionFailed
	case domain.OutcomePersistenceFailed:
		return MsgPersistenceFailed
	case domain.OutcomeMalformedInput:
		return MsgMalformedInput
	default:
		return ""
	}
}

func committedMessagingText(tx *domain.Transaction) string {
	noun := "Gasto"
	if tx.Kind == domain.KindIncome {
		noun = "Venda"
	}
	return fmt.Sprintf("✅ *NEXO:* %s de *R$ %s* salvo!\n📝 %s", noun, tx.Amount.StringFixed(2), tx.Description)
}

// ingest.go define os tipos do pipeline de ingestão de mensagens.
//
// Uma mensagem (chat do app ou webhook do WhatsApp) passa por:
//
//	Received → Normalized → {Resolved | NoSender} → {Extracted | ExtractionFailed | NotUnderstood}
//	         → {Committed | PersistenceFailed} → Acknowledged
//
// Cada ramo é terminal. Não existe retry: quem reenvia é o usuário.

package domain

import (
	"github.com/shopspring/decimal"
)

// ============================================================
// Channel & canonical input
// ============================================================

// Channel identifies where an inbound message came from.
type Channel string

const (
	ChannelChat   Channel = "chat"
	ChannelTwilio Channel = "twilio"
	ChannelCloud  Channel = "whatsapp_cloud"
)

// Origin maps an inbound channel to the origin tag persisted with the transaction.
func (c Channel) Origin() Origin {
	if c == ChannelChat {
		return OriginChat
	}
	return OriginMessaging
}

// InboundMessage is the canonical form produced by the normalizer.
// SenderAddress is empty on the authenticated chat path: identity comes from the session.
type InboundMessage struct {
	Channel       Channel
	SenderAddress string
	Text          string
	Audio         []byte
	AudioMIMEType string

	// MediaURL points at provider-hosted audio not downloaded yet.
	MediaURL string

	// ProviderMessageID is the provider's id (Twilio MessageSid, Cloud API message id).
	// It is logged only; deliveries are not deduplicated.
	ProviderMessageID string
}

// HasContent reports whether the message carries text or audio, fetched or not.
func (m *InboundMessage) HasContent() bool {
	return m.Text != "" || len(m.Audio) > 0 || m.MediaURL != ""
}

// ============================================================
// Extraction: tagged result of the validation boundary
// ============================================================

// ExtractionResult is the transient, unvalidated output of the extraction service.
// Amount is nil when the service returned null or omitted the value.
type ExtractionResult struct {
	Description string
	Amount      *decimal.Decimal
	Kind        Kind
	Category    string

	PromptTokens     int
	CompletionTokens int
}

// ExtractionStatus tags the three possible states after validation.
type ExtractionStatus int

const (
	// ExtractionValid means the result can be promoted to a transaction.
	ExtractionValid ExtractionStatus = iota
	// ExtractionEmpty means the call worked but no usable amount was found.
	ExtractionEmpty
	// ExtractionMalformed means transport, timeout or parse failure.
	ExtractionMalformed
)

func (s ExtractionStatus) String() string {
	switch s {
	case ExtractionValid:
		return "valid"
	case ExtractionEmpty:
		return "empty"
	default:
		return "malformed"
	}
}

// Extraction is the output of the validation boundary. Result is only meaningful when Valid.
type Extraction struct {
	Status ExtractionStatus
	Result ExtractionResult
	Err    error
}

// ============================================================
// Terminal outcomes
// ============================================================

// Outcome is the mutually exclusive end state of processing one message.
type Outcome string

const (
	OutcomeCommitted         Outcome = "committed"
	OutcomeNotUnderstood     Outcome = "not_understood"
	OutcomeUnregistered      Outcome = "unregistered_sender"
	OutcomeExtractionFailed  Outcome = "extraction_failed"
	OutcomeMalformedInput    Outcome = "malformed_input"
	OutcomePersistenceFailed Outcome = "persistence_failed"
	OutcomeLookupFailed      Outcome = "lookup_failed"
	OutcomeIgnored           Outcome = "ignored"
)

// Outcomes lists every terminal outcome (used to pre-register metric series).
var Outcomes = []Outcome{
	OutcomeCommitted,
	OutcomeNotUnderstood,
	OutcomeUnregistered,
	OutcomeExtractionFailed,
	OutcomeMalformedInput,
	OutcomePersistenceFailed,
	OutcomeLookupFailed,
	OutcomeIgnored,
}

// IngestResult carries the terminal outcome and, when committed, the created transaction.
type IngestResult struct {
	Outcome     Outcome
	Channel     Channel
	UserID      string
	Transaction *Transaction
	Err         error
}

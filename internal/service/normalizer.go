package service

import (
	"encoding/base64"
	"strings"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
)

// DefaultAudioMIMEType is assumed when the chat client omits audioMimeType.
const DefaultAudioMIMEType = "audio/webm"

// maxAudioBytes bounds the decoded voice note sent to the extraction service.
const maxAudioBytes = 5 << 20

// NormalizeChat turns an authenticated chat submission into the canonical message.
// The sender address stays empty: identity comes from the session.
func NormalizeChat(req *domain.ChatRequest) (*domain.InboundMessage, error) {
	msg := &domain.InboundMessage{
		Channel: domain.ChannelChat,
		Text:    strings.TrimSpace(req.Text),
	}

	if raw := strings.TrimSpace(req.AudioBase64); raw != "" {
		mime := req.AudioMIMEType
		// Browsers send data URLs: data:audio/webm;base64,AAAA
		if i := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && i != -1 {
			if mime == "" {
				mime = strings.TrimSuffix(strings.TrimPrefix(raw[:i], "data:"), ";base64")
			}
			raw = raw[i+1:]
		}
		audio, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, &domain.ErrValidation{Field: "audioBase64", Message: "áudio inválido"}
		}
		if len(audio) > maxAudioBytes {
			return nil, &domain.ErrValidation{Field: "audioBase64", Message: "áudio muito longo"}
		}
		msg.Audio = audio
		msg.AudioMIMEType = mime
		if msg.AudioMIMEType == "" {
			msg.AudioMIMEType = DefaultAudioMIMEType
		}
	}

	if !msg.HasContent() {
		return nil, &domain.ErrValidation{Field: "text", Message: "mensagem vazia"}
	}
	return msg, nil
}

// NormalizeTwilioForm turns a Twilio form-encoded webhook into the canonical message.
func NormalizeTwilioForm(in *domain.TwilioInbound) (*domain.InboundMessage, error) {
	from := NormalizeAddress(in.From)
	if from == "" {
		return nil, &domain.ErrValidation{Field: "From", Message: "remetente ausente"}
	}
	msg := &domain.InboundMessage{
		Channel:           domain.ChannelTwilio,
		SenderAddress:     from,
		Text:              strings.TrimSpace(in.Body),
		ProviderMessageID: in.MessageSID,
	}
	// Only the first attachment is read, and only when it is audio.
	if in.NumMedia > 0 && in.MediaURL != "" && strings.HasPrefix(in.MediaContentType, "audio/") {
		msg.MediaURL = in.MediaURL
		msg.AudioMIMEType = in.MediaContentType
	}
	if !msg.HasContent() {
		return nil, &domain.ErrValidation{Field: "Body", Message: "mensagem vazia"}
	}
	return msg, nil
}

// NormalizeCloudPayload extracts every text message from a WhatsApp Cloud API push.
// Pushes that carry only status updates yield an empty slice and no error.
func NormalizeCloudPayload(p *domain.CloudWebhookPayload) ([]*domain.InboundMessage, error) {
	if p.Object != "" && p.Object != "whatsapp_business_account" {
		return nil, &domain.ErrValidation{Field: "object", Message: "payload não suportado"}
	}

	var out []*domain.InboundMessage
	for _, e := range p.Entry {
		for _, c := range e.Changes {
			for _, m := range c.Value.Messages {
				if m.Type != "text" || m.Text == nil {
					continue
				}
				from := NormalizeAddress(m.From)
				if from == "" {
					return nil, &domain.ErrValidation{Field: "from", Message: "remetente ausente"}
				}
				text := strings.TrimSpace(m.Text.Body)
				if text == "" {
					continue
				}
				out = append(out, &domain.InboundMessage{
					Channel:           domain.ChannelCloud,
					SenderAddress:     from,
					Text:              text,
					ProviderMessageID: m.ID,
				})
			}
		}
	}
	return out, nil
}

// NormalizeAddress reduces a provider address to a bare phone number.
// "whatsapp:+55 (11) 99999-9999" and "5511999999999@s.whatsapp.net" both become "5511999999999".
func NormalizeAddress(addr string) string {
	s := strings.TrimSpace(addr)
	if i := strings.Index(s, ":"); i != -1 {
		s = s[i+1:]
	}
	if i := strings.Index(s, "@"); i != -1 {
		s = s[:i]
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '+', ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, s)
}

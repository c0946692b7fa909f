// chat.go define os contratos da rota POST /v1/chat.
//
// O chat do app recebe texto livre (ou áudio curto em base64) de um usuário
// autenticado e devolve uma bolha de resposta. Quando a mensagem vira uma
// transação, o resumo volta junto para o front renderizar o widget de confirmação.

package domain

import "github.com/shopspring/decimal"

// ChatRequest é o body que o front envia no POST /v1/chat.
type ChatRequest struct {
	Text          string `json:"text,omitempty"`
	AudioBase64   string `json:"audioBase64,omitempty"`
	AudioMIMEType string `json:"audioMimeType,omitempty"`
}

// ChatTransactionSummary é o resumo usado pelo widget de confirmação.
type ChatTransactionSummary struct {
	Kind        Kind            `json:"kind"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
}

// ChatReply é o que o BFA devolve pro chat.
type ChatReply struct {
	ID          string                  `json:"id,omitempty"`
	Success     bool                    `json:"success"`
	ReplyText   string                  `json:"replyText"`
	Transaction *ChatTransactionSummary `json:"transaction,omitempty"`
}

// ============================================================
// Webhook: payloads dos provedores de mensageria
// ============================================================

// TwilioInbound são os campos form-encoded que o Twilio envia.
// Voice notes arrive with an empty Body and the audio at MediaURL.
type TwilioInbound struct {
	Body             string
	From             string
	To               string
	MessageSID       string
	NumMedia         int
	MediaURL         string
	MediaContentType string
}

// CloudWebhookPayload é o push JSON da WhatsApp Business Cloud API.
type CloudWebhookPayload struct {
	Object string       `json:"object"`
	Entry  []CloudEntry `json:"entry"`
}

// CloudEntry agrupa as mudanças de uma conta WhatsApp Business.
type CloudEntry struct {
	ID      string        `json:"id"`
	Changes []CloudChange `json:"changes"`
}

// CloudChange carrega as mensagens (ou status) de uma notificação.
type CloudChange struct {
	Field string     `json:"field"`
	Value CloudValue `json:"value"`
}

// CloudValue é o conteúdo da mudança.
type CloudValue struct {
	MessagingProduct string         `json:"messaging_product"`
	Messages         []CloudMessage `json:"messages"`
}

// CloudMessage é uma mensagem recebida. Só o tipo "text" é processado.
type CloudMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// WebhookReply é a resposta HTTP que o responder monta para o provedor.
type WebhookReply struct {
	Status      int
	ContentType string
	Body        string
}

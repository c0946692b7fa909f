package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/service"
)

// ============================================================
// Webhook WhatsApp: POST /v1/webhook/whatsapp
// ============================================================

// webhookHandler accepts Twilio form posts and WhatsApp Cloud API JSON pushes.
// The pipeline outcome decides the status; the provider only retries on 5xx.
func webhookHandler(svc *service.IngestService, opts Options, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/webhook/whatsapp")
		defer span.End()

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		span.SetAttributes(attribute.String("webhook.content_type", mediaType))

		if mediaType == "application/json" {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				logger.Warn("webhook: unreadable JSON payload", zap.Error(err))
				writeError(w, http.StatusBadRequest, "Erro: Dados ausentes")
				return
			}
			if opts.verifyCloud() && !validHubSignature(opts.CloudAppSecret, body, r.Header.Get("X-Hub-Signature-256")) {
				logger.Warn("webhook: invalid cloud signature", zap.String("remote_addr", r.RemoteAddr))
				writeError(w, http.StatusForbidden, "Assinatura inválida")
				return
			}

			var payload domain.CloudWebhookPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				logger.Warn("webhook: invalid JSON payload", zap.Error(err))
				writeError(w, http.StatusBadRequest, "Erro: Dados ausentes")
				return
			}
			writeWebhookReply(w, svc.HandleCloud(ctx, &payload))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			logger.Warn("webhook: invalid form payload", zap.Error(err))
			http.Error(w, "Erro: Dados ausentes", http.StatusBadRequest)
			return
		}

		if opts.SignatureValidator != nil {
			if !opts.SignatureValidator.Validate(webhookURL(r, opts.WebhookURL), formParams(r), r.Header.Get("X-Twilio-Signature")) {
				logger.Warn("webhook: invalid signature", zap.String("remote_addr", r.RemoteAddr))
				http.Error(w, "Assinatura inválida", http.StatusForbidden)
				return
			}
		}

		numMedia, _ := strconv.Atoi(r.PostForm.Get("NumMedia"))
		reply := svc.HandleTwilio(ctx, &domain.TwilioInbound{
			Body:             r.PostForm.Get("Body"),
			From:             r.PostForm.Get("From"),
			To:               r.PostForm.Get("To"),
			MessageSID:       r.PostForm.Get("MessageSid"),
			NumMedia:         numMedia,
			MediaURL:         r.PostForm.Get("MediaUrl0"),
			MediaContentType: r.PostForm.Get("MediaContentType0"),
		})
		writeWebhookReply(w, reply)
	}
}

// verifyCloud reports whether JSON pushes must carry a valid Meta signature.
func (o Options) verifyCloud() bool {
	return o.SignatureValidator != nil || o.CloudAppSecret != ""
}

// validHubSignature checks "sha256=<hex hmac of the raw body>" keyed by the app secret.
func validHubSignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return false
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func writeWebhookReply(w http.ResponseWriter, reply domain.WebhookReply) {
	w.Header().Set("Content-Type", reply.ContentType)
	w.WriteHeader(reply.Status)
	w.Write([]byte(reply.Body))
}

// webhookURL is the URL the provider signed: the configured public URL, or
// the request URL as seen by the client when running behind a proxy.
func webhookURL(r *http.Request, configured string) string {
	if configured != "" {
		return configured
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = h
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

func formParams(r *http.Request) map[string]string {
	params := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

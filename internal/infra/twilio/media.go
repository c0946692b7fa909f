package twilio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/resilience"
)

// APIBaseURL is where Twilio hosts inbound media.
const APIBaseURL = "https://api.twilio.com"

// MaxMediaBytes bounds a downloaded voice note.
const MaxMediaBytes = 5 << 20

// MediaFetcher downloads inbound media (MediaUrl0) with the account credentials.
type MediaFetcher struct {
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
	cb         *gobreaker.CircuitBreaker
}

// NewMediaFetcher creates a fetcher that only follows URLs under baseURL, so
// a forged MediaUrl0 cannot receive the account credentials.
func NewMediaFetcher(httpClient *http.Client, baseURL, accountSID, authToken string, cb *gobreaker.CircuitBreaker) *MediaFetcher {
	return &MediaFetcher{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
		cb:         cb,
	}
}

// Fetch downloads one media item. It is issued once and never retried.
func (f *MediaFetcher) Fetch(ctx context.Context, mediaURL string) ([]byte, string, error) {
	ctx, span := tracer.Start(ctx, "Twilio.FetchMedia", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if !strings.HasPrefix(mediaURL, f.baseURL+"/") {
		return nil, "", &domain.ErrValidation{Field: "MediaUrl0", Message: "URL de mídia fora do domínio do provedor"}
	}

	type media struct {
		body        []byte
		contentType string
	}
	m, err := resilience.Execute(f.cb, func() (media, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
		if err != nil {
			return media{}, err
		}
		req.SetBasicAuth(f.accountSID, f.authToken)

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return media{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return media{}, fmt.Errorf("media download returned %d", resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, MaxMediaBytes+1))
		if err != nil {
			return media{}, err
		}
		if len(body) > MaxMediaBytes {
			return media{}, fmt.Errorf("media larger than %d bytes", MaxMediaBytes)
		}
		return media{body: body, contentType: resp.Header.Get("Content-Type")}, nil
	})
	if err != nil {
		return nil, "", &domain.ErrExternalService{Service: "twilio/media", Err: err}
	}

	span.SetAttributes(
		attribute.Int("media.bytes", len(m.body)),
		attribute.String("media.content_type", m.contentType),
	)
	return m.body, m.contentType, nil
}

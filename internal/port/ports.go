// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from concrete implementations (Supabase, Postgres, Gemini, Twilio).
package port

import (
	"context"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
)

// TransactionStore is the persistence collaborator for transactions.
// Every operation is scoped by userID; an id owned by another user is reported as not found.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, userID string, in *domain.NewTransaction) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, id, userID string, in *domain.TransactionUpdate) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id, userID string) error
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
}

// UserStore resolves messaging-channel addresses to users.
// FindUserByChannelAddress returns (nil, nil) when no binding exists.
type UserStore interface {
	FindUserByChannelAddress(ctx context.Context, address string) (*domain.User, error)
}

// Store is implemented by each persistence backend.
type Store interface {
	TransactionStore
	UserStore
	Ping(ctx context.Context) error
}

// Extractor calls the structured-extraction service for one message.
// A non-nil error means transport or parse failure; semantic checks happen in the service.
type Extractor interface {
	Extract(ctx context.Context, msg *domain.InboundMessage) (*domain.ExtractionResult, error)
}

// MediaFetcher downloads provider-hosted media referenced by an inbound message.
// It returns the bytes and their content type.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// OutboundSender delivers a text message through the messaging provider's API.
type OutboundSender interface {
	Send(ctx context.Context, to, text string) error
}

// StaleNotifier is told that a user's cached aggregate views are out of date.
type StaleNotifier interface {
	MarkStale(ctx context.Context, userID string)
}

// StaleNotifierFunc adapts a function to StaleNotifier.
type StaleNotifierFunc func(ctx context.Context, userID string)

// MarkStale calls f.
func (f StaleNotifierFunc) MarkStale(ctx context.Context, userID string) {
	f(ctx, userID)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	DeletePrefix(prefix string) int
}

// ReplyRenderer renders an inline webhook reply in the provider's format.
// An empty text renders the channel-valid empty acknowledgment.
type ReplyRenderer interface {
	Render(text string) (string, error)
	ContentType() string
}

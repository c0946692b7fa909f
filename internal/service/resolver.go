package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/port"
)

// SenderResolver maps a normalized channel address to a user id.
type SenderResolver struct {
	users  port.UserStore
	logger *zap.Logger
}

// NewSenderResolver creates a SenderResolver.
func NewSenderResolver(users port.UserStore, logger *zap.Logger) *SenderResolver {
	return &SenderResolver{users: users, logger: logger}
}

// Resolve returns the bound user id. found is false for an unregistered sender,
// which is an expected result and never an error. err is only set when the
// lookup itself failed.
func (r *SenderResolver) Resolve(ctx context.Context, address string) (userID string, found bool, err error) {
	ctx, span := ingestTracer.Start(ctx, "SenderResolver.Resolve")
	defer span.End()

	user, err := r.users.FindUserByChannelAddress(ctx, address)
	if err != nil {
		r.logger.Error("sender lookup failed", zap.Error(err))
		return "", false, err
	}
	if user == nil {
		span.SetAttributes(attribute.Bool("sender.registered", false))
		r.logger.Info("unregistered sender", zap.String("address", maskAddress(address)))
		return "", false, nil
	}

	span.SetAttributes(attribute.Bool("sender.registered", true), attribute.String("user.id", user.ID))
	return user.ID, true, nil
}

// maskAddress keeps the last four digits of a phone number for logs.
func maskAddress(addr string) string {
	if len(addr) <= 4 {
		return "****"
	}
	return "****" + addr[len(addr)-4:]
}

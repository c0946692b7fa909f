package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/service"
)

func TestAuth_IssueAndValidate(t *testing.T) {
	svc := service.NewAuthService("test-secret", time.Hour, zap.NewNop())

	resp, err := svc.IssueAccessToken(context.Background(), &domain.TokenRequest{UserID: sellerID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ExpiresIn != 3600 || resp.UserID != sellerID {
		t.Errorf("unexpected response: %+v", resp)
	}

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Sub != sellerID {
		t.Errorf("expected sub %s, got %s", sellerID, claims.Sub)
	}
}

func TestAuth_RejectsForeignSignature(t *testing.T) {
	issuer := service.NewAuthService("other-secret", time.Hour, zap.NewNop())
	svc := service.NewAuthService("test-secret", time.Hour, zap.NewNop())

	resp, _ := issuer.IssueAccessToken(context.Background(), &domain.TokenRequest{UserID: sellerID})
	_, err := svc.ValidateAccessToken(resp.AccessToken)
	var u *domain.ErrUnauthorized
	if !errors.As(err, &u) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuth_RejectsExpired(t *testing.T) {
	svc := service.NewAuthService("test-secret", -time.Minute, zap.NewNop())

	resp, _ := svc.IssueAccessToken(context.Background(), &domain.TokenRequest{UserID: sellerID})
	if _, err := svc.ValidateAccessToken(resp.AccessToken); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestAuth_IssueRequiresUser(t *testing.T) {
	svc := service.NewAuthService("test-secret", time.Hour, zap.NewNop())

	_, err := svc.IssueAccessToken(context.Background(), &domain.TokenRequest{UserID: " "})
	var v *domain.ErrValidation
	if !errors.As(err, &v) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

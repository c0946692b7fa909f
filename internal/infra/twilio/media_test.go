package twilio_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/twilio"
)

func newMediaServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *twilio.MediaFetcher) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, twilio.NewMediaFetcher(srv.Client(), srv.URL, "AC123", "token", resilience.NewCircuitBreaker("twilio-media-test"))
}

func TestMediaFetcher_Fetch(t *testing.T) {
	srv, f := newMediaServer(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "audio/ogg")
		_, _ = w.Write([]byte("OggS-voice"))
	})

	body, ct, err := f.Fetch(context.Background(), srv.URL+"/2010-04-01/Accounts/AC123/Messages/MM1/Media/ME1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "OggS-voice" || ct != "audio/ogg" {
		t.Errorf("unexpected media: %q %q", body, ct)
	}
}

func TestMediaFetcher_RejectsForeignHost(t *testing.T) {
	var calls int32
	_, f := newMediaServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	_, _, err := f.Fetch(context.Background(), "https://attacker.example/steal")
	var v *domain.ErrValidation
	if !errors.As(err, &v) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if calls != 0 {
		t.Error("no request may leave for a foreign host")
	}
}

func TestMediaFetcher_Failures(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{"too large", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(bytes.Repeat([]byte("a"), twilio.MaxMediaBytes+1))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv, f := newMediaServer(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				tt.h(w, r)
			})

			_, _, err := f.Fetch(context.Background(), srv.URL+"/media/1")
			var ext *domain.ErrExternalService
			if !errors.As(err, &ext) {
				t.Fatalf("expected ErrExternalService, got %v", err)
			}
			if calls != 1 {
				t.Errorf("expected a single request, got %d", calls)
			}
		})
	}
}

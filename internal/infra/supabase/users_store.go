package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
)

// userRow maps the users table columns the core reads.
type userRow struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	WhatsAppNumber string `json:"whatsapp_number"`
}

// FindUserByChannelAddress looks up the user bound to a normalized phone number.
// Returns (nil, nil) when no user is bound: not found is not an error here.
func (c *Client) FindUserByChannelAddress(ctx context.Context, address string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindUserByChannelAddress")
	defer span.End()

	var user *domain.User

	// One attempt only: a failed lookup is answered with a 503 and the provider redelivers.
	_, err := c.cb.Execute(func() (any, error) {
		path := fmt.Sprintf("%s?whatsapp_number=eq.%s&select=id,name,whatsapp_number&limit=1", usersTable, url.QueryEscape(address))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil || isEmpty(body) {
			return nil, err
		}

		var rows []userRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode users: %w", err)
		}
		if len(rows) > 0 {
			user = &domain.User{ID: rows[0].ID, Name: rows[0].Name, WhatsAppNumber: rows[0].WhatsAppNumber}
		}
		return nil, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}

	span.SetAttributes(attribute.Bool("sender.registered", user != nil))
	return user, nil
}

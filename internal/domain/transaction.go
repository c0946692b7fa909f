package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Transaction: the persisted financial record
// ============================================================

// Kind is the direction of a transaction. It is always one of two values.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether k is one of the two known kinds.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// StorageValue is the column value used by the persistence layer (INCOME / EXPENSE).
func (k Kind) StorageValue() string {
	return strings.ToUpper(string(k))
}

// Label returns the pt-BR noun used in user-facing replies.
func (k Kind) Label() string {
	if k == KindIncome {
		return "entrada"
	}
	return "saída"
}

// ParseKind accepts both the API form (income) and the storage form (INCOME).
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	return k, k.Valid()
}

// Origin records through which channel a transaction was created.
type Origin string

const (
	OriginWeb       Origin = "web"
	OriginChat      Origin = "chat-assistant"
	OriginMessaging Origin = "messaging-channel"
)

var originStorage = map[Origin]string{
	OriginWeb:       "WEB",
	OriginChat:      "CHAT",
	OriginMessaging: "WHATSAPP",
}

// StorageValue is the column value used by the persistence layer.
func (o Origin) StorageValue() string {
	if v, ok := originStorage[o]; ok {
		return v
	}
	return "WEB"
}

// ParseOrigin maps a storage value back to an Origin. Unknown values map to OriginWeb.
func ParseOrigin(s string) Origin {
	for o, v := range originStorage {
		if strings.EqualFold(v, s) || string(o) == s {
			return o
		}
	}
	return OriginWeb
}

// DateLayout is the calendar-date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// DefaultCategory is the catch-all label used when no category is given.
const DefaultCategory = "Diversos"

// MaxCategoryLength bounds the free-form category label (in runes).
const MaxCategoryLength = 40

// Transaction is a persisted income/expense record owned by exactly one user.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Kind        Kind            `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        time.Time       `json:"-"`
	Origin      Origin          `json:"origin"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// DateString returns the occurrence date as YYYY-MM-DD.
func (t Transaction) DateString() string {
	return t.Date.Format(DateLayout)
}

// NewTransaction is the input of a single create operation.
type NewTransaction struct {
	Kind        Kind
	Amount      decimal.Decimal
	Description string
	Category    string
	Date        time.Time
	Origin      Origin
}

// TransactionUpdate holds the user-editable fields. Owner and id are never part of it.
type TransactionUpdate struct {
	Kind        Kind
	Amount      decimal.Decimal
	Description string
	Category    string
	Date        time.Time
}

// TransactionInput is the JSON body for manual create/update (POST/PUT /v1/transactions).
type TransactionInput struct {
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
}

// TransactionView is the JSON representation returned by the API.
type TransactionView struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
	Origin      Origin          `json:"origin"`
}

// View converts a Transaction to its API representation.
func (t Transaction) View() TransactionView {
	return TransactionView{
		ID:          t.ID,
		Kind:        t.Kind,
		Amount:      t.Amount,
		Description: t.Description,
		Category:    t.Category,
		Date:        t.DateString(),
		Origin:      t.Origin,
	}
}

// ============================================================
// Users & sender bindings
// ============================================================

// User is the minimal view of an account the core needs.
type User struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	WhatsAppNumber string `json:"whatsappNumber,omitempty"`
}

// SenderBinding associates a normalized phone number with a user.
type SenderBinding struct {
	Address string
	UserID  string
}

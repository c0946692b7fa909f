package gemini

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
)

// payload is the exact object shape the model must return.
// valor stays raw so a quoted number is told apart from a JSON number.
type payload struct {
	Descricao *string         `json:"descricao"`
	Valor     json.RawMessage `json:"valor"`
	Tipo      *string         `json:"tipo"`
	Categoria *string         `json:"categoria"`
}

// decodeResult parses the model text into an ExtractionResult.
// Anything that is not a single object of the declared shape is an error.
// descricao, tipo and categoria must be present strings. A null or absent
// valor is not an error: it yields a nil Amount.
func decodeResult(raw string) (*domain.ExtractionResult, error) {
	clean := stripFences(raw)
	if clean == "" {
		return nil, errors.New("empty response from model")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.DisallowUnknownFields()

	var p payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode extraction: trailing data after object")
	}

	if p.Descricao == nil {
		return nil, errors.New("decode extraction: missing descricao")
	}
	if p.Categoria == nil {
		return nil, errors.New("decode extraction: missing categoria")
	}
	if p.Tipo == nil {
		return nil, errors.New("decode extraction: missing tipo")
	}
	kind, ok := domain.ParseKind(*p.Tipo)
	if !ok {
		return nil, fmt.Errorf("decode extraction: tipo %q is not income|expense", *p.Tipo)
	}
	amount, err := decodeAmount(p.Valor)
	if err != nil {
		return nil, err
	}

	return &domain.ExtractionResult{
		Kind:        kind,
		Amount:      amount,
		Description: strings.TrimSpace(*p.Descricao),
		Category:    strings.TrimSpace(*p.Categoria),
	}, nil
}

// decodeAmount accepts a JSON number or null. Strings, booleans and objects are rejected.
func decodeAmount(raw json.RawMessage) (*decimal.Decimal, error) {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 || string(v) == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var tok any
	if err := dec.Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode extraction: valor: %w", err)
	}
	n, ok := tok.(json.Number)
	if !ok {
		return nil, fmt.Errorf("decode extraction: valor %s is not a number", v)
	}

	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return nil, fmt.Errorf("decode extraction: valor: %w", err)
	}
	return &d, nil
}

// stripFences drops a ```json ... ``` wrapper if the model added one anyway.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

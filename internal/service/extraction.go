package service

import (
	"errors"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
)

// errNoResult is used when the extractor returns neither a result nor an error.
var errNoResult = errors.New("extraction returned no result")

// ValidateExtraction is the boundary between raw extraction output and the commit stage.
// Transport or parse failures are Malformed; a result without a positive amount is Empty.
// Only Valid results may be promoted to a transaction.
func ValidateExtraction(raw *domain.ExtractionResult, err error) domain.Extraction {
	if err != nil {
		return domain.Extraction{Status: domain.ExtractionMalformed, Err: err}
	}
	if raw == nil {
		return domain.Extraction{Status: domain.ExtractionMalformed, Err: errNoResult}
	}
	if !raw.Kind.Valid() {
		return domain.Extraction{Status: domain.ExtractionMalformed, Err: errors.New("extraction kind is not income|expense")}
	}
	if raw.Amount == nil || !raw.Amount.IsPositive() {
		return domain.Extraction{Status: domain.ExtractionEmpty, Result: *raw}
	}
	// Amounts that round to zero cents carry no value either.
	if !raw.Amount.Round(2).IsPositive() {
		return domain.Extraction{Status: domain.ExtractionEmpty, Result: *raw}
	}
	return domain.Extraction{Status: domain.ExtractionValid, Result: *raw}
}

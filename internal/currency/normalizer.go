// Package currency converts observed fare prices into the single reference
// currency every downstream stage works in.
package currency

import (
	"fmt"
	"strings"
)

// RateProvider supplies conversion rates into the reference currency. A rate
// is the number of reference-currency units per one unit of the given
// currency. Static tables and periodically refreshed live tables both
// implement this.
type RateProvider interface {
	Rate(code string) (float64, bool)
}

// StaticRates is a fixed rate table loaded from configuration.
type StaticRates map[string]float64

// Rate returns the configured rate for the currency code.
func (r StaticRates) Rate(code string) (float64, bool) {
	rate, ok := r[strings.ToUpper(code)]
	if !ok || rate <= 0 {
		return 0, false
	}
	return rate, true
}

// ConversionError reports a currency code missing from the rate table. The
// affected fare is excluded from conversion-dependent stages but still
// persisted verbatim.
type ConversionError struct {
	Currency string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("no conversion rate for currency %q", e.Currency)
}

// Normalizer converts prices into the reference currency. It is a pure
// function over the provider's current table; refresh policy lives in the
// provider.
type Normalizer struct {
	reference string
	rates     RateProvider
}

// NewNormalizer creates a Normalizer targeting the given reference currency.
func NewNormalizer(reference string, rates RateProvider) *Normalizer {
	return &Normalizer{
		reference: strings.ToUpper(reference),
		rates:     rates,
	}
}

// Reference returns the reference currency code.
func (n *Normalizer) Reference() string {
	return n.reference
}

// Normalize converts a price from the given currency into the reference
// currency. The reference currency itself always converts at rate 1, and
// an empty code is assumed to already be in the reference currency.
func (n *Normalizer) Normalize(price float64, code string) (float64, error) {
	code = strings.ToUpper(code)
	if code == "" || code == n.reference {
		return price, nil
	}

	rate, ok := n.rates.Rate(code)
	if !ok {
		return 0, &ConversionError{Currency: code}
	}
	return price * rate, nil
}

// Denormalize converts a reference-currency price back into the given
// currency. Inverse of Normalize up to floating-point rounding.
func (n *Normalizer) Denormalize(price float64, code string) (float64, error) {
	code = strings.ToUpper(code)
	if code == "" || code == n.reference {
		return price, nil
	}

	rate, ok := n.rates.Rate(code)
	if !ok {
		return 0, &ConversionError{Currency: code}
	}
	return price / rate, nil
}

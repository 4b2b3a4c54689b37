package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrRatioUndefined is returned when a ratio cannot be computed.
var ErrRatioUndefined = errors.New("ratio undefined")

// Ratio divides a displayed price by the reference price and rounds to two
// decimal places. The result always carries a fractional part ("8.0").
func Ratio(price, reference string) (string, error) {
	p, err := decimal.NewFromString(NormalizePrice(price))
	if err != nil {
		return "", fmt.Errorf("%w: price %q: %v", ErrRatioUndefined, price, err)
	}
	r, err := decimal.NewFromString(NormalizeReference(reference))
	if err != nil {
		return "", fmt.Errorf("%w: reference %q: %v", ErrRatioUndefined, reference, err)
	}
	if r.IsZero() {
		return "", fmt.Errorf("%w: reference is zero", ErrRatioUndefined)
	}
	return formatRatio(p.DivRound(r, 2)), nil
}

func formatRatio(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

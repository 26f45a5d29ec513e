package curve

import "github.com/shopspring/decimal"

// ParseRate converts a slot value to a decimal. Unset slots and NaN report false.
func ParseRate(v string) (decimal.Decimal, bool) {
	if v == "" || v == NaN {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

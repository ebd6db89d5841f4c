package display

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Placeholder is shown wherever no value can be rendered
const Placeholder = "—"

// Formatter renders metric values for KPI cards. Currency symbols are
// injected so deployments can extend the set without touching this package.
type Formatter struct {
	symbols map[string]string
}

// NewFormatter creates a formatter with the stock symbol set
func NewFormatter() *Formatter {
	return NewFormatterWithSymbols(map[string]string{
		"USD": "$",
		"EUR": "€",
		"GBP": "£",
	})
}

// NewFormatterWithSymbols creates a formatter with a caller-provided symbol set
func NewFormatterWithSymbols(symbols map[string]string) *Formatter {
	copied := make(map[string]string, len(symbols))
	for code, symbol := range symbols {
		copied[code] = symbol
	}
	return &Formatter{symbols: copied}
}

// Symbol returns the display symbol for a currency code, falling back to
// the code itself with a separating space
func (f *Formatter) Symbol(code string) string {
	if symbol, ok := f.symbols[code]; ok {
		return symbol
	}
	if code == "" {
		return ""
	}
	return code + " "
}

// Currency renders an amount like "$212,000", rounded to whole units
func (f *Formatter) Currency(value decimal.Decimal, code string) string {
	rounded := value.Round(0)
	if rounded.IsNegative() {
		return "-" + f.Symbol(code) + groupThousands(rounded.Neg())
	}
	return f.Symbol(code) + groupThousands(rounded)
}

// Percent renders a rate like "4.5%" with one decimal place of precision
func (f *Formatter) Percent(value decimal.Decimal) string {
	return value.Round(1).String() + "%"
}

// Count renders a whole number like "1,234"
func (f *Formatter) Count(value decimal.Decimal) string {
	rounded := value.Round(0)
	if rounded.IsNegative() {
		return "-" + groupThousands(rounded.Neg())
	}
	return groupThousands(rounded)
}

// Months renders a duration in months like "16.4 mo"
func (f *Formatter) Months(value decimal.Decimal) string {
	return value.Round(1).String() + " mo"
}

// groupThousands inserts thousand separators into a non-negative whole decimal
func groupThousands(value decimal.Decimal) string {
	str := value.String()

	n := len(str)
	if n <= 3 {
		return str
	}

	var result strings.Builder
	for i, digit := range str {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(digit)
	}
	return result.String()
}

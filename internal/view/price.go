package view

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// PriceFormatter renders amounts with two decimals in a locale followed by a
// currency symbol, e.g. "2,50€" for fr-FR.
type PriceFormatter struct {
	printer *message.Printer
	symbol  string
}

// NewPriceFormatter creates a formatter for a BCP 47 locale.
func NewPriceFormatter(locale, symbol string) (*PriceFormatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	return &PriceFormatter{
		printer: message.NewPrinter(tag),
		symbol:  symbol,
	}, nil
}

// FormatCents renders an amount given in cents.
func (f *PriceFormatter) FormatCents(cents int64) string {
	return f.printer.Sprintf("%v", number.Decimal(float64(cents)/100, number.Scale(2))) + f.symbol
}

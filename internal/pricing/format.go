package pricing

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is used when a record carries no currency code.
const DefaultCurrency = "USD"

// Formatter renders amounts for one display language.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter builds a Formatter for a BCP 47 tag such as "en-US". An
// unparsable tag falls back to English.
func NewFormatter(lang string) Formatter {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return Formatter{printer: message.NewPrinter(tag)}
}

// Money formats amount in the currency named by an ISO 4217 code.
func (f Formatter) Money(amount float64, code string) (string, error) {
	if code == "" {
		code = DefaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("pricing: currency %q: %w", code, err)
	}
	return f.printer.Sprint(currency.Symbol(unit.Amount(Round(amount)))), nil
}

// MustMoney is Money that renders the raw figure when the code is unknown.
func (f Formatter) MustMoney(amount float64, code string) string {
	s, err := f.Money(amount, code)
	if err != nil {
		return f.printer.Sprintf("%.2f %s", amount, code)
	}
	return s
}

// Percent renders a percentage with up to two decimals.
func (f Formatter) Percent(p float64) string {
	return f.printer.Sprintf("%.2f%%", p)
}

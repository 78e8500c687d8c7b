package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dmitrymomot/fintrack/pkg/functions"
)

// FormatPrice converts a minor-unit amount into a functions.Price with the
// amount rendered for locale.
func FormatPrice(p UnitPrice, locale string) (functions.Price, error) {
	unit, err := currency.ParseISO(p.Currency)
	if err != nil {
		return functions.Price{}, fmt.Errorf("parse currency %q: %w", p.Currency, err)
	}
	minor, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return functions.Price{}, fmt.Errorf("parse amount %q: %w", p.Amount, err)
	}

	scale, _ := currency.Standard.Rounding(unit)
	amount := minor.Shift(-int32(scale))

	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.BrazilianPortuguese
	}
	value, _ := amount.Float64()
	formatted := message.NewPrinter(tag).Sprint(currency.Symbol(unit.Amount(value)))

	return functions.Price{
		Amount:    amount,
		Currency:  unit.String(),
		Formatted: formatted,
	}, nil
}

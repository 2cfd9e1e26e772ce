package billing

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// Price is the monthly PRO price shown to a client.
type Price struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"` // minor units
	Display  string `json:"display"`
	Period   string `json:"period"`
}

type regionalPrice struct {
	unit     currency.Unit
	amount   int64
	symbol   string
	decimal  string
	spaceSym bool
}

var (
	supportedLanguages = []language.Tag{
		language.English, // default
		language.Portuguese,
	}

	matcher = language.NewMatcher(supportedLanguages)

	regionalPrices = []regionalPrice{
		{unit: currency.USD, amount: 299, symbol: "$", decimal: "."},
		{unit: currency.BRL, amount: 1490, symbol: "R$", decimal: ",", spaceSym: true},
	}
)

// PriceFor returns the PRO price for an Accept-Language header value.
// Portuguese speakers pay in BRL, everyone else in USD.
func PriceFor(acceptLanguage string) Price {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return regionalPrices[0].price()
	}
	_, idx, _ := matcher.Match(tags...)
	if idx < 0 || idx >= len(regionalPrices) {
		idx = 0
	}
	return regionalPrices[idx].price()
}

func (rp regionalPrice) price() Price {
	scale, _ := currency.Standard.Rounding(rp.unit)
	div := int64(1)
	for i := 0; i < scale; i++ {
		div *= 10
	}

	number := fmt.Sprintf("%d", rp.amount/div)
	if scale > 0 {
		number += rp.decimal + fmt.Sprintf("%0*d", scale, rp.amount%div)
	}

	sep := ""
	if rp.spaceSym {
		sep = " "
	}

	return Price{
		Currency: strings.ToUpper(rp.unit.String()),
		Amount:   rp.amount,
		Display:  rp.symbol + sep + number,
		Period:   "month",
	}
}

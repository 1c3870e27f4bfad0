package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Term string

const (
	ShortTerm Term = "short"
	LongTerm  Term = "long"
)

// ClassifiedSale is a valid sale of a tax year with its holding term.
type ClassifiedSale struct {
	Currency      string          `json:"currency"`
	Key           string          `json:"key"`
	Amount        decimal.Decimal `json:"amount"`
	SoldDate      time.Time       `json:"soldDate"`
	AcquiredDates []time.Time     `json:"acquiredDates"`
	Proceeds      decimal.Decimal `json:"proceeds"`
	CostBasis     decimal.Decimal `json:"costBasis"`
	TotalCost     decimal.Decimal `json:"totalCost"`
	Gain          decimal.Decimal `json:"gain"`
	Term          Term            `json:"term"`
}

type GainTotals struct {
	Proceeds  decimal.Decimal `json:"proceeds"`
	TotalCost decimal.Decimal `json:"totalCost"`
	Gain      decimal.Decimal `json:"gain"`
}

func (t GainTotals) Add(s ClassifiedSale) GainTotals {
	return GainTotals{
		Proceeds:  t.Proceeds.Add(s.Proceeds),
		TotalCost: t.TotalCost.Add(s.TotalCost),
		Gain:      t.Gain.Add(s.Gain),
	}
}

// Div converts totals with a "1 USD = rate" table entry.
func (t GainTotals) Div(rate decimal.Decimal) GainTotals {
	return GainTotals{
		Proceeds:  t.Proceeds.Div(rate),
		TotalCost: t.TotalCost.Div(rate),
		Gain:      t.Gain.Div(rate),
	}
}

type Classification struct {
	Year              int              `json:"year"`
	ReferenceCurrency string           `json:"referenceCurrency"`
	USDRate           decimal.Decimal  `json:"usdRate"`
	ShortTerm         []ClassifiedSale `json:"shortTerm"`
	LongTerm          []ClassifiedSale `json:"longTerm"`
	ShortTermTotals   GainTotals       `json:"shortTermTotals"`
	LongTermTotals    GainTotals       `json:"longTermTotals"`
	ShortTermUSD      GainTotals       `json:"shortTermTotalsUsd"`
	LongTermUSD       GainTotals       `json:"longTermTotalsUsd"`
}

// TaxRow is one Form 8949 line. Columns a..h follow the form.
type TaxRow struct {
	Part     string    `json:"part"`
	Checkbox string    `json:"checkbox" validate:"required,oneof=A B C D E F"`
	A        string    `json:"a"`
	B        string    `json:"b"`
	C        string    `json:"c" validate:"required"`
	D        string    `json:"d"`
	E        string    `json:"e"`
	F        string    `json:"f"`
	G        string    `json:"g"`
	H        string    `json:"h"`
	Year     int       `json:"year"`
	SoldDate time.Time `json:"-"`
	External bool      `json:"external"`
}

// Form8949Totals are the column sums of one checkbox group.
type Form8949Totals struct {
	D decimal.Decimal `json:"d"`
	E decimal.Decimal `json:"e"`
	G decimal.Decimal `json:"g"`
	H decimal.Decimal `json:"h"`
}

// Form8949Page is one printed page: at most 14 rows of a single checkbox group.
type Form8949Page struct {
	Part     string   `json:"part"`
	Checkbox string   `json:"checkbox"`
	Number   int      `json:"number"`
	Rows     []TaxRow `json:"rows"`
	// Totals are only set on the last page of the group.
	Totals *Form8949Totals `json:"totals,omitempty"`
}

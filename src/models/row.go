package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the layout of the Started Date and Completed Date statement columns.
const TimestampLayout = "2006-01-02 15:04:05"

type RowType string

const (
	RowTypeExchange   RowType = "EXCHANGE"
	RowTypeWithdrawal RowType = "CRYPTO_WITHDRAWAL"
)

// LedgerRow is one statement line as stored by the row store. Rows are immutable once stored.
type LedgerRow struct {
	Key          string              `json:"key"`
	Type         RowType             `json:"type"`
	Product      string              `json:"product"`
	StartedAt    string              `json:"startedAt"`
	CompletedAt  string              `json:"completedAt"`
	Description  string              `json:"description"`
	Amount       decimal.Decimal     `json:"amount"`
	Fee          decimal.Decimal     `json:"fee"`
	Currency     string              `json:"currency"`
	State        string              `json:"state"`
	Balance      decimal.Decimal     `json:"balance"`
	BaseCurrency string              `json:"baseCurrency,omitempty"`
	FiatAmount   decimal.NullDecimal `json:"fiatAmount"`
	FileIDs      []string            `json:"fileIds,omitempty"`
}

// StartedTime parses StartedAt. Date only values are accepted for hand written rows.
func (r LedgerRow) StartedTime() (time.Time, error) {
	return ParseTimestamp(r.StartedAt)
}

func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q, expected %s", s, TimestampLayout)
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// YearSummary aggregates one currency account over one calendar year.
type YearSummary struct {
	Currency           string          `json:"currency"`
	Year               int             `json:"year"`
	Purchases          int             `json:"purchases"`
	Sales              int             `json:"sales"`
	SalesInvalid       int             `json:"salesInvalid"`
	Withdrawals        int             `json:"withdrawals"`
	WithdrawalsInvalid int             `json:"withdrawalsInvalid"`
	Purchased          decimal.Decimal `json:"purchased"`
	PurchasedFor       decimal.Decimal `json:"purchasedFor"`
	Sold               decimal.Decimal `json:"sold"`
	SoldFor            decimal.Decimal `json:"soldFor"`
	SoldInvalid        decimal.Decimal `json:"soldInvalid"`
	SoldInvalidFor     decimal.Decimal `json:"soldInvalidFor"`
	Withdrawn          decimal.Decimal `json:"withdrawn"`
	FirstDate          time.Time       `json:"firstDate"`
	FirstBalance       decimal.Decimal `json:"firstBalance"`
	LastDate           time.Time       `json:"lastDate"`
	LastBalance        decimal.Decimal `json:"lastBalance"`
	LastBalanceValue   decimal.Decimal `json:"lastBalanceValue"`
	MaxBalance         decimal.Decimal `json:"maxBalance"`
	MaxBalanceValue    decimal.Decimal `json:"maxBalanceValue"`
	MinRate            decimal.Decimal `json:"minRate"`
	MaxRate            decimal.Decimal `json:"maxRate"`
	Gain               decimal.Decimal `json:"gain"`
	TotalFeesValue     decimal.Decimal `json:"totalFeesValue"`
}

// TransactionLine is one purchase or disposal in an account listing.
type TransactionLine struct {
	Type          string              `json:"type"`
	Index         int                 `json:"index"`
	Key           string              `json:"key"`
	Currency      string              `json:"currency"`
	StartedAt     string              `json:"startedAt"`
	AssetAmount   decimal.Decimal     `json:"assetAmount"`
	Reference     decimal.NullDecimal `json:"referenceAmount"`
	Rate          decimal.NullDecimal `json:"rate"`
	FeeValue      decimal.Decimal     `json:"feeValue"`
	BalanceAfter  decimal.Decimal     `json:"balanceAfter"`
	BalanceToDate decimal.Decimal     `json:"balanceToDate"`
	BalanceValue  decimal.NullDecimal `json:"balanceValue"`
	Error         string              `json:"error,omitempty"`
}

// SaleLine is one disposal in a sales report, optionally expanded to one line per consumed lot.
type SaleLine struct {
	Index            int                 `json:"index"`
	Type             string              `json:"type"`
	Key              string              `json:"key"`
	Currency         string              `json:"currency"`
	StartedAt        string              `json:"startedAt"`
	Sold             decimal.Decimal     `json:"sold"`
	SoldFor          decimal.NullDecimal `json:"soldFor"`
	PurchaseFeeValue decimal.Decimal     `json:"purchaseFeeValue"`
	SaleFeeValue     decimal.Decimal     `json:"saleFeeValue"`
	Cost             decimal.Decimal     `json:"cost"`
	TotalCost        decimal.Decimal     `json:"totalCost"`
	Gain             decimal.NullDecimal `json:"gain"`
	Lots             int                 `json:"lots"`
	PurchaseDates    []string            `json:"purchaseDates"`
	LotIndex         *int                `json:"lotIndex,omitempty"`
	LotStartedAt     string              `json:"lotStartedAt,omitempty"`
	LotAmount        *decimal.Decimal    `json:"lotAmount,omitempty"`
	LotCost          *decimal.Decimal    `json:"lotCost,omitempty"`
	LotFeeValue      *decimal.Decimal    `json:"lotFeeValue,omitempty"`
	Error            string              `json:"error,omitempty"`
}

// Holding is an open lot.
type Holding struct {
	Currency       string          `json:"currency"`
	Key            string          `json:"key"`
	StartedAt      string          `json:"startedAt"`
	Remaining      decimal.Decimal `json:"remaining"`
	AcquiredAmount decimal.Decimal `json:"acquiredAmount"`
	RemainingCost  decimal.Decimal `json:"remainingCost"`
	RemainingFee   decimal.Decimal `json:"remainingFee"`
}

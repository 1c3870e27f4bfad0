package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrZeroAssetAmount  = errors.New("asset amount is zero")
	ErrInvalidPairLegs  = errors.New("a pair needs exactly one reference currency leg and one asset leg")
	ErrInvalidTimestamp = errors.New("invalid transaction timestamp")
)

type MatchMethod string

const (
	MatchedByDateTime MatchMethod = "date-time"
	MatchedByManual   MatchMethod = "manual"
)

// FeeConvention tells which side of a transaction the statement fee is denominated in.
// It is resolved once when a Pair or Withdrawal is built.
type FeeConvention int

const (
	AssetDenominated FeeConvention = iota
	ReferenceDenominated
)

func (c FeeConvention) String() string {
	if c == ReferenceDenominated {
		return "reference"
	}
	return "asset"
}

func (c FeeConvention) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Pair is one reconciled exchange: a reference currency leg and an asset leg.
type Pair struct {
	LocalKey          string          `json:"localKey"`
	CryptoKey         string          `json:"cryptoKey"`
	AssetCurrency     string          `json:"assetCurrency"`
	ReferenceCurrency string          `json:"referenceCurrency"`
	StartedAt         string          `json:"startedAt"`
	DateTime          time.Time       `json:"dateTime"`
	Year              int             `json:"year"`
	AssetAmount       decimal.Decimal `json:"assetAmount"`
	ReferenceAmount   decimal.Decimal `json:"referenceAmount"`
	AssetFee          decimal.Decimal `json:"assetFee"`
	ReferenceFee      decimal.Decimal `json:"referenceFee"`
	FeeConvention     FeeConvention   `json:"feeConvention"`
	BalanceAfter      decimal.Decimal `json:"balanceAfter"`
	RateToReference   decimal.Decimal `json:"rateToReference"`
	RateToAsset       decimal.Decimal `json:"rateToAsset"`
	MatchedBy         MatchMethod     `json:"matchedBy"`
}

// NewPair builds a Pair from two rows. Exactly one of them must be in referenceCurrency.
func NewPair(a, b LedgerRow, referenceCurrency string, matchedBy MatchMethod) (Pair, error) {
	var local, crypto LedgerRow
	switch {
	case a.Currency == referenceCurrency && b.Currency != referenceCurrency:
		local, crypto = a, b
	case b.Currency == referenceCurrency && a.Currency != referenceCurrency:
		local, crypto = b, a
	default:
		return Pair{}, fmt.Errorf("%w: %s/%s with reference %s", ErrInvalidPairLegs, a.Currency, b.Currency, referenceCurrency)
	}
	if crypto.Amount.IsZero() {
		return Pair{}, fmt.Errorf("%w: row %s", ErrZeroAssetAmount, crypto.Key)
	}

	dt, err := crypto.StartedTime()
	if err != nil {
		return Pair{}, fmt.Errorf("%w: row %s: %v", ErrInvalidTimestamp, crypto.Key, err)
	}

	p := Pair{
		LocalKey:          local.Key,
		CryptoKey:         crypto.Key,
		AssetCurrency:     crypto.Currency,
		ReferenceCurrency: referenceCurrency,
		StartedAt:         crypto.StartedAt,
		DateTime:          dt,
		Year:              dt.Year(),
		AssetAmount:       crypto.Amount,
		ReferenceAmount:   local.Amount,
		BalanceAfter:      crypto.Balance,
		MatchedBy:         matchedBy,
	}

	// Newer statements carry the fiat fee on the asset row and flag it with the base currency.
	if crypto.BaseCurrency == local.Currency {
		p.FeeConvention = ReferenceDenominated
		p.ReferenceFee = local.Fee.Abs().Add(crypto.Fee.Abs())
		p.AssetFee = decimal.Zero
	} else {
		p.FeeConvention = AssetDenominated
		p.ReferenceFee = local.Fee.Abs()
		p.AssetFee = crypto.Fee.Abs()
	}

	p.RateToReference = p.ReferenceAmount.Div(p.AssetAmount).Abs()
	if !p.ReferenceAmount.IsZero() {
		p.RateToAsset = p.AssetAmount.Div(p.ReferenceAmount).Abs()
	}
	return p, nil
}

func (p Pair) IsPurchase() bool { return p.AssetAmount.IsPositive() }

func (p Pair) IsSale() bool { return p.AssetAmount.IsNegative() }

// ManualPairOverride pins two row keys together regardless of their timestamps.
type ManualPairOverride struct {
	ID        string    `json:"id"`
	Key1      string    `json:"key1" validate:"required"`
	Key2      string    `json:"key2" validate:"required,nefield=Key1"`
	CreatedAt time.Time `json:"createdAt"`
}

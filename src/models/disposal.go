package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is an acquired lot. Remaining only ever decreases.
type Purchase struct {
	Index                   int             `json:"index"`
	Key                     string          `json:"key"`
	Currency                string          `json:"currency"`
	StartedAt               string          `json:"startedAt"`
	Date                    time.Time       `json:"date"`
	Year                    int             `json:"year"`
	AcquiredAmount          decimal.Decimal `json:"acquiredAmount"`
	AcquiredReferenceAmount decimal.Decimal `json:"acquiredReferenceAmount"`
	FeeValue                decimal.Decimal `json:"feeValue"`
	Remaining               decimal.Decimal `json:"remaining"`
	Rate                    decimal.Decimal `json:"rate"`
	BalanceAfter            decimal.Decimal `json:"balanceAfter"`
	BalanceToDate           decimal.Decimal `json:"balanceToDate"`
	Pair                    Pair            `json:"pair"`
}

func NewPurchase(p Pair) (*Purchase, error) {
	if !p.IsPurchase() {
		return nil, fmt.Errorf("pair %s/%s is not a purchase", p.LocalKey, p.CryptoKey)
	}
	acquired := p.AssetAmount.Sub(p.AssetFee)
	return &Purchase{
		Key:                     p.CryptoKey,
		Currency:                p.AssetCurrency,
		StartedAt:               p.StartedAt,
		Date:                    p.DateTime,
		Year:                    p.Year,
		AcquiredAmount:          acquired,
		AcquiredReferenceAmount: p.ReferenceAmount.Abs(),
		FeeValue:                p.ReferenceFee.Add(p.RateToReference.Mul(p.AssetFee)),
		Remaining:               acquired,
		Rate:                    p.RateToReference,
		BalanceAfter:            p.BalanceAfter,
		Pair:                    p,
	}, nil
}

// Allocation is the part of one lot consumed by one disposal.
type Allocation struct {
	LotIndex                int             `json:"lotIndex"`
	PurchaseKey             string          `json:"purchaseKey"`
	Amount                  decimal.Decimal `json:"amount"`
	RemainingAfter          decimal.Decimal `json:"remainingAfter"`
	AcquiredDate            time.Time       `json:"acquiredDate"`
	ProratedReferenceAmount decimal.Decimal `json:"proratedReferenceAmount"`
	ProratedFee             decimal.Decimal `json:"proratedFee"`
}

type DisposalKind string

const (
	KindSale       DisposalKind = "sale"
	KindWithdrawal DisposalKind = "withdrawal"
)

// Disposal is either a Sale (built from a sale Pair) or a Withdrawal (built from a single
// withdrawal row). Both consume lots the same way through NeedsAssetAmount.
type Disposal struct {
	Kind              DisposalKind    `json:"kind"`
	Index             int             `json:"index"`
	Key               string          `json:"key"`
	LocalKey          string          `json:"localKey,omitempty"`
	Currency          string          `json:"currency"`
	ReferenceCurrency string          `json:"referenceCurrency"`
	StartedAt         string          `json:"startedAt"`
	Date              time.Time       `json:"date"`
	Year              int             `json:"year"`
	AssetAmount       decimal.Decimal `json:"assetAmount"`
	AssetFee          decimal.Decimal `json:"assetFee"`
	ReferenceFee      decimal.Decimal `json:"referenceFee"`
	FeeConvention     FeeConvention   `json:"feeConvention"`
	DisposedAmount    decimal.Decimal `json:"disposedAmount"`
	BalanceAfter      decimal.Decimal `json:"balanceAfter"`
	BalanceToDate     decimal.Decimal `json:"balanceToDate"`

	// Unknown for withdrawals whose row carries no fiat value.
	ReferenceAmount decimal.NullDecimal `json:"referenceAmount"`
	Rate            decimal.NullDecimal `json:"rate"`

	DisposalFeeValue     decimal.Decimal     `json:"disposalFeeValue"`
	CostBasis            decimal.Decimal     `json:"costBasis"`
	PurchaseFeeAllocated decimal.Decimal     `json:"purchaseFeeAllocated"`
	Gain                 decimal.NullDecimal `json:"gain"`
	ConsumedLots         []Allocation        `json:"consumedLots"`
	Error                string              `json:"error,omitempty"`
}

func NewSale(p Pair) (*Disposal, error) {
	if !p.IsSale() {
		return nil, fmt.Errorf("pair %s/%s is not a sale", p.LocalKey, p.CryptoKey)
	}
	d := &Disposal{
		Kind:              KindSale,
		Key:               p.CryptoKey,
		LocalKey:          p.LocalKey,
		Currency:          p.AssetCurrency,
		ReferenceCurrency: p.ReferenceCurrency,
		StartedAt:         p.StartedAt,
		Date:              p.DateTime,
		Year:              p.Year,
		AssetAmount:       p.AssetAmount,
		AssetFee:          p.AssetFee,
		ReferenceFee:      p.ReferenceFee,
		FeeConvention:     p.FeeConvention,
		DisposedAmount:    p.AssetAmount.Abs().Add(p.AssetFee),
		BalanceAfter:      p.BalanceAfter,
		ReferenceAmount:   decimal.NewNullDecimal(p.ReferenceAmount),
		Rate:              decimal.NewNullDecimal(p.RateToReference),
		DisposalFeeValue:  p.ReferenceFee.Add(p.RateToReference.Mul(p.AssetFee)),
		ConsumedLots:      []Allocation{},
	}
	return d, nil
}

// NewWithdrawal builds a disposal from a withdrawal row. The fee is reference denominated when
// the row names a base currency other than its own; the fiat value is only usable when it is
// expressed in referenceCurrency.
func NewWithdrawal(row LedgerRow, referenceCurrency string) (*Disposal, error) {
	if row.Amount.IsZero() {
		return nil, fmt.Errorf("%w: row %s", ErrZeroAssetAmount, row.Key)
	}
	dt, err := row.StartedTime()
	if err != nil {
		return nil, fmt.Errorf("%w: row %s: %v", ErrInvalidTimestamp, row.Key, err)
	}

	d := &Disposal{
		Kind:              KindWithdrawal,
		Key:               row.Key,
		Currency:          row.Currency,
		ReferenceCurrency: referenceCurrency,
		StartedAt:         row.StartedAt,
		Date:              dt,
		Year:              dt.Year(),
		AssetAmount:       row.Amount,
		BalanceAfter:      row.Balance,
		ConsumedLots:      []Allocation{},
	}

	if row.BaseCurrency != "" && row.BaseCurrency != row.Currency {
		d.FeeConvention = ReferenceDenominated
		d.ReferenceFee = row.Fee.Abs()
		d.AssetFee = decimal.Zero
	} else {
		d.FeeConvention = AssetDenominated
		d.AssetFee = row.Fee.Abs()
		d.ReferenceFee = decimal.Zero
	}
	d.DisposedAmount = row.Amount.Abs().Add(d.AssetFee)

	fiatCurrency := row.BaseCurrency
	if fiatCurrency == "" {
		fiatCurrency = referenceCurrency
	}
	if row.FiatAmount.Valid && fiatCurrency == referenceCurrency {
		d.ReferenceAmount = decimal.NewNullDecimal(row.FiatAmount.Decimal.Abs())
		d.Rate = decimal.NewNullDecimal(row.FiatAmount.Decimal.Div(row.Amount).Abs())
	}

	d.DisposalFeeValue = d.ReferenceFee
	if d.Rate.Valid {
		d.DisposalFeeValue = d.DisposalFeeValue.Add(d.Rate.Decimal.Mul(d.AssetFee))
	}
	return d, nil
}

// NeedsAssetAmount is the quantity the disposal removes from the lot queue, fee included.
func (d *Disposal) NeedsAssetAmount() decimal.Decimal {
	return d.DisposedAmount
}

func (d *Disposal) IsValid() bool {
	return len(d.ConsumedLots) > 0
}

// Type is the display type used by listings: sale, invalidSale, withdrawal, invalidWithdrawal.
func (d *Disposal) Type() string {
	if d.IsValid() {
		return string(d.Kind)
	}
	if d.Kind == KindSale {
		return "invalidSale"
	}
	return "invalidWithdrawal"
}

func (d *Disposal) HasReferenceValue() bool {
	return d.ReferenceAmount.Valid
}

// Proceeds is the reference value received, zero when unknown.
func (d *Disposal) Proceeds() decimal.Decimal {
	if !d.ReferenceAmount.Valid {
		return decimal.Zero
	}
	return d.ReferenceAmount.Decimal.Abs()
}

// TotalCost is the cost basis plus every fee charged on the way in and out.
func (d *Disposal) TotalCost() decimal.Decimal {
	return d.CostBasis.Add(d.PurchaseFeeAllocated).Add(d.DisposalFeeValue)
}

// ApplyAllocations records consumed lots and derives cost, allocated fees and gain.
func (d *Disposal) ApplyAllocations(allocs []Allocation) {
	d.ConsumedLots = allocs
	d.CostBasis = decimal.Zero
	d.PurchaseFeeAllocated = decimal.Zero
	for _, a := range allocs {
		d.CostBasis = d.CostBasis.Add(a.ProratedReferenceAmount.Abs())
		d.PurchaseFeeAllocated = d.PurchaseFeeAllocated.Add(a.ProratedFee)
	}
	d.Error = ""
	if d.HasReferenceValue() {
		d.Gain = decimal.NewNullDecimal(d.Proceeds().Sub(d.TotalCost()))
	} else {
		d.Gain = decimal.NullDecimal{}
	}
}

// AcquiredDates returns the distinct acquisition dates of the consumed lots, oldest first.
func (d *Disposal) AcquiredDates() []time.Time {
	var dates []time.Time
	seen := make(map[string]bool)
	for _, a := range d.ConsumedLots {
		day := a.AcquiredDate.Format("2006-01-02")
		if seen[day] {
			continue
		}
		seen[day] = true
		dates = append(dates, a.AcquiredDate)
	}
	return dates
}

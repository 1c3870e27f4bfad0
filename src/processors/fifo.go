package processors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/revoledger/src/models"
)

var (
	ErrMissingPurchase = errors.New("missing purchase")
	ErrInvalidNeed     = errors.New("required amount must be positive")
)

var toleranceDivisor = decimal.New(1, 9)

// FIFOResult is the allocation plan for one disposal. Nothing in it has been applied to the lots yet.
type FIFOResult struct {
	Allocations []models.Allocation
	Cursor      int
}

// MatchFIFO plans the consumption of need units from lots, starting at cursor. It never mutates
// lots. Residuals up to need/1e9 count as satisfied.
func MatchFIFO(lots []*models.Purchase, cursor int, need decimal.Decimal) (FIFOResult, error) {
	if !need.IsPositive() {
		return FIFOResult{Cursor: cursor}, fmt.Errorf("%w: %s", ErrInvalidNeed, need)
	}

	epsilon := need.Div(toleranceDivisor)
	left := need
	allocs := make([]models.Allocation, 0, 1)

	for left.GreaterThan(epsilon) {
		if cursor >= len(lots) {
			return FIFOResult{Cursor: cursor}, fmt.Errorf("%w: %s of %s could not be matched", ErrMissingPurchase, left.String(), need.String())
		}
		lot := lots[cursor]
		avail := lot.Remaining
		if !avail.IsPositive() || !lot.AcquiredAmount.IsPositive() {
			cursor++
			continue
		}

		if avail.Sub(left).GreaterThan(epsilon) {
			allocs = append(allocs, allocate(lot, cursor, left, avail.Sub(left)))
			left = decimal.Zero
			break
		}

		allocs = append(allocs, allocate(lot, cursor, avail, decimal.Zero))
		left = left.Sub(avail)
		cursor++
	}

	return FIFOResult{Allocations: allocs, Cursor: cursor}, nil
}

func allocate(lot *models.Purchase, index int, amount, remainingAfter decimal.Decimal) models.Allocation {
	return models.Allocation{
		LotIndex:                index,
		PurchaseKey:             lot.Key,
		Amount:                  amount,
		RemainingAfter:          remainingAfter,
		AcquiredDate:            lot.Date,
		ProratedReferenceAmount: lot.AcquiredReferenceAmount.Mul(amount).Div(lot.AcquiredAmount),
		ProratedFee:             lot.FeeValue.Mul(amount).Div(lot.AcquiredAmount),
	}
}

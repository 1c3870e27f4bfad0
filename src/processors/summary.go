package processors

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/revoledger/src/models"
)

type observation struct {
	year    int
	date    time.Time
	balance decimal.Decimal
	rate    decimal.NullDecimal
}

// YearlySummary reduces the account into one summary per calendar year.
func (a *Account) YearlySummary() map[int]*models.YearSummary {
	years := make(map[int]*models.YearSummary)
	var observations []observation

	for _, p := range a.Purchases {
		y := a.year(years, p.Year)
		y.Purchases++
		y.Purchased = y.Purchased.Add(p.AcquiredAmount)
		y.PurchasedFor = y.PurchasedFor.Add(p.AcquiredReferenceAmount)
		y.TotalFeesValue = y.TotalFeesValue.Add(p.FeeValue)
		observations = append(observations, observation{p.Year, p.Date, p.BalanceAfter, decimal.NewNullDecimal(p.Rate)})
	}

	for _, d := range a.Disposals {
		y := a.year(years, d.Year)
		switch {
		case !d.IsValid():
			if d.Kind == models.KindSale {
				y.SalesInvalid++
			} else {
				y.WithdrawalsInvalid++
			}
			y.SoldInvalid = y.SoldInvalid.Add(d.DisposedAmount)
			y.SoldInvalidFor = y.SoldInvalidFor.Add(d.Proceeds())
		case d.Kind == models.KindSale:
			y.Sales++
			y.Sold = y.Sold.Add(d.DisposedAmount)
			y.SoldFor = y.SoldFor.Add(d.Proceeds())
			if d.Gain.Valid {
				y.Gain = y.Gain.Add(d.Gain.Decimal)
			}
			y.TotalFeesValue = y.TotalFeesValue.Add(d.PurchaseFeeAllocated).Add(d.DisposalFeeValue)
		default:
			y.Withdrawals++
			y.Withdrawn = y.Withdrawn.Add(d.DisposedAmount)
			y.TotalFeesValue = y.TotalFeesValue.Add(d.DisposalFeeValue)
		}
		observations = append(observations, observation{d.Year, d.Date, d.BalanceAfter, d.Rate})
	}

	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].date.Before(observations[j].date)
	})

	seen := make(map[int]bool)
	for _, o := range observations {
		y := years[o.year]
		if !seen[o.year] {
			seen[o.year] = true
			y.FirstDate = o.date
			y.FirstBalance = o.balance
			y.MaxBalance = o.balance
		}
		y.LastDate = o.date
		y.LastBalance = o.balance
		if o.balance.GreaterThan(y.MaxBalance) {
			y.MaxBalance = o.balance
		}
		if !o.rate.Valid {
			continue
		}

		value := o.balance.Mul(o.rate.Decimal)
		y.LastBalanceValue = value
		if value.GreaterThan(y.MaxBalanceValue) {
			y.MaxBalanceValue = value
		}
		if y.MinRate.IsZero() || o.rate.Decimal.LessThan(y.MinRate) {
			y.MinRate = o.rate.Decimal
		}
		if o.rate.Decimal.GreaterThan(y.MaxRate) {
			y.MaxRate = o.rate.Decimal
		}
	}
	return years
}

func (a *Account) year(years map[int]*models.YearSummary, year int) *models.YearSummary {
	y, ok := years[year]
	if !ok {
		y = &models.YearSummary{Currency: a.Currency, Year: year}
		years[year] = y
	}
	return y
}

// SummaryLines flattens the yearly summaries of every account, ordered by currency then year.
func SummaryLines(accounts map[string]*Account) []models.YearSummary {
	lines := []models.YearSummary{}
	for _, currency := range SortedCurrencies(accounts) {
		summary := accounts[currency].YearlySummary()
		yrs := make([]int, 0, len(summary))
		for y := range summary {
			yrs = append(yrs, y)
		}
		sort.Ints(yrs)
		for _, y := range yrs {
			lines = append(lines, *summary[y])
		}
	}
	return lines
}

package processors

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/revoledger/src/models"
)

// ClassifyYear collects the valid sales of year and splits them into short and long term.
// A sale is short term as a whole as soon as one consumed lot was acquired less than one
// calendar year before it. usdRate is units of reference currency per USD; a non positive rate
// falls back to 1.
func ClassifyYear(accounts map[string]*Account, year int, referenceCurrency string, usdRate decimal.Decimal) models.Classification {
	if !usdRate.IsPositive() {
		usdRate = decimal.NewFromInt(1)
	}
	c := models.Classification{
		Year:              year,
		ReferenceCurrency: referenceCurrency,
		USDRate:           usdRate,
		ShortTerm:         []models.ClassifiedSale{},
		LongTerm:          []models.ClassifiedSale{},
	}

	for _, currency := range SortedCurrencies(accounts) {
		for _, sale := range accounts[currency].Sales() {
			if sale.Year != year || !sale.IsValid() {
				continue
			}
			cs := models.ClassifiedSale{
				Currency:      sale.Currency,
				Key:           sale.Key,
				Amount:        sale.DisposedAmount,
				SoldDate:      sale.Date,
				AcquiredDates: sale.AcquiredDates(),
				Proceeds:      sale.Proceeds(),
				CostBasis:     sale.CostBasis,
				TotalCost:     sale.TotalCost(),
				Gain:          sale.Gain.Decimal,
				Term:          TermOf(sale),
			}
			if cs.Term == models.ShortTerm {
				c.ShortTerm = append(c.ShortTerm, cs)
			} else {
				c.LongTerm = append(c.LongTerm, cs)
			}
		}
	}

	sortClassified(c.ShortTerm)
	sortClassified(c.LongTerm)
	for _, s := range c.ShortTerm {
		c.ShortTermTotals = c.ShortTermTotals.Add(s)
	}
	for _, s := range c.LongTerm {
		c.LongTermTotals = c.LongTermTotals.Add(s)
	}
	c.ShortTermUSD = c.ShortTermTotals.Div(usdRate)
	c.LongTermUSD = c.LongTermTotals.Div(usdRate)
	return c
}

// TermOf applies the holding period rule on calendar days.
func TermOf(sale *models.Disposal) models.Term {
	oneYearBefore := day(sale.Date).AddDate(-1, 0, 0)
	for _, lot := range sale.ConsumedLots {
		if day(lot.AcquiredDate).After(oneYearBefore) {
			return models.ShortTerm
		}
	}
	return models.LongTerm
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sortClassified(sales []models.ClassifiedSale) {
	sort.SliceStable(sales, func(i, j int) bool {
		if !sales[i].SoldDate.Equal(sales[j].SoldDate) {
			return sales[i].SoldDate.Before(sales[j].SoldDate)
		}
		return sales[i].Key < sales[j].Key
	})
}

// TaxYears lists the years that have valid sales in any account, newest first.
func TaxYears(accounts map[string]*Account) []int {
	seen := make(map[int]bool)
	for _, acc := range accounts {
		for _, s := range acc.Sales() {
			if s.IsValid() {
				seen[s.Year] = true
			}
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

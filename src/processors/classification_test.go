package processors

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/revoledger/src/models"
)

func TestTermOfHoldingPeriod(t *testing.T) {
	tests := []struct {
		name     string
		bought   string
		sold     string
		expected models.Term
	}{
		{"same year", "2020-01-01 10:00:00", "2020-06-01 10:00:00", models.ShortTerm},
		{"one day short of a year", "2019-01-02 10:00:00", "2020-01-01 10:00:00", models.ShortTerm},
		{"exactly one calendar year", "2019-01-01 23:00:00", "2020-01-01 01:00:00", models.LongTerm},
		{"more than a year", "2018-03-01 10:00:00", "2020-01-01 10:00:00", models.LongTerm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs := []models.Pair{
				mustPair(trade("b", "BTC", "1", "-100", tt.bought)),
				mustPair(trade("s", "BTC", "-1", "200", tt.sold)),
			}
			accounts, _ := BuildAccounts(pairs, nil, "EUR")
			sale := accounts["BTC"].Disposals[0]
			require.True(t, sale.IsValid())
			assert.Equal(t, tt.expected, TermOf(sale))
		})
	}
}

func TestClassifyYearWholeSaleIsShortWhenAnyLotIsRecent(t *testing.T) {
	pairs := []models.Pair{
		mustPair(trade("old", "BTC", "0.5", "-5000", "2018-01-01 10:00:00")),
		mustPair(trade("new", "BTC", "0.5", "-10000", "2020-03-01 10:00:00")),
		mustPair(trade("sell", "BTC", "-0.8", "24000", "2020-06-01 10:00:00")),
	}
	accounts, _ := BuildAccounts(pairs, nil, "EUR")

	c := ClassifyYear(accounts, 2020, "EUR", dec("0.877"))
	require.Len(t, c.ShortTerm, 1)
	assert.Empty(t, c.LongTerm)

	sale := c.ShortTerm[0]
	assert.Len(t, sale.AcquiredDates, 2)
	// 5000 for the old lot plus 0.3 of the new one
	assert.True(t, sale.CostBasis.Equal(dec("11000")))
	assert.True(t, c.ShortTermTotals.Gain.Equal(dec("13000")))
	assert.True(t, c.ShortTermTotals.Proceeds.Equal(dec("24000")))
	assert.True(t, c.ShortTermUSD.Proceeds.Equal(dec("24000").Div(dec("0.877"))))
	assert.True(t, c.LongTermTotals.Gain.IsZero())
}

func TestClassifyYearSortsAcrossCurrenciesAndSkipsOtherYears(t *testing.T) {
	pairs := []models.Pair{
		mustPair(trade("b1", "BTC", "1", "-100", "2017-01-01 10:00:00")),
		mustPair(trade("b2", "ETH", "1", "-10", "2017-01-01 10:00:00")),
		mustPair(trade("s1", "ETH", "-0.5", "20", "2019-05-01 10:00:00")),
		mustPair(trade("s2", "BTC", "-0.5", "300", "2019-02-01 10:00:00")),
		mustPair(trade("s3", "BTC", "-0.1", "90", "2020-02-01 10:00:00")),
	}
	accounts, _ := BuildAccounts(pairs, nil, "EUR")

	c := ClassifyYear(accounts, 2019, "EUR", decimal.Zero)
	assert.True(t, c.USDRate.Equal(decimal.NewFromInt(1)))
	assert.Empty(t, c.ShortTerm)
	require.Len(t, c.LongTerm, 2)
	assert.Equal(t, "BTC", c.LongTerm[0].Currency)
	assert.Equal(t, "ETH", c.LongTerm[1].Currency)
	assert.True(t, c.LongTermTotals.Gain.Equal(dec("265")))
	assert.True(t, c.LongTermUSD.Gain.Equal(dec("265")))

	assert.Equal(t, []int{2020, 2019}, TaxYears(accounts))
}

func TestClassifyYearIgnoresWithdrawals(t *testing.T) {
	pairs := []models.Pair{mustPair(trade("b", "BTC", "1", "-100", "2020-01-01 10:00:00"))}
	w := withdrawalRow("w", "BTC", "-0.5", "2020-02-01 10:00:00")
	w.FiatAmount = decimal.NewNullDecimal(dec("-80"))

	accounts, _ := BuildAccounts(pairs, []models.LedgerRow{w}, "EUR")
	c := ClassifyYear(accounts, 2020, "EUR", decimal.NewFromInt(1))
	assert.Empty(t, c.ShortTerm)
	assert.Empty(t, c.LongTerm)
	assert.Empty(t, TaxYears(accounts))
}

package processors

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/revoledger/src/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func exchangeRow(key, currency, amount, started string) models.LedgerRow {
	return models.LedgerRow{
		Key:         key,
		Type:        models.RowTypeExchange,
		Currency:    currency,
		Amount:      dec(amount),
		Fee:         decimal.Zero,
		Balance:     decimal.Zero,
		StartedAt:   started,
		CompletedAt: started,
		State:       "COMPLETED",
	}
}

// trade returns the two rows of one exchange at started.
func trade(id, asset, assetAmount, eurAmount, started string) []models.LedgerRow {
	return []models.LedgerRow{
		exchangeRow(fmt.Sprintf("%s-eur", id), "EUR", eurAmount, started),
		exchangeRow(fmt.Sprintf("%s-%s", id, asset), asset, assetAmount, started),
	}
}

func mustPair(rows []models.LedgerRow) models.Pair {
	p, err := models.NewPair(rows[0], rows[1], "EUR", models.MatchedByDateTime)
	if err != nil {
		panic(err)
	}
	return p
}

func withdrawalRow(key, currency, amount, started string) models.LedgerRow {
	r := exchangeRow(key, currency, amount, started)
	r.Type = models.RowTypeWithdrawal
	return r
}

package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/revoledger/src/models"
)

const t1 = "2021-02-03 10:11:12"

func TestComputePairsTwoRows(t *testing.T) {
	rows := []models.LedgerRow{
		exchangeRow("A", "EUR", "-1000", t1),
		exchangeRow("B", "BTC", "0.1", t1),
	}

	res := ComputePairs(rows, nil, "EUR")

	require.Len(t, res.Pairs, 1)
	assert.Empty(t, res.Orphans)
	p := res.Pairs[0]
	assert.Equal(t, models.MatchedByDateTime, p.MatchedBy)
	assert.True(t, p.AssetAmount.Equal(dec("0.1")))
	assert.True(t, p.ReferenceAmount.Equal(dec("-1000")))
	assert.Equal(t, "A", p.LocalKey)
	assert.Equal(t, "B", p.CryptoKey)
}

func TestComputePairsMultiLegSwap(t *testing.T) {
	tests := []struct {
		name string
		rows []models.LedgerRow
	}{
		{
			name: "equal magnitude",
			rows: []models.LedgerRow{
				exchangeRow("e1", "EUR", "-100", t1),
				exchangeRow("e2", "EUR", "100", t1),
				exchangeRow("b1", "BTC", "0.01", t1),
				exchangeRow("b2", "BTC", "-0.01", t1),
			},
		},
		{
			name: "buy and sell",
			rows: []models.LedgerRow{
				exchangeRow("e1", "EUR", "500", t1),
				exchangeRow("e2", "EUR", "-1000", t1),
				exchangeRow("b1", "BTC", "-0.05", t1),
				exchangeRow("b2", "BTC", "0.1", t1),
			},
		},
		{
			name: "two buys",
			rows: []models.LedgerRow{
				exchangeRow("e1", "EUR", "-500", t1),
				exchangeRow("e2", "EUR", "-1000", t1),
				exchangeRow("b1", "BTC", "0.05", t1),
				exchangeRow("b2", "BTC", "0.1", t1),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ComputePairs(tt.rows, nil, "EUR")
			require.Len(t, res.Pairs, 2)
			assert.Empty(t, res.Orphans)
			for _, p := range res.Pairs {
				assert.Equal(t, -1, p.AssetAmount.Sign()*p.ReferenceAmount.Sign(), "legs of %s/%s must have opposite signs", p.LocalKey, p.CryptoKey)
			}
		})
	}
}

func TestComputePairsBiggestLegsMatched(t *testing.T) {
	rows := []models.LedgerRow{
		exchangeRow("e1", "EUR", "-500", t1),
		exchangeRow("e2", "EUR", "-1000", t1),
		exchangeRow("b1", "BTC", "0.05", t1),
		exchangeRow("b2", "BTC", "0.1", t1),
	}
	res := ComputePairs(rows, nil, "EUR")
	require.Len(t, res.Pairs, 2)

	byLocal := map[string]string{}
	for _, p := range res.Pairs {
		byLocal[p.LocalKey] = p.CryptoKey
	}
	assert.Equal(t, "b2", byLocal["e2"])
	assert.Equal(t, "b1", byLocal["e1"])
}

func TestComputePairsAmbiguousGroupsBecomeOrphans(t *testing.T) {
	tests := []struct {
		name string
		rows []models.LedgerRow
	}{
		{"single row", []models.LedgerRow{exchangeRow("x", "BTC", "1", t1)}},
		{"odd group", []models.LedgerRow{
			exchangeRow("a", "EUR", "-10", t1),
			exchangeRow("b", "BTC", "0.1", t1),
			exchangeRow("c", "BTC", "0.2", t1),
		}},
		{"no reference currency", []models.LedgerRow{
			exchangeRow("a", "ETH", "-1", t1),
			exchangeRow("b", "BTC", "0.05", t1),
		}},
		{"three currencies", []models.LedgerRow{
			exchangeRow("a", "EUR", "-10", t1),
			exchangeRow("b", "BTC", "0.1", t1),
			exchangeRow("c", "ETH", "-1", t1),
			exchangeRow("d", "EUR", "5", t1),
		}},
		{"unbalanced currency counts", []models.LedgerRow{
			exchangeRow("a", "EUR", "-10", t1),
			exchangeRow("b", "EUR", "-20", t1),
			exchangeRow("c", "EUR", "30", t1),
			exchangeRow("d", "BTC", "0.1", t1),
		}},
		{"multi leg with same signs", []models.LedgerRow{
			exchangeRow("a", "EUR", "-10", t1),
			exchangeRow("b", "EUR", "-20", t1),
			exchangeRow("c", "BTC", "-0.1", t1),
			exchangeRow("d", "BTC", "-0.2", t1),
		}},
		{"zero asset amount", []models.LedgerRow{
			exchangeRow("a", "EUR", "-10", t1),
			exchangeRow("b", "BTC", "0", t1),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ComputePairs(tt.rows, nil, "EUR")
			assert.Empty(t, res.Pairs)
			assert.Len(t, res.Orphans, len(tt.rows))
		})
	}
}

func TestComputePairsGroupsByExactTimestamp(t *testing.T) {
	rows := []models.LedgerRow{
		exchangeRow("a", "EUR", "-10", "2021-02-03 10:11:12"),
		exchangeRow("b", "BTC", "0.001", "2021-02-03 10:11:13"),
	}
	res := ComputePairs(rows, nil, "EUR")
	assert.Empty(t, res.Pairs)
	assert.Equal(t, []string{"a", "b"}, res.Orphans)
}

func TestComputePairsManualOverride(t *testing.T) {
	rows := []models.LedgerRow{
		exchangeRow("a", "EUR", "-10", "2021-02-03 10:11:12"),
		exchangeRow("b", "BTC", "0.001", "2021-02-03 10:11:14"),
		exchangeRow("c", "EUR", "-20", "2021-03-01 08:00:00"),
		exchangeRow("d", "BTC", "0.002", "2021-03-01 08:00:00"),
	}
	overrides := []models.ManualPairOverride{{ID: "o1", Key1: "b", Key2: "a"}}

	res := ComputePairs(rows, overrides, "EUR")

	require.Len(t, res.Pairs, 2)
	assert.Empty(t, res.Orphans)
	assert.Empty(t, res.StaleOverrides)
	assert.Equal(t, models.MatchedByManual, res.Pairs[0].MatchedBy)
	assert.Equal(t, "a", res.Pairs[0].LocalKey)
	assert.Equal(t, models.MatchedByDateTime, res.Pairs[1].MatchedBy)
}

func TestComputePairsStaleOverrideReturnsSurvivorToPool(t *testing.T) {
	rows := []models.LedgerRow{
		exchangeRow("a", "EUR", "-10", t1),
		exchangeRow("b", "BTC", "0.001", t1),
	}
	// "gone" was deleted upstream, "a" must be auto paired again.
	overrides := []models.ManualPairOverride{{ID: "o1", Key1: "a", Key2: "gone"}}

	res := ComputePairs(rows, overrides, "EUR")

	require.Len(t, res.Pairs, 1)
	assert.Equal(t, models.MatchedByDateTime, res.Pairs[0].MatchedBy)
	assert.Equal(t, []string{"o1"}, res.StaleOverrides)
	assert.Empty(t, res.Orphans)
}

func TestComputePairsInvalidOverrideShape(t *testing.T) {
	rows := []models.LedgerRow{
		exchangeRow("a", "EUR", "-10", "2021-02-03 10:11:12"),
		exchangeRow("b", "EUR", "10", "2021-02-04 10:11:12"),
	}
	overrides := []models.ManualPairOverride{{ID: "o1", Key1: "a", Key2: "b"}}

	res := ComputePairs(rows, overrides, "EUR")

	assert.Empty(t, res.Pairs)
	assert.Equal(t, []string{"o1"}, res.StaleOverrides)
	assert.Equal(t, []string{"a", "b"}, res.Orphans)
}

func TestComputePairsDeterministicAndConservative(t *testing.T) {
	var rows []models.LedgerRow
	rows = append(rows, trade("t3", "ETH", "-2", "3000", "2021-05-01 12:00:00")...)
	rows = append(rows, trade("t1", "BTC", "0.1", "-1000", "2021-01-01 12:00:00")...)
	rows = append(rows, trade("t2", "BTC", "-0.05", "700", "2021-03-01 12:00:00")...)
	rows = append(rows, exchangeRow("lonely", "XRP", "5", "2021-04-01 00:00:00"))

	first := ComputePairs(rows, nil, "EUR")
	reversed := make([]models.LedgerRow, len(rows))
	for i := range rows {
		reversed[len(rows)-1-i] = rows[i]
	}
	second := ComputePairs(reversed, nil, "EUR")

	assert.Equal(t, first, second)
	require.Len(t, first.Pairs, 3)
	assert.Equal(t, "2021-01-01 12:00:00", first.Pairs[0].StartedAt)
	assert.Equal(t, "2021-05-01 12:00:00", first.Pairs[2].StartedAt)

	seen := map[string]int{}
	for _, p := range first.Pairs {
		seen[p.LocalKey]++
		seen[p.CryptoKey]++
	}
	for _, k := range first.Orphans {
		seen[k]++
	}
	assert.Len(t, seen, len(rows))
	for key, n := range seen {
		assert.Equal(t, 1, n, key)
	}
}

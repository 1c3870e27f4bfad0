package processors

import (
	"sort"

	"github.com/username/revoledger/src/logger"
	"github.com/username/revoledger/src/models"
)

// PairResult is the outcome of one pairing pass. Every input row ends up either in exactly one
// Pair or in Orphans.
type PairResult struct {
	Pairs   []models.Pair `json:"pairs"`
	Orphans []string      `json:"orphans"`
	// StaleOverrides lists overrides that no longer resolve to a valid pair. Their rows went
	// back to the automatic pool and the row store should drop them.
	StaleOverrides []string `json:"staleOverrides"`
}

// ComputePairs reconciles exchange rows into Pairs. Manual overrides are applied first, the
// remaining rows are grouped by their exact start timestamp.
func ComputePairs(rows []models.LedgerRow, overrides []models.ManualPairOverride, referenceCurrency string) PairResult {
	result := PairResult{Pairs: []models.Pair{}, Orphans: []string{}, StaleOverrides: []string{}}

	byKey := make(map[string]models.LedgerRow, len(rows))
	var order []string
	for _, r := range rows {
		if _, dup := byKey[r.Key]; dup {
			logger.Get().Warn("Duplicate row key passed to pairer, keeping the first one", "key", r.Key)
			continue
		}
		byKey[r.Key] = r
		order = append(order, r.Key)
	}

	pinned := make(map[string]bool)
	for _, o := range overrides {
		pinned[o.Key1] = true
		pinned[o.Key2] = true
	}

	consumed := make(map[string]bool)
	returned := make(map[string]bool)
	for _, o := range overrides {
		r1, ok1 := byKey[o.Key1]
		r2, ok2 := byKey[o.Key2]
		ok1 = ok1 && !consumed[o.Key1]
		ok2 = ok2 && !consumed[o.Key2]

		if ok1 && ok2 && o.Key1 != o.Key2 {
			pair, err := models.NewPair(r1, r2, referenceCurrency, models.MatchedByManual)
			if err == nil {
				consumed[o.Key1] = true
				consumed[o.Key2] = true
				result.Pairs = append(result.Pairs, pair)
				continue
			}
			logger.Get().Warn("Manual pair override does not form a valid pair", "overrideID", o.ID, "error", err)
		} else {
			logger.Get().Debug("Manual pair override is stale", "overrideID", o.ID, "key1Live", ok1, "key2Live", ok2)
		}

		result.StaleOverrides = append(result.StaleOverrides, o.ID)
		if ok1 {
			returned[o.Key1] = true
		}
		if ok2 {
			returned[o.Key2] = true
		}
	}

	groups := make(map[string][]models.LedgerRow)
	for _, key := range order {
		if consumed[key] || (pinned[key] && !returned[key]) {
			continue
		}
		r := byKey[key]
		groups[r.StartedAt] = append(groups[r.StartedAt], r)
	}

	stamps := make([]string, 0, len(groups))
	for stamp := range groups {
		stamps = append(stamps, stamp)
	}
	sort.Strings(stamps)

	for _, stamp := range stamps {
		group := groups[stamp]
		pairs, ok := pairTimeGroup(group, referenceCurrency)
		if !ok {
			for _, r := range group {
				result.Orphans = append(result.Orphans, r.Key)
			}
			continue
		}
		result.Pairs = append(result.Pairs, pairs...)
	}

	sortPairs(result.Pairs)
	sort.Strings(result.Orphans)
	sort.Strings(result.StaleOverrides)

	logger.Get().Debug("Pairing finished",
		"rows", len(byKey),
		"pairs", len(result.Pairs),
		"orphans", len(result.Orphans),
		"staleOverrides", len(result.StaleOverrides))
	return result
}

// pairTimeGroup applies the automatic grouping rules to rows sharing one start timestamp.
// It reports false when the group is ambiguous and must be left to manual resolution.
func pairTimeGroup(group []models.LedgerRow, referenceCurrency string) ([]models.Pair, bool) {
	n := len(group)
	if n < 2 || n%2 != 0 {
		return nil, false
	}

	var refRows, assetRows []models.LedgerRow
	currencies := make(map[string]bool)
	for _, r := range group {
		currencies[r.Currency] = true
		if r.Currency == referenceCurrency {
			refRows = append(refRows, r)
		} else {
			assetRows = append(assetRows, r)
		}
	}
	if len(currencies) != 2 || len(refRows) == 0 || len(refRows) != len(assetRows) {
		return nil, false
	}

	if n == 2 {
		pair, err := models.NewPair(refRows[0], assetRows[0], referenceCurrency, models.MatchedByDateTime)
		if err != nil {
			logger.Get().Debug("Two row group could not be paired", "startedAt", group[0].StartedAt, "error", err)
			return nil, false
		}
		return []models.Pair{pair}, true
	}

	// Multi-leg swaps: the biggest reference outflow goes with the biggest asset inflow.
	sort.SliceStable(refRows, func(i, j int) bool {
		if c := refRows[i].Amount.Cmp(refRows[j].Amount); c != 0 {
			return c < 0
		}
		return refRows[i].Key < refRows[j].Key
	})
	sort.SliceStable(assetRows, func(i, j int) bool {
		if c := assetRows[i].Amount.Cmp(assetRows[j].Amount); c != 0 {
			return c > 0
		}
		return assetRows[i].Key < assetRows[j].Key
	})

	pairs := make([]models.Pair, 0, len(refRows))
	for i := range refRows {
		if refRows[i].Amount.Sign()*assetRows[i].Amount.Sign() >= 0 {
			return nil, false
		}
		pair, err := models.NewPair(refRows[i], assetRows[i], referenceCurrency, models.MatchedByDateTime)
		if err != nil {
			return nil, false
		}
		pairs = append(pairs, pair)
	}
	return pairs, true
}

func sortPairs(pairs []models.Pair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.StartedAt != b.StartedAt {
			return a.StartedAt < b.StartedAt
		}
		if a.LocalKey != b.LocalKey {
			return a.LocalKey < b.LocalKey
		}
		return a.CryptoKey < b.CryptoKey
	})
}

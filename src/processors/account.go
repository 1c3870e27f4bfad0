package processors

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/revoledger/src/logger"
	"github.com/username/revoledger/src/models"
)

// Account is the ledger of one asset currency for one computation pass.
type Account struct {
	Currency          string
	ReferenceCurrency string
	Purchases         []*models.Purchase
	Disposals         []*models.Disposal
	Cursor            int
	TotalAcquired     decimal.Decimal
	TotalDisposed     decimal.Decimal
}

func NewAccount(currency, referenceCurrency string) *Account {
	return &Account{
		Currency:          currency,
		ReferenceCurrency: referenceCurrency,
		Purchases:         []*models.Purchase{},
		Disposals:         []*models.Disposal{},
	}
}

// RowError reports a row that could not be turned into a ledger entry.
type RowError struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// BuildAccounts merges pairs and withdrawal rows per currency in chronological order and ingests
// them into one Account per asset currency.
func BuildAccounts(pairs []models.Pair, withdrawals []models.LedgerRow, referenceCurrency string) (map[string]*Account, []RowError) {
	var rejected []RowError
	entries := make([]ledgerEntry, 0, len(pairs)+len(withdrawals))

	for i := range pairs {
		p := pairs[i]
		entries = append(entries, ledgerEntry{
			currency: p.AssetCurrency,
			key:      p.CryptoKey,
			when:     p.DateTime.UnixNano(),
			purchase: p.IsPurchase(),
			pair:     &p,
		})
	}
	for _, row := range withdrawals {
		w, err := models.NewWithdrawal(row, referenceCurrency)
		if err != nil {
			logger.Get().Warn("Skipping withdrawal row", "key", row.Key, "error", err)
			rejected = append(rejected, RowError{Key: row.Key, Error: err.Error()})
			continue
		}
		entries = append(entries, ledgerEntry{
			currency:   w.Currency,
			key:        w.Key,
			when:       w.Date.UnixNano(),
			withdrawal: w,
		})
	}
	sortEntries(entries)

	accounts := make(map[string]*Account)
	for _, e := range entries {
		acc, ok := accounts[e.currency]
		if !ok {
			acc = NewAccount(e.currency, referenceCurrency)
			accounts[e.currency] = acc
		}
		var err error
		if e.pair != nil {
			err = acc.IngestPair(*e.pair)
		} else {
			err = acc.IngestWithdrawal(e.withdrawal)
		}
		if err != nil {
			rejected = append(rejected, RowError{Key: e.key, Error: err.Error()})
		}
	}
	return accounts, rejected
}

type ledgerEntry struct {
	currency   string
	key        string
	when       int64
	purchase   bool
	pair       *models.Pair
	withdrawal *models.Disposal
}

// sortEntries orders by time; on equal time purchases come first, then by key.
func sortEntries(entries []ledgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.when != b.when {
			return a.when < b.when
		}
		if a.purchase != b.purchase {
			return a.purchase
		}
		return a.key < b.key
	})
}

// IngestPair adds a purchase or a sale. Pairs must arrive in chronological order.
func (a *Account) IngestPair(p models.Pair) error {
	if p.AssetCurrency != a.Currency {
		return fmt.Errorf("pair %s is in %s, not in account %s", p.CryptoKey, p.AssetCurrency, a.Currency)
	}
	if p.IsPurchase() {
		purchase, err := models.NewPurchase(p)
		if err != nil {
			return err
		}
		purchase.Index = len(a.Purchases)
		a.TotalAcquired = a.TotalAcquired.Add(purchase.AcquiredAmount)
		purchase.BalanceToDate = a.balance()
		a.Purchases = append(a.Purchases, purchase)
		return nil
	}

	sale, err := models.NewSale(p)
	if err != nil {
		return err
	}
	a.dispose(sale)
	return nil
}

func (a *Account) IngestWithdrawal(w *models.Disposal) error {
	if w.Currency != a.Currency {
		return fmt.Errorf("withdrawal %s is in %s, not in account %s", w.Key, w.Currency, a.Currency)
	}
	a.dispose(w)
	return nil
}

// dispose matches d against the lot queue. A failed match is recorded on d and leaves the
// queue untouched.
func (a *Account) dispose(d *models.Disposal) {
	d.Index = len(a.Disposals)
	res, err := MatchFIFO(a.Purchases, a.Cursor, d.NeedsAssetAmount())
	if err != nil {
		d.Error = err.Error()
		logger.Get().Debug("Disposal could not be matched", "currency", a.Currency, "key", d.Key, "error", err)
	} else {
		a.commit(res)
		d.ApplyAllocations(res.Allocations)
		a.TotalDisposed = a.TotalDisposed.Add(d.DisposedAmount)
	}
	d.BalanceToDate = a.balance()
	a.Disposals = append(a.Disposals, d)
}

func (a *Account) commit(res FIFOResult) {
	for _, alloc := range res.Allocations {
		a.Purchases[alloc.LotIndex].Remaining = alloc.RemainingAfter
	}
	a.Cursor = res.Cursor
}

func (a *Account) balance() decimal.Decimal {
	return a.TotalAcquired.Sub(a.TotalDisposed)
}

// Sales returns the disposals built from sale pairs.
func (a *Account) Sales() []*models.Disposal {
	return a.disposalsOf(models.KindSale)
}

func (a *Account) Withdrawals() []*models.Disposal {
	return a.disposalsOf(models.KindWithdrawal)
}

func (a *Account) disposalsOf(kind models.DisposalKind) []*models.Disposal {
	out := []*models.Disposal{}
	for _, d := range a.Disposals {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Transactions lists purchases and disposals in ledger order.
func (a *Account) Transactions() []models.TransactionLine {
	lines := make([]models.TransactionLine, 0, len(a.Purchases)+len(a.Disposals))
	for _, p := range a.Purchases {
		rate := decimal.NewNullDecimal(p.Rate)
		lines = append(lines, models.TransactionLine{
			Type:          "purchase",
			Index:         p.Index,
			Key:           p.Key,
			Currency:      p.Currency,
			StartedAt:     p.StartedAt,
			AssetAmount:   p.AcquiredAmount,
			Reference:     decimal.NewNullDecimal(p.Pair.ReferenceAmount),
			Rate:          rate,
			FeeValue:      p.FeeValue,
			BalanceAfter:  p.BalanceAfter,
			BalanceToDate: p.BalanceToDate,
			BalanceValue:  decimal.NewNullDecimal(p.BalanceAfter.Mul(p.Rate).Round(2)),
		})
	}
	for _, d := range a.Disposals {
		line := models.TransactionLine{
			Type:          d.Type(),
			Index:         d.Index,
			Key:           d.Key,
			Currency:      d.Currency,
			StartedAt:     d.StartedAt,
			AssetAmount:   d.AssetAmount,
			Reference:     d.ReferenceAmount,
			Rate:          d.Rate,
			FeeValue:      d.DisposalFeeValue,
			BalanceAfter:  d.BalanceAfter,
			BalanceToDate: d.BalanceToDate,
			Error:         d.Error,
		}
		if d.Rate.Valid {
			line.BalanceValue = decimal.NewNullDecimal(d.BalanceAfter.Mul(d.Rate.Decimal).Round(2))
		}
		lines = append(lines, line)
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].StartedAt < lines[j].StartedAt
	})
	return lines
}

// SalesReport lists every disposal. With withLots each disposal is expanded into one line per
// consumed lot; invalid disposals always get a single line.
func (a *Account) SalesReport(withLots bool) []models.SaleLine {
	lines := []models.SaleLine{}
	for _, d := range a.Disposals {
		base := models.SaleLine{
			Index:            d.Index,
			Type:             d.Type(),
			Key:              d.Key,
			Currency:         d.Currency,
			StartedAt:        d.StartedAt,
			Sold:             d.DisposedAmount,
			SoldFor:          d.ReferenceAmount,
			PurchaseFeeValue: d.PurchaseFeeAllocated,
			SaleFeeValue:     d.DisposalFeeValue,
			Cost:             d.CostBasis,
			TotalCost:        d.TotalCost(),
			Gain:             d.Gain,
			Lots:             len(d.ConsumedLots),
			PurchaseDates:    []string{},
			Error:            d.Error,
		}
		for _, day := range d.AcquiredDates() {
			base.PurchaseDates = append(base.PurchaseDates, day.Format("2006-01-02"))
		}

		if !withLots || len(d.ConsumedLots) == 0 {
			lines = append(lines, base)
			continue
		}
		for i, alloc := range d.ConsumedLots {
			line := base
			idx := i
			amount, cost, fee := alloc.Amount, alloc.ProratedReferenceAmount.Abs(), alloc.ProratedFee
			line.LotIndex = &idx
			line.LotStartedAt = a.Purchases[alloc.LotIndex].StartedAt
			line.LotAmount = &amount
			line.LotCost = &cost
			line.LotFeeValue = &fee
			lines = append(lines, line)
		}
	}
	return lines
}

// Holdings lists the lots that still have a remaining quantity.
func (a *Account) Holdings() []models.Holding {
	out := []models.Holding{}
	for _, p := range a.Purchases {
		if !p.Remaining.IsPositive() {
			continue
		}
		out = append(out, models.Holding{
			Currency:       p.Currency,
			Key:            p.Key,
			StartedAt:      p.StartedAt,
			Remaining:      p.Remaining,
			AcquiredAmount: p.AcquiredAmount,
			RemainingCost:  p.AcquiredReferenceAmount.Mul(p.Remaining).Div(p.AcquiredAmount),
			RemainingFee:   p.FeeValue.Mul(p.Remaining).Div(p.AcquiredAmount),
		})
	}
	return out
}

// SortedCurrencies returns the account currencies in alphabetical order.
func SortedCurrencies(accounts map[string]*Account) []string {
	currencies := make([]string, 0, len(accounts))
	for c := range accounts {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	return currencies
}

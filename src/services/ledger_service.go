package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/revoledger/src/database"
	"github.com/username/revoledger/src/logger"
	"github.com/username/revoledger/src/models"
	"github.com/username/revoledger/src/parsers"
	"github.com/username/revoledger/src/processors"
	"github.com/username/revoledger/src/security/validation"
)

const (
	ckSnapshot        = "ledger_snapshot"
	ckExternalRecords = "form8949_external_%d"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// Options are the computation and rendering settings of a LedgerService.
type Options struct {
	ReferenceCurrency string
	DefaultUSDRate    decimal.Decimal
	Export            processors.ExportSettings
	CacheExpiration   time.Duration
}

type ledgerServiceImpl struct {
	store       RowStore
	rates       *processors.TaxYearRates
	reportCache *cache.Cache
	opts        Options

	// serializes passes so concurrent cache misses compute once
	mu sync.Mutex

	// generation counts invalidations. A pass only publishes its snapshot when no write
	// happened since it started reading the store.
	cacheMu    sync.Mutex
	generation uint64
}

func NewLedgerService(store RowStore, rates *processors.TaxYearRates, reportCache *cache.Cache, opts Options) LedgerService {
	if opts.CacheExpiration <= 0 {
		opts.CacheExpiration = DefaultCacheExpiration
	}
	if !opts.DefaultUSDRate.IsPositive() {
		opts.DefaultUSDRate = decimal.NewFromInt(1)
	}
	return &ledgerServiceImpl{
		store:       store,
		rates:       rates,
		reportCache: reportCache,
		opts:        opts,
	}
}

func (s *ledgerServiceImpl) UploadStatement(ctx context.Context, content io.Reader, name, source string) (*models.UploadResult, error) {
	startTime := time.Now()
	logger.FromContext(ctx).Info("UploadStatement START", "name", name, "source", source)

	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("error reading upload: %w", err)
	}

	parser, err := parsers.GetParser(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	rows, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s does not contain any statement row", ErrParsingFailed, name)
	}

	sum := sha256.Sum256(data)
	file := parsers.Statistics(rows)
	file.ID = uuid.NewString()
	file.Name = validation.StripUnprintable(name)
	file.Hash = hex.EncodeToString(sum[:])
	file.Size = int64(len(data))
	file.UploadedAt = time.Now().UTC()

	newRows, sharedRows, err := s.store.InsertFile(ctx, file, rows)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateFile) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFile, name)
		}
		return nil, err
	}
	s.invalidate()

	snapshot, err := s.recompute(ctx)
	if err != nil {
		return nil, err
	}
	result := &models.UploadResult{
		File:         file,
		NewRows:      newRows,
		SharedRows:   sharedRows,
		Pairs:        len(snapshot.Pairs),
		Orphans:      len(snapshot.Orphans),
		InvalidSales: countInvalid(snapshot, models.KindSale),
	}
	logger.FromContext(ctx).Info("UploadStatement END", "fileID", file.ID, "newRows", newRows, "sharedRows", sharedRows, "duration", time.Since(startTime))
	return result, nil
}

func (s *ledgerServiceImpl) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	return s.store.ListFiles(ctx)
}

func (s *ledgerServiceImpl) DeleteFile(ctx context.Context, id string) error {
	if err := s.store.DeleteFile(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%w: file %s", ErrNotFound, id)
		}
		return err
	}
	s.invalidate()
	return nil
}

// invalidate drops the cached pass. The next read recomputes from the store.
func (s *ledgerServiceImpl) invalidate() {
	s.cacheMu.Lock()
	s.generation++
	s.reportCache.Delete(ckSnapshot)
	s.cacheMu.Unlock()
	logger.Get().Debug("Ledger snapshot invalidated")
}

func (s *ledgerServiceImpl) currentGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

// publish caches snap unless the store changed after the pass started.
func (s *ledgerServiceImpl) publish(snap *Snapshot, startGeneration uint64) bool {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.generation != startGeneration {
		return false
	}
	s.reportCache.Set(ckSnapshot, snap, s.opts.CacheExpiration)
	return true
}

// snapshot returns the cached pass or computes a new one.
func (s *ledgerServiceImpl) snapshot(ctx context.Context) (*Snapshot, error) {
	if cached, found := s.reportCache.Get(ckSnapshot); found {
		return cached.(*Snapshot), nil
	}
	return s.recompute(ctx)
}

func (s *ledgerServiceImpl) Recompute(ctx context.Context) (*RecomputeResult, error) {
	snap, err := s.recompute(ctx)
	if err != nil {
		return nil, err
	}
	return &RecomputeResult{
		Pairs:              len(snap.Pairs),
		Orphans:            len(snap.Orphans),
		StaleOverrides:     len(snap.StaleOverrides),
		Rejected:           len(snap.Rejected),
		Accounts:           len(snap.Accounts),
		InvalidSales:       countInvalid(snap, models.KindSale),
		InvalidWithdrawals: countInvalid(snap, models.KindWithdrawal),
		ComputedAt:         snap.ComputedAt,
	}, nil
}

// recompute runs a full pass: pairing, stale override cleanup, account building. Running it
// again on unchanged rows gives the same snapshot.
func (s *ledgerServiceImpl) recompute(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startTime := time.Now()
	startGeneration := s.currentGeneration()
	exchanges, err := s.store.ListRows(ctx, models.RowTypeExchange)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.store.ListRows(ctx, models.RowTypeWithdrawal)
	if err != nil {
		return nil, err
	}
	overrides, err := s.store.ListManualPairOverrides(ctx)
	if err != nil {
		return nil, err
	}

	ref := s.opts.ReferenceCurrency
	paired := processors.ComputePairs(exchanges, overrides, ref)
	for _, id := range paired.StaleOverrides {
		if err := s.store.InvalidateOverride(ctx, id); err != nil {
			return nil, err
		}
	}
	accounts, rejected := processors.BuildAccounts(paired.Pairs, withdrawals, ref)

	byKey := make(map[string]models.LedgerRow, len(exchanges))
	for _, r := range exchanges {
		byKey[r.Key] = r
	}
	orphans := make([]models.LedgerRow, 0, len(paired.Orphans))
	for _, key := range paired.Orphans {
		orphans = append(orphans, byKey[key])
	}
	sort.SliceStable(orphans, func(i, j int) bool {
		if orphans[i].StartedAt != orphans[j].StartedAt {
			return orphans[i].StartedAt < orphans[j].StartedAt
		}
		return orphans[i].Key < orphans[j].Key
	})

	snap := &Snapshot{
		Pairs:          paired.Pairs,
		Orphans:        orphans,
		StaleOverrides: paired.StaleOverrides,
		Rejected:       rejected,
		Accounts:       accounts,
		ComputedAt:     time.Now().UTC(),
	}
	if !s.publish(snap, startGeneration) {
		logger.FromContext(ctx).Info("Store changed during recompute, snapshot not cached")
	}
	logger.FromContext(ctx).Info("Recompute finished", "pairs", len(snap.Pairs), "orphans", len(snap.Orphans),
		"staleOverrides", len(snap.StaleOverrides), "rejected", len(rejected), "accounts", len(accounts),
		"duration", time.Since(startTime))
	return snap, nil
}

func countInvalid(snap *Snapshot, kind models.DisposalKind) int {
	n := 0
	for _, acc := range snap.Accounts {
		for _, d := range acc.Disposals {
			if d.Kind == kind && !d.IsValid() {
				n++
			}
		}
	}
	return n
}

func (s *ledgerServiceImpl) Pairs(ctx context.Context) ([]models.Pair, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Pairs, nil
}

func (s *ledgerServiceImpl) Orphans(ctx context.Context) ([]models.LedgerRow, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Orphans, nil
}

// SetManualPair pins two rows after checking they form a reference/asset pair.
func (s *ledgerServiceImpl) SetManualPair(ctx context.Context, key1, key2 string) (models.ManualPairOverride, error) {
	rows, err := s.store.ListRows(ctx, models.RowTypeExchange)
	if err != nil {
		return models.ManualPairOverride{}, err
	}
	var a, b *models.LedgerRow
	for i := range rows {
		switch rows[i].Key {
		case key1:
			a = &rows[i]
		case key2:
			b = &rows[i]
		}
	}
	if a == nil || b == nil {
		return models.ManualPairOverride{}, fmt.Errorf("%w: exchange rows %s / %s", ErrNotFound, key1, key2)
	}
	if _, err := models.NewPair(*a, *b, s.opts.ReferenceCurrency, models.MatchedByManual); err != nil {
		return models.ManualPairOverride{}, fmt.Errorf("%w: %v", ErrInvalidManualPair, err)
	}

	o, err := s.store.SetManualPair(ctx, key1, key2)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrKeyAlreadyPinned), errors.Is(err, validation.ErrValidationFailed):
			return models.ManualPairOverride{}, fmt.Errorf("%w: %v", ErrInvalidManualPair, err)
		case errors.Is(err, database.ErrNotFound):
			return models.ManualPairOverride{}, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return models.ManualPairOverride{}, err
	}
	s.invalidate()
	logger.FromContext(ctx).Info("Manual pair created", "id", o.ID, "key1", key1, "key2", key2)
	return o, nil
}

func (s *ledgerServiceImpl) DeleteManualPair(ctx context.Context, key string) error {
	if err := s.store.DeleteManualPairByKey(ctx, key); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return err
	}
	s.invalidate()
	return nil
}

func (s *ledgerServiceImpl) AccountSummaries(ctx context.Context) ([]models.YearSummary, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return processors.SummaryLines(snap.Accounts), nil
}

func (s *ledgerServiceImpl) account(ctx context.Context, currency string) (*processors.Account, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	acc, ok := snap.Accounts[strings.ToUpper(currency)]
	if !ok {
		return nil, fmt.Errorf("%w: no account for %s", ErrNotFound, currency)
	}
	return acc, nil
}

func (s *ledgerServiceImpl) Transactions(ctx context.Context, currency string) ([]models.TransactionLine, error) {
	acc, err := s.account(ctx, currency)
	if err != nil {
		return nil, err
	}
	return acc.Transactions(), nil
}

func (s *ledgerServiceImpl) Sales(ctx context.Context, currency string, withLots bool) ([]models.SaleLine, error) {
	acc, err := s.account(ctx, currency)
	if err != nil {
		return nil, err
	}
	return acc.SalesReport(withLots), nil
}

func (s *ledgerServiceImpl) Holdings(ctx context.Context, currency string) ([]models.Holding, error) {
	acc, err := s.account(ctx, currency)
	if err != nil {
		return nil, err
	}
	return acc.Holdings(), nil
}

// Withdrawals lists every withdrawal of every account in chronological order.
func (s *ledgerServiceImpl) Withdrawals(ctx context.Context) ([]models.Disposal, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Disposal{}
	for _, currency := range processors.SortedCurrencies(snap.Accounts) {
		for _, w := range snap.Accounts[currency].Withdrawals() {
			out = append(out, *w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// TaxYears lists the years with computed sales or a known USD rate for the reference currency.
func (s *ledgerServiceImpl) TaxYears(ctx context.Context) ([]int, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	for _, y := range processors.TaxYears(snap.Accounts) {
		seen[y] = true
	}
	for _, y := range s.rates.Years(s.opts.ReferenceCurrency) {
		seen[y] = true
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

// Gains classifies the sales of year. A valid usdRate replaces the rate table entry.
func (s *ledgerServiceImpl) Gains(ctx context.Context, year int, usdRate decimal.NullDecimal) (models.Classification, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return models.Classification{}, err
	}
	rate := s.rates.Rate(s.opts.ReferenceCurrency, year, s.opts.DefaultUSDRate)
	if usdRate.Valid && usdRate.Decimal.IsPositive() {
		rate = usdRate.Decimal
	}
	return processors.ClassifyYear(snap.Accounts, year, s.opts.ReferenceCurrency, rate), nil
}

// Form8949 builds the form of year from the computed sales plus the external records of that year.
func (s *ledgerServiceImpl) Form8949(ctx context.Context, year int) (*processors.Form8949, error) {
	c, err := s.Gains(ctx, year, decimal.NullDecimal{})
	if err != nil {
		return nil, err
	}
	rows, err := processors.FormatTaxRows(c, s.opts.Export)
	if err != nil {
		return nil, err
	}
	form := processors.NewForm8949(year)
	if err := form.AddRows(rows); err != nil {
		return nil, err
	}
	if err := form.AddRows(s.externalRecords(year)); err != nil {
		return nil, err
	}
	return form, nil
}

func (s *ledgerServiceImpl) externalRecords(year int) []models.TaxRow {
	if cached, found := s.reportCache.Get(fmt.Sprintf(ckExternalRecords, year)); found {
		return cached.([]models.TaxRow)
	}
	return nil
}

// AddExternalRecords parses a Form 8949 CSV and keeps its rows for year. A file holding a row of
// another year is rejected as a whole.
func (s *ledgerServiceImpl) AddExternalRecords(ctx context.Context, year int, content io.Reader) (*ExternalRecordsResult, error) {
	rows, err := parsers.NewForm8949Parser().Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	perYear := parsers.CountPerYear(rows)
	if len(rows) > 0 && perYear[year] != len(rows) {
		delete(perYear, year)
		others := make([]int, 0, len(perYear))
		for y := range perYear {
			others = append(others, y)
		}
		sort.Ints(others)
		return nil, fmt.Errorf("%w: file holds rows of %v, not only %d", ErrParsingFailed, others, year)
	}
	if err := processors.NewForm8949(year).AddRows(rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.externalRecords(year)
	merged := make([]models.TaxRow, 0, len(existing)+len(rows))
	merged = append(merged, existing...)
	merged = append(merged, rows...)
	s.reportCache.Set(fmt.Sprintf(ckExternalRecords, year), merged, cache.NoExpiration)

	logger.FromContext(ctx).Info("External Form 8949 records added", "year", year, "added", perYear[year], "total", len(merged))
	return &ExternalRecordsResult{Year: year, Added: len(rows), Total: len(merged)}, nil
}

func (s *ledgerServiceImpl) ClearExternalRecords(year int) {
	s.reportCache.Delete(fmt.Sprintf(ckExternalRecords, year))
}

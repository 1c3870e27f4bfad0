package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/revoledger/src/models"
	"github.com/username/revoledger/src/processors"
)

var (
	ErrParsingFailed     = errors.New("failed to parse the uploaded file")
	ErrDuplicateFile     = errors.New("file is already loaded")
	ErrNotFound          = errors.New("not found")
	ErrInvalidManualPair = errors.New("invalid manual pair")
)

// RowStore persists statement files, their rows and the manual pair overrides.
type RowStore interface {
	ListRows(ctx context.Context, types ...models.RowType) ([]models.LedgerRow, error)
	ListFiles(ctx context.Context) ([]models.FileRecord, error)
	InsertFile(ctx context.Context, file models.FileRecord, rows []models.LedgerRow) (int, int, error)
	DeleteFile(ctx context.Context, id string) error
	ListManualPairOverrides(ctx context.Context) ([]models.ManualPairOverride, error)
	SetManualPair(ctx context.Context, key1, key2 string) (models.ManualPairOverride, error)
	DeleteManualPairByKey(ctx context.Context, key string) error
	InvalidateOverride(ctx context.Context, id string) error
}

// Snapshot is the result of one computation pass over the stored rows. It is never modified
// once published.
type Snapshot struct {
	Pairs          []models.Pair                  `json:"pairs"`
	Orphans        []models.LedgerRow             `json:"orphans"`
	StaleOverrides []string                       `json:"staleOverrides"`
	Rejected       []processors.RowError          `json:"rejected"`
	Accounts       map[string]*processors.Account `json:"-"`
	ComputedAt     time.Time                      `json:"computedAt"`
}

// RecomputeResult summarizes a computation pass.
type RecomputeResult struct {
	Pairs              int       `json:"pairs"`
	Orphans            int       `json:"orphans"`
	StaleOverrides     int       `json:"staleOverrides"`
	Rejected           int       `json:"rejected"`
	Accounts           int       `json:"accounts"`
	InvalidSales       int       `json:"invalidSales"`
	InvalidWithdrawals int       `json:"invalidWithdrawals"`
	ComputedAt         time.Time `json:"computedAt"`
}

// ExternalRecordsResult reports an external Form 8949 upload.
type ExternalRecordsResult struct {
	Year  int `json:"year"`
	Added int `json:"added"`
	Total int `json:"total"`
}

// LedgerService is the application facade over the row store and the ledger computation.
type LedgerService interface {
	UploadStatement(ctx context.Context, content io.Reader, name, source string) (*models.UploadResult, error)
	ListFiles(ctx context.Context) ([]models.FileRecord, error)
	DeleteFile(ctx context.Context, id string) error

	Recompute(ctx context.Context) (*RecomputeResult, error)
	Pairs(ctx context.Context) ([]models.Pair, error)
	Orphans(ctx context.Context) ([]models.LedgerRow, error)
	SetManualPair(ctx context.Context, key1, key2 string) (models.ManualPairOverride, error)
	DeleteManualPair(ctx context.Context, key string) error

	AccountSummaries(ctx context.Context) ([]models.YearSummary, error)
	Transactions(ctx context.Context, currency string) ([]models.TransactionLine, error)
	Sales(ctx context.Context, currency string, withLots bool) ([]models.SaleLine, error)
	Holdings(ctx context.Context, currency string) ([]models.Holding, error)
	Withdrawals(ctx context.Context) ([]models.Disposal, error)

	TaxYears(ctx context.Context) ([]int, error)
	Gains(ctx context.Context, year int, usdRate decimal.NullDecimal) (models.Classification, error)
	Form8949(ctx context.Context, year int) (*processors.Form8949, error)
	AddExternalRecords(ctx context.Context, year int, content io.Reader) (*ExternalRecordsResult, error)
	ClearExternalRecords(year int)
}

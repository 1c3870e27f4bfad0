package revolut

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/revoledger/src/logger"
	"github.com/username/revoledger/src/models"
)

var (
	ErrMissingColumn   = errors.New("statement is missing a required column")
	ErrUnrecognizedRow = errors.New("unrecognized statement row")
)

const (
	colType         = "type"
	colProduct      = "product"
	colStartedDate  = "started date"
	colCompleted    = "completed date"
	colDescription  = "description"
	colAmount       = "amount"
	colFee          = "fee"
	colCurrency     = "currency"
	colState        = "state"
	colBalance      = "balance"
	colBaseCurrency = "base currency"
	colFiatAmount   = "fiat amount"
)

var requiredColumns = []string{
	colType, colProduct, colStartedDate, colCompleted, colDescription,
	colAmount, colFee, colCurrency, colState, colBalance,
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// RevolutParser reads exported account statements.
type RevolutParser struct{}

func NewParser() *RevolutParser {
	return &RevolutParser{}
}

// Parse reads a statement CSV. Blank lines are skipped; any other row that cannot be read makes
// the whole file invalid.
func (p *RevolutParser) Parse(file io.Reader) ([]models.LedgerRow, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	rows := []models.LedgerRow{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}

		row, err := parseRow(record, columns)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}

	logger.Get().Debug("Statement parsed", "rows", len(rows))
	return rows, nil
}

func mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := columns[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return columns, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRow(record []string, columns map[string]int) (models.LedgerRow, error) {
	get := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := models.LedgerRow{
		Type:         models.RowType(strings.ToUpper(get(colType))),
		Product:      get(colProduct),
		StartedAt:    get(colStartedDate),
		CompletedAt:  get(colCompleted),
		Description:  get(colDescription),
		Currency:     strings.ToUpper(get(colCurrency)),
		State:        get(colState),
		BaseCurrency: strings.ToUpper(get(colBaseCurrency)),
	}
	if row.Type == "" || row.Currency == "" || row.StartedAt == "" {
		return row, fmt.Errorf("%w: type, currency and started date are mandatory", ErrUnrecognizedRow)
	}
	if _, err := models.ParseTimestamp(row.StartedAt); err != nil {
		return row, fmt.Errorf("%w: %v", ErrUnrecognizedRow, err)
	}

	var err error
	if row.Amount, err = decimal.NewFromString(get(colAmount)); err != nil {
		return row, fmt.Errorf("%w: invalid amount %q", ErrUnrecognizedRow, get(colAmount))
	}
	if row.Fee, err = optionalDecimal(get(colFee)); err != nil {
		return row, fmt.Errorf("%w: invalid fee %q", ErrUnrecognizedRow, get(colFee))
	}
	balance := get(colBalance)
	if row.Balance, err = optionalDecimal(balance); err != nil {
		return row, fmt.Errorf("%w: invalid balance %q", ErrUnrecognizedRow, balance)
	}
	if fiat := get(colFiatAmount); fiat != "" {
		v, err := decimal.NewFromString(fiat)
		if err != nil {
			return row, fmt.Errorf("%w: invalid fiat amount %q", ErrUnrecognizedRow, fiat)
		}
		row.FiatAmount = decimal.NewNullDecimal(v)
	}

	row.Key = RowKey(string(row.Type), row.Currency, row.StartedAt, row.CompletedAt, balance)
	return row, nil
}

func optionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// RowKey identifies a statement row across overlapping statement files. The amount is left out
// because the exporter does not always render it the same way.
func RowKey(rowType, currency, startedAt, completedAt, balance string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{rowType, currency, startedAt, completedAt, balance}, "|")))
	return nonDigits.ReplaceAllString(startedAt, "_") + "_" + hex.EncodeToString(sum[:])
}

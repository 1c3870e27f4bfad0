package parsers

import (
	"io"

	"github.com/username/revoledger/src/models"
	"github.com/username/revoledger/src/parsers/external"
	"github.com/username/revoledger/src/parsers/revolut"
)

var (
	ErrMissingColumn   = revolut.ErrMissingColumn
	ErrUnrecognizedRow = revolut.ErrUnrecognizedRow
)

// Parser turns a statement export into ledger rows.
type Parser interface {
	Parse(file io.Reader) ([]models.LedgerRow, error)
}

// Form8949Parser reads Form 8949 lines maintained outside of the ledger.
type Form8949Parser interface {
	Parse(file io.Reader) ([]models.TaxRow, error)
}

func NewForm8949Parser() Form8949Parser {
	return external.NewParser()
}

// CountPerYear groups parsed Form 8949 rows by tax year.
func CountPerYear(rows []models.TaxRow) map[int]int {
	return external.CountPerYear(rows)
}

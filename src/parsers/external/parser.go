package external

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/username/revoledger/src/models"
	"github.com/username/revoledger/src/security/validation"
	"github.com/username/revoledger/src/utils"
)

var (
	ErrMissingColumn   = errors.New("form 8949 file is missing a required column")
	ErrUnrecognizedRow = errors.New("unrecognized form 8949 row")
)

var trailingYear = regexp.MustCompile(`(\d{4})$`)

// Form8949Parser reads Form 8949 lines prepared outside of this tool. The file has the columns
// checkbox, a..h; the tax year of a line comes from the last four digits of its column c.
type Form8949Parser struct{}

func NewParser() *Form8949Parser {
	return &Form8949Parser{}
}

func (p *Form8949Parser) Parse(file io.Reader) ([]models.TaxRow, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := make(map[string]int)
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, c := range []string{"checkbox", "c"} {
		if _, ok := columns[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	rows := []models.TaxRow{}
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
		get := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(validation.StripUnprintable(record[i]))
		}
		if strings.Join(record, "") == "" {
			continue
		}

		row := models.TaxRow{
			Checkbox: strings.ToUpper(get("checkbox")),
			A:        get("a"),
			B:        get("b"),
			C:        get("c"),
			F:        get("f"),
			External: true,
		}
		m := trailingYear.FindStringSubmatch(row.C)
		if m == nil {
			return nil, fmt.Errorf("line %d: %w: column c %q does not end with a year", line, ErrUnrecognizedRow, row.C)
		}
		row.Year, _ = strconv.Atoi(m[1])
		row.SoldDate = soldDate(row.C)

		for _, col := range []struct {
			name string
			dst  *string
		}{{"d", &row.D}, {"e", &row.E}, {"g", &row.G}, {"h", &row.H}} {
			raw := get(col.name)
			if raw == "" {
				continue
			}
			v, err := utils.ParseFormNumber(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w: column %s %q is not a number", line, ErrUnrecognizedRow, col.name, raw)
			}
			*col.dst = v.StringFixed(2)
		}

		if err := validation.Struct(row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// soldDate reads column c with the first date format that fits. Free text dates sort first.
func soldDate(c string) time.Time {
	for _, format := range []string{utils.DateFormatMMDDYYYY, utils.DateFormatDDMMYYYY, utils.DateFormatYYYYMMDD} {
		if t, err := utils.ParseDate(c, format); err == nil {
			return t
		}
	}
	return time.Time{}
}

// CountPerYear groups parsed rows by tax year.
func CountPerYear(rows []models.TaxRow) map[int]int {
	counts := make(map[int]int)
	for _, r := range rows {
		counts[r.Year]++
	}
	return counts
}

package processors

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/revoledger/src/models"
	"github.com/username/revoledger/src/security/validation"
	"github.com/username/revoledger/src/utils"
)

var ErrUnknownCheckbox = errors.New("unknown Form 8949 checkbox")

const (
	PartI  = "Part I"
	PartII = "Part II"

	// RowsPerPage is the number of lines on one Form 8949 page.
	RowsPerPage = 14
)

var checkboxParts = map[string]string{
	"A": PartI, "B": PartI, "C": PartI,
	"D": PartII, "E": PartII, "F": PartII,
}

var checkboxOrder = []string{"A", "B", "C", "D", "E", "F"}

// ExportSettings are the presentation choices for computed rows.
type ExportSettings struct {
	DateFormat        string
	MultiDates        utils.MultiDateOptions
	Description       string
	ShortTermCheckbox string
	LongTermCheckbox  string
}

// PartOf returns the form part of a checkbox.
func PartOf(checkbox string) (string, error) {
	part, ok := checkboxParts[checkbox]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCheckbox, checkbox)
	}
	return part, nil
}

// FormatTaxRows maps a classification into Form 8949 rows, amounts converted to USD.
func FormatTaxRows(c models.Classification, s ExportSettings) ([]models.TaxRow, error) {
	shortPart, err := PartOf(s.ShortTermCheckbox)
	if err != nil {
		return nil, err
	}
	longPart, err := PartOf(s.LongTermCheckbox)
	if err != nil {
		return nil, err
	}

	rate := c.USDRate
	if !rate.IsPositive() {
		rate = decimal.NewFromInt(1)
	}

	rows := make([]models.TaxRow, 0, len(c.ShortTerm)+len(c.LongTerm))
	for _, sale := range c.ShortTerm {
		rows = append(rows, formatTaxRow(sale, shortPart, s.ShortTermCheckbox, rate, c.Year, s))
	}
	for _, sale := range c.LongTerm {
		rows = append(rows, formatTaxRow(sale, longPart, s.LongTermCheckbox, rate, c.Year, s))
	}
	return rows, nil
}

func formatTaxRow(sale models.ClassifiedSale, part, checkbox string, rate decimal.Decimal, year int, s ExportSettings) models.TaxRow {
	description := strings.ReplaceAll(s.Description, "#CURRENCY#", sale.Currency)
	description = strings.ReplaceAll(description, "#AMOUNT#", utils.CleanDecimalString(sale.Amount))
	return models.TaxRow{
		Part:     part,
		Checkbox: checkbox,
		A:        description,
		B:        utils.FormatMultiDates(sale.AcquiredDates, s.DateFormat, s.MultiDates),
		C:        utils.FormatDate(sale.SoldDate, s.DateFormat),
		D:        sale.Proceeds.Div(rate).StringFixed(2),
		E:        sale.TotalCost.Div(rate).StringFixed(2),
		H:        sale.Gain.Div(rate).StringFixed(2),
		Year:     year,
		SoldDate: sale.SoldDate,
	}
}

// Form8949 collects the rows of one tax year grouped by checkbox.
type Form8949 struct {
	Year   int
	groups map[string][]models.TaxRow
}

func NewForm8949(year int) *Form8949 {
	return &Form8949{Year: year, groups: make(map[string][]models.TaxRow)}
}

// AddRows adds a batch of rows. A row with an unknown checkbox rejects the whole batch.
func (f *Form8949) AddRows(rows []models.TaxRow) error {
	for i, r := range rows {
		if _, err := PartOf(r.Checkbox); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	for _, r := range rows {
		r.Part = checkboxParts[r.Checkbox]
		f.groups[r.Checkbox] = append(f.groups[r.Checkbox], r)
	}
	return nil
}

// Checkboxes lists the non empty groups in form order.
func (f *Form8949) Checkboxes() []string {
	var out []string
	for _, cb := range checkboxOrder {
		if len(f.groups[cb]) > 0 {
			out = append(out, cb)
		}
	}
	return out
}

// Rows returns the rows of a checkbox sorted by disposal date.
func (f *Form8949) Rows(checkbox string) []models.TaxRow {
	rows := make([]models.TaxRow, len(f.groups[checkbox]))
	copy(rows, f.groups[checkbox])
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].SoldDate.Equal(rows[j].SoldDate) {
			return rows[i].SoldDate.Before(rows[j].SoldDate)
		}
		return rows[i].C < rows[j].C
	})
	return rows
}

// AllRows returns every row, grouped by checkbox in form order.
func (f *Form8949) AllRows() []models.TaxRow {
	out := []models.TaxRow{}
	for _, cb := range f.Checkboxes() {
		out = append(out, f.Rows(cb)...)
	}
	return out
}

// Totals sums the amount columns of a checkbox group.
func (f *Form8949) Totals(checkbox string) (models.Form8949Totals, error) {
	return sumRows(f.groups[checkbox])
}

func sumRows(rows []models.TaxRow) (models.Form8949Totals, error) {
	var t models.Form8949Totals
	for i, r := range rows {
		values := make([]decimal.Decimal, 4)
		for j, raw := range []string{r.D, r.E, r.G, r.H} {
			v, err := utils.ParseFormNumber(raw)
			if err != nil {
				return t, fmt.Errorf("row %d: invalid amount %q: %w", i+1, raw, err)
			}
			values[j] = v
		}
		t.D = t.D.Add(values[0])
		t.E = t.E.Add(values[1])
		t.G = t.G.Add(values[2])
		t.H = t.H.Add(values[3])
	}
	return t, nil
}

// Pages splits every checkbox group into pages of RowsPerPage rows. Amounts are rendered with
// parenthesis for negatives and totals are attached to the last page of each group.
func (f *Form8949) Pages() ([]models.Form8949Page, error) {
	pages := []models.Form8949Page{}
	for _, cb := range f.Checkboxes() {
		rows := f.Rows(cb)
		totals, err := sumRows(rows)
		if err != nil {
			return nil, fmt.Errorf("checkbox %s: %w", cb, err)
		}
		for start, number := 0, 1; start < len(rows); start, number = start+RowsPerPage, number+1 {
			end := start + RowsPerPage
			if end > len(rows) {
				end = len(rows)
			}
			page := models.Form8949Page{
				Part:     checkboxParts[cb],
				Checkbox: cb,
				Number:   number,
				Rows:     make([]models.TaxRow, 0, end-start),
			}
			for _, r := range rows[start:end] {
				page.Rows = append(page.Rows, withParenthesis(r))
			}
			if end == len(rows) {
				t := totals
				page.Totals = &t
			}
			pages = append(pages, page)
		}
	}
	return pages, nil
}

func withParenthesis(r models.TaxRow) models.TaxRow {
	for _, col := range []*string{&r.D, &r.E, &r.G, &r.H} {
		if *col == "" {
			continue
		}
		if v, err := utils.ParseFormNumber(*col); err == nil {
			*col = utils.FormatWithParenthesis(v, 2)
		}
	}
	return r
}

var csvHeader = []string{"part", "checkbox", "a", "b", "c", "d", "e", "f", "g", "h"}

// WriteCSV exports every row. Text columns are protected against spreadsheet formula injection.
func (f *Form8949) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range f.AllRows() {
		record := []string{
			r.Part,
			r.Checkbox,
			validation.SanitizeForFormulaInjection(r.A),
			validation.SanitizeForFormulaInjection(r.B),
			validation.SanitizeForFormulaInjection(r.C),
			r.D, r.E,
			validation.SanitizeForFormulaInjection(r.F),
			r.G, r.H,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

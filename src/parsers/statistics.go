package parsers

import "github.com/username/revoledger/src/models"

// Statistics fills the row derived fields of a file record: row count, exchange count, start
// date range and rows per currency.
func Statistics(rows []models.LedgerRow) models.FileRecord {
	stats := models.FileRecord{
		RowCount:   len(rows),
		Currencies: make(map[string]int),
	}
	for _, r := range rows {
		if stats.FromStartDate == "" || r.StartedAt < stats.FromStartDate {
			stats.FromStartDate = r.StartedAt
		}
		if r.StartedAt > stats.ToStartDate {
			stats.ToStartDate = r.StartedAt
		}
		stats.Currencies[r.Currency]++
		if r.Type == models.RowTypeExchange {
			stats.Exchanges++
		}
	}
	return stats
}

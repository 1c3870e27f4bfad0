package models

import "time"

// FileRecord describes one uploaded statement.
type FileRecord struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Hash          string         `json:"hash"`
	Size          int64          `json:"size"`
	RowCount      int            `json:"rowCount"`
	Exchanges     int            `json:"exchanges"`
	FromStartDate string         `json:"fromStartDate"`
	ToStartDate   string         `json:"toStartDate"`
	Currencies    map[string]int `json:"currencies"`
	UploadedAt    time.Time      `json:"uploadedAt"`
}

// UploadResult is returned after a statement was stored.
type UploadResult struct {
	File         FileRecord `json:"file"`
	NewRows      int        `json:"newRows"`
	SharedRows   int        `json:"sharedRows"`
	Pairs        int        `json:"pairs"`
	Orphans      int        `json:"orphans"`
	InvalidSales int        `json:"invalidSales"`
}

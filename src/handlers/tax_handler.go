package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/revoledger/src/logger"
	"github.com/username/revoledger/src/models"
	"github.com/username/revoledger/src/services"
	"github.com/username/revoledger/src/utils"
)

type TaxHandler struct {
	ledgerService      services.LedgerService
	maxUploadSizeBytes int64
}

func NewTaxHandler(service services.LedgerService, maxUploadSizeBytes int64) *TaxHandler {
	return &TaxHandler{
		ledgerService:      service,
		maxUploadSizeBytes: maxUploadSizeBytes,
	}
}

// Form8949Response is the JSON rendering of a Form 8949.
type Form8949Response struct {
	Year   int                              `json:"year"`
	Rows   map[string][]models.TaxRow       `json:"rows"`
	Totals map[string]models.Form8949Totals `json:"totals"`
	Pages  []models.Form8949Page            `json:"pages"`
}

func yearFromPath(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil || year < 1900 || year > 9999 {
		utils.SendJSONError(w, fmt.Sprintf("Invalid year %q", r.PathValue("year")), http.StatusBadRequest)
		return 0, false
	}
	return year, true
}

func (h *TaxHandler) HandleGetTaxYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.ledgerService.TaxYears(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, years, http.StatusOK)
}

// HandleGetGains classifies the sales of a year. ?rate= replaces the USD rate of the year.
func (h *TaxHandler) HandleGetGains(w http.ResponseWriter, r *http.Request) {
	year, ok := yearFromPath(w, r)
	if !ok {
		return
	}

	var usdRate decimal.NullDecimal
	if raw := r.URL.Query().Get("rate"); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil || !rate.IsPositive() {
			utils.SendJSONError(w, fmt.Sprintf("Invalid rate %q", raw), http.StatusBadRequest)
			return
		}
		usdRate = decimal.NewNullDecimal(rate)
	}

	c, err := h.ledgerService.Gains(r.Context(), year, usdRate)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSONWithETag(w, r, c)
}

// HandleGetForm8949 renders the form of a year as JSON, or as CSV with ?format=csv.
func (h *TaxHandler) HandleGetForm8949(w http.ResponseWriter, r *http.Request) {
	year, ok := yearFromPath(w, r)
	if !ok {
		return
	}
	form, err := h.ledgerService.Form8949(r.Context(), year)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"form8949_%d.csv\"", year))
		if err := form.WriteCSV(w); err != nil {
			logger.FromContext(r.Context()).Error("Error writing Form 8949 CSV", "year", year, "error", err)
		}
		return
	}

	resp := Form8949Response{
		Year:   year,
		Rows:   make(map[string][]models.TaxRow),
		Totals: make(map[string]models.Form8949Totals),
	}
	for _, checkbox := range form.Checkboxes() {
		resp.Rows[checkbox] = form.Rows(checkbox)
		totals, err := form.Totals(checkbox)
		if err != nil {
			sendServiceError(w, r, err)
			return
		}
		resp.Totals[checkbox] = totals
	}
	pages, err := form.Pages()
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	resp.Pages = pages
	utils.SendJSONWithETag(w, r, resp)
}

func (h *TaxHandler) HandleUploadExternalRecords(w http.ResponseWriter, r *http.Request) {
	year, ok := yearFromPath(w, r)
	if !ok {
		return
	}
	file, fileHeader, ok := readUploadedFile(w, r, h.maxUploadSizeBytes)
	if !ok {
		return
	}
	defer file.Close()

	logger.FromContext(r.Context()).Info("Processing external Form 8949 upload", "filename", fileHeader.Filename, "year", year)
	result, err := h.ledgerService.AddExternalRecords(r.Context(), year, file)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, result, http.StatusCreated)
}

func (h *TaxHandler) HandleDeleteExternalRecords(w http.ResponseWriter, r *http.Request) {
	year, ok := yearFromPath(w, r)
	if !ok {
		return
	}
	h.ledgerService.ClearExternalRecords(year)
	w.WriteHeader(http.StatusNoContent)
}

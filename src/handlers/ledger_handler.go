package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/username/revoledger/src/logger"
	"github.com/username/revoledger/src/security/validation"
	"github.com/username/revoledger/src/services"
	"github.com/username/revoledger/src/utils"
)

type LedgerHandler struct {
	ledgerService services.LedgerService
}

func NewLedgerHandler(service services.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: service}
}

type manualPairRequest struct {
	Key1 string `json:"key1" validate:"required"`
	Key2 string `json:"key2" validate:"required,nefield=Key1"`
}

func (h *LedgerHandler) HandleGetPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.ledgerService.Pairs(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSONWithETag(w, r, pairs)
}

func (h *LedgerHandler) HandleGetOrphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := h.ledgerService.Orphans(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSONWithETag(w, r, orphans)
}

func (h *LedgerHandler) HandleSetManualPair(w http.ResponseWriter, r *http.Request) {
	var req manualPairRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	override, err := h.ledgerService.SetManualPair(r.Context(), req.Key1, req.Key2)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, override, http.StatusCreated)
}

func (h *LedgerHandler) HandleDeleteManualPair(w http.ResponseWriter, r *http.Request) {
	if err := h.ledgerService.DeleteManualPair(r.Context(), r.PathValue("key")); err != nil {
		sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledgerService.Recompute(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("Recompute requested", "pairs", result.Pairs, "orphans", result.Orphans)
	utils.SendJSON(w, result, http.StatusOK)
}

func (h *LedgerHandler) HandleGetAccounts(w http.ResponseWriter, r *http.Request) {
	lines, err := h.ledgerService.AccountSummaries(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSONWithETag(w, r, lines)
}

func (h *LedgerHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	lines, err := h.ledgerService.Transactions(r.Context(), r.PathValue("currency"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSONWithETag(w, r, lines)
}

// HandleGetSales lists the disposals of an account. ?lots=true adds one line per consumed lot.
func (h *LedgerHandler) HandleGetSales(w http.ResponseWriter, r *http.Request) {
	withLots, _ := strconv.ParseBool(r.URL.Query().Get("lots"))
	lines, err := h.ledgerService.Sales(r.Context(), r.PathValue("currency"), withLots)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSONWithETag(w, r, lines)
}

func (h *LedgerHandler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.ledgerService.Holdings(r.Context(), r.PathValue("currency"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSONWithETag(w, r, holdings)
}

func (h *LedgerHandler) HandleGetWithdrawals(w http.ResponseWriter, r *http.Request) {
	withdrawals, err := h.ledgerService.Withdrawals(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSONWithETag(w, r, withdrawals)
}

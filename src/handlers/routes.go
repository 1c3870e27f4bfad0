package handlers

import (
	"net/http"

	"github.com/username/revoledger/src/security"
	"github.com/username/revoledger/src/services"
	"github.com/username/revoledger/src/utils"
)

// RouterConfig holds what the API routes need. AuthService may be nil when auth is disabled.
type RouterConfig struct {
	LedgerService      services.LedgerService
	AuthService        *security.AuthService
	MaxUploadSizeBytes int64
}

// NewAPIRouter registers every /api/ route on a new mux.
func NewAPIRouter(cfg RouterConfig) *http.ServeMux {
	uploadHandler := NewUploadHandler(cfg.LedgerService, cfg.MaxUploadSizeBytes)
	ledgerHandler := NewLedgerHandler(cfg.LedgerService)
	taxHandler := NewTaxHandler(cfg.LedgerService, cfg.MaxUploadSizeBytes)

	auth := AuthMiddleware(cfg.AuthService)
	protected := func(handler http.HandlerFunc) http.Handler {
		return auth(handler)
	}

	apiRouter := http.NewServeMux()
	apiRouter.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})
	if cfg.AuthService != nil {
		apiRouter.HandleFunc("POST /api/auth/token", NewAuthHandler(cfg.AuthService).HandleIssueToken)
	}

	apiRouter.Handle("POST /api/files", protected(uploadHandler.HandleUpload))
	apiRouter.Handle("GET /api/files", protected(uploadHandler.HandleListFiles))
	apiRouter.Handle("DELETE /api/files/{id}", protected(uploadHandler.HandleDeleteFile))

	apiRouter.Handle("GET /api/pairs", protected(ledgerHandler.HandleGetPairs))
	apiRouter.Handle("GET /api/orphans", protected(ledgerHandler.HandleGetOrphans))
	apiRouter.Handle("POST /api/manual-pairs", protected(ledgerHandler.HandleSetManualPair))
	apiRouter.Handle("DELETE /api/manual-pairs/{key}", protected(ledgerHandler.HandleDeleteManualPair))
	apiRouter.Handle("POST /api/recompute", protected(ledgerHandler.HandleRecompute))
	apiRouter.Handle("GET /api/accounts", protected(ledgerHandler.HandleGetAccounts))
	apiRouter.Handle("GET /api/accounts/{currency}/transactions", protected(ledgerHandler.HandleGetTransactions))
	apiRouter.Handle("GET /api/accounts/{currency}/sales", protected(ledgerHandler.HandleGetSales))
	apiRouter.Handle("GET /api/accounts/{currency}/holdings", protected(ledgerHandler.HandleGetHoldings))
	apiRouter.Handle("GET /api/withdrawals", protected(ledgerHandler.HandleGetWithdrawals))

	apiRouter.Handle("GET /api/tax-years", protected(taxHandler.HandleGetTaxYears))
	apiRouter.Handle("GET /api/gains/{year}", protected(taxHandler.HandleGetGains))
	apiRouter.Handle("GET /api/form8949/{year}", protected(taxHandler.HandleGetForm8949))
	apiRouter.Handle("POST /api/form8949/{year}/external", protected(taxHandler.HandleUploadExternalRecords))
	apiRouter.Handle("DELETE /api/form8949/{year}/external", protected(taxHandler.HandleDeleteExternalRecords))
	return apiRouter
}

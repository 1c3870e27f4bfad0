package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/revoledger/src/config"
	"github.com/username/revoledger/src/database"
	"github.com/username/revoledger/src/handlers"
	"github.com/username/revoledger/src/logger"
	"github.com/username/revoledger/src/processors"
	"github.com/username/revoledger/src/security"
	"github.com/username/revoledger/src/services"
	"github.com/username/revoledger/src/utils"
	"golang.org/x/time/rate"
)

func main() {
	issueToken := flag.String("issue-token", "", "print a signed bearer token for `subject` and exit")
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash of `password` for ADMIN_PASSWORD_HASH and exit")
	recomputeOnly := flag.Bool("recompute", false, "run one ledger computation pass, log the counts and exit")
	flag.Parse()

	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AdminPasswordHash, config.Cfg.AccessTokenExpiry)
	if *hashPassword != "" {
		hash, err := security.HashPassword(*hashPassword)
		if err != nil {
			stdlog.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}
	if *issueToken != "" {
		token, err := authService.GenerateToken(*issueToken)
		if err != nil {
			stdlog.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	logger.L.Info("Revoledger backend starting...")

	rates := processors.DefaultTaxYearRates()
	if config.Cfg.TaxRatesPath != "" {
		loaded, err := processors.LoadTaxYearRates(config.Cfg.TaxRatesPath)
		if err != nil {
			logger.L.Error("Failed to load tax year rates", "path", config.Cfg.TaxRatesPath, "error", err)
			os.Exit(1)
		}
		rates = loaded
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	defer database.DB.Close()
	logger.L.Info("Database initialized successfully.")

	reportCache := cache.New(config.Cfg.ReportCacheExpiry, services.CacheCleanupInterval)
	ledgerService := services.NewLedgerService(database.NewStore(database.DB), rates, reportCache, services.Options{
		ReferenceCurrency: config.Cfg.ReferenceCurrency,
		DefaultUSDRate:    decimal.NewFromFloat(config.Cfg.DefaultUSDRate),
		CacheExpiration:   config.Cfg.ReportCacheExpiry,
		Export: processors.ExportSettings{
			DateFormat: config.Cfg.DateFormat,
			MultiDates: utils.MultiDateOptions{
				Format:    config.Cfg.MultiDatesFormat,
				Text:      config.Cfg.MultiDatesText,
				Separator: config.Cfg.MultiDatesSeparator,
			},
			Description:       config.Cfg.DescriptionFormat,
			ShortTermCheckbox: config.Cfg.ShortTermCheckbox,
			LongTermCheckbox:  config.Cfg.LongTermCheckbox,
		},
	})

	if *recomputeOnly {
		result, err := ledgerService.Recompute(context.Background())
		if err != nil {
			logger.L.Error("Recompute failed", "error", err)
			os.Exit(1)
		}
		logger.L.Info("Recompute done", "pairs", result.Pairs, "orphans", result.Orphans,
			"staleOverrides", result.StaleOverrides, "rejected", result.Rejected,
			"invalidSales", result.InvalidSales, "invalidWithdrawals", result.InvalidWithdrawals)
		return
	}

	routerCfg := handlers.RouterConfig{
		LedgerService:      ledgerService,
		MaxUploadSizeBytes: config.Cfg.MaxUploadSizeBytes,
	}
	if config.Cfg.AuthEnabled {
		routerCfg.AuthService = authService
	} else {
		logger.L.Warn("Authentication is disabled, the API is open to anyone who can reach it.")
	}

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	rootMux.Handle("/api/", handlers.NewAPIRouter(routerCfg))
	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Revoledger backend is running"})
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	limiter := rate.NewLimiter(rate.Limit(config.Cfg.RateLimitPerSecond), config.Cfg.RateLimitBurst)
	finalHandler := handlers.CORSMiddleware(config.Cfg.AllowedOrigin)(handlers.RateLimitMiddleware(limiter)(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		logger.L.Info("Shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.L.Error("Graceful shutdown failed", "error", err)
		}
	}()

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	}
	logger.L.Info("Server stopped gracefully.")
}

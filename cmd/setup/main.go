package main

import (
	"context"
	"flag"
	"fmt"

	"units-ledger-go/internal/common"
	"units-ledger-go/internal/config"
	"units-ledger-go/internal/ledger"
	"units-ledger-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type seedStats struct {
	granted int
	skipped int
	failed  []string
}

// hasBalance reports whether the user already holds any of the given
// currency, so re-running setup does not inflate balances.
func hasBalance(balances []models.AccountBalance, currency string) bool {
	for _, balance := range balances {
		if balance.Currency == currency && !balance.Balance.IsZero() {
			return true
		}
	}
	return false
}

func seedBalances(ctx context.Context, ledgerService *ledger.Service, users []common.UserInfo, amount decimal.Decimal, currency string, dbBalances func(context.Context, string) ([]models.AccountBalance, error)) seedStats {
	stats := seedStats{}

	for _, user := range users {
		balances, err := dbBalances(ctx, user.Id)
		if err != nil {
			zap.L().Error("Failed to read balances", zap.String("user_id", user.Id), zap.Error(err))
			stats.failed = append(stats.failed, user.Email)
			continue
		}

		if hasBalance(balances, currency) {
			fmt.Printf("✓ %s: already funded, skipping\n", user.Email)
			stats.skipped++
			continue
		}

		record, err := ledgerService.Grant(ctx, ledger.GrantParams{
			RecipientId:    user.Id,
			Amount:         amount,
			Currency:       currency,
			Description:    "initial balance",
			IdempotencyKey: uuid.New().String(),
		})
		if err != nil {
			zap.L().Error("Failed to grant initial balance",
				zap.String("user_id", user.Id),
				zap.String("email", user.Email),
				zap.Error(err))
			fmt.Printf("✗ %s: grant failed\n", user.Email)
			stats.failed = append(stats.failed, user.Email)
			continue
		}

		fmt.Printf("✓ %s: granted %s %s (transfer %s)\n",
			user.Email, amount.String(), currency, common.FormatId(record.Id))
		stats.granted++
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	grantFlag := flag.String("grant", "", "Initial balance to grant each unfunded user (optional)")
	currencyFlag := flag.String("currency", "UNITS", "Currency for the initial grant")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Setting up SQLite database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabase(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := common.InitializeUsers(ctx, dbService, "", logger)
	if err != nil {
		logger.Fatal("Failed to read users", zap.Error(err))
	}

	common.PrintHeader("LEDGER SETUP", common.DefaultWidth)
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	fmt.Printf("Users:    %d\n", len(users))
	common.PrintSeparator("=", common.DefaultWidth)

	if *grantFlag == "" {
		fmt.Println("\nSchema initialized. Run with --grant to seed initial balances.")
		logger.Info("Setup complete", zap.Int("users", len(users)))
		return
	}

	amount, err := decimal.NewFromString(*grantFlag)
	if err != nil || !amount.IsPositive() {
		logger.Fatal("Invalid grant amount", zap.String("amount", *grantFlag))
	}

	currencies, err := common.LoadCurrencyRegistry(cfg.Ledger.CurrenciesFile)
	if err != nil {
		logger.Fatal("Failed to load currency registry", zap.Error(err))
	}

	ledgerService := ledger.NewService(dbService, currencies, cfg.Ledger.LockWaitTimeout)

	fmt.Println()
	stats := seedBalances(ctx, ledgerService, users, amount, *currencyFlag, dbService.GetAllBalances)

	summary := fmt.Sprintf("SUMMARY: %d granted, %d already funded, %d failed",
		stats.granted, stats.skipped, len(stats.failed))
	common.PrintFooter(summary, common.DefaultWidth)

	if len(stats.failed) > 0 {
		logger.Warn("Setup completed with failures",
			zap.Int("granted", stats.granted),
			zap.Strings("failed_users", stats.failed))
		return
	}

	logger.Info("Setup complete",
		zap.Int("granted", stats.granted),
		zap.Int("skipped", stats.skipped))
}

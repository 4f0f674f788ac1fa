package main

import (
	"context"
	"flag"
	"fmt"

	"units-ledger-go/internal/common"
	"units-ledger-go/internal/config"
	"units-ledger-go/internal/ledger"
	"units-ledger-go/internal/models"

	"go.uber.org/zap"
)

func directionLabel(transfer models.Transfer, ownerId string) string {
	if transfer.SenderId == ownerId {
		return "OUT"
	}
	return "IN "
}

func counterparty(transfer models.Transfer, ownerId string) string {
	if transfer.Kind == models.TransferKindGrant {
		return "platform grant"
	}
	if transfer.SenderId == ownerId {
		return common.FormatId(transfer.RecipientId)
	}
	return common.FormatId(transfer.SenderId)
}

func printTransfer(transfer models.Transfer, ownerId string, isLast bool) {
	symbol := common.BoxPrefix(isLast)

	fmt.Printf("%s %s  %s %12s %-6s  %s  %s\n",
		symbol,
		transfer.CreatedAt.Format("2006-01-02 15:04:05"),
		directionLabel(transfer, ownerId),
		transfer.Amount.String(),
		transfer.Currency,
		common.FormatId(transfer.Id),
		counterparty(transfer, ownerId))
	if transfer.Description != "" {
		fmt.Printf("%s   %s\n", common.BoxPrefix(isLast), transfer.Description)
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "User email (required)")
	limitFlag := flag.Int("limit", 50, "Maximum transfers to show")
	offsetFlag := flag.Int("offset", 0, "Number of transfers to skip")
	flag.Parse()

	if *emailFlag == "" {
		logger.Fatal("Flag is required: --email")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabase(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := common.InitializeUsers(ctx, dbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to look up user", zap.Error(err))
	}
	user := users[0]

	currencies, err := common.LoadCurrencyRegistry(cfg.Ledger.CurrenciesFile)
	if err != nil {
		logger.Fatal("Failed to load currency registry", zap.Error(err))
	}

	ledgerService := ledger.NewService(dbService, currencies, cfg.Ledger.LockWaitTimeout)

	transfers, err := ledgerService.History(ctx, user.Id, *limitFlag, *offsetFlag)
	if err != nil {
		logger.Fatal("Failed to read transfer history", zap.Error(err))
	}

	common.PrintHeader("TRANSFER HISTORY", common.DefaultWidth)
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %s\n", user.Id)
	fmt.Printf("│  Transfers: %d\n", len(transfers))
	common.PrintBoxSeparator(78)

	if len(transfers) == 0 {
		fmt.Println("└  No transfers found")
	}

	for i, transfer := range transfers {
		printTransfer(transfer, user.Id, i == len(transfers)-1)
	}

	summary := fmt.Sprintf("SUMMARY: %d transfers shown (limit %d, offset %d)",
		len(transfers), *limitFlag, *offsetFlag)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("History query completed",
		zap.String("user_id", user.Id),
		zap.Int("transfers", len(transfers)))
}

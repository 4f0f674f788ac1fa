/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"units-ledger-go/internal/common"
	"units-ledger-go/internal/config"
	"units-ledger-go/internal/ledger"
	"units-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type transferRequest struct {
	senderEmail    string
	recipientEmail string
	amount         decimal.Decimal
	currency       string
	description    string
	idempotencyKey string
}

func parseAndValidateFlags() (*transferRequest, error) {
	fromFlag := flag.String("from", "", "Sender email (required)")
	toFlag := flag.String("to", "", "Recipient email (required)")
	amountFlag := flag.String("amount", "", "Amount to transfer (required)")
	currencyFlag := flag.String("currency", "UNITS", "Currency code")
	descriptionFlag := flag.String("description", "", "Transfer description (optional)")
	keyFlag := flag.String("idempotency-key", "", "Idempotency key (optional, generated if empty)")
	flag.Parse()

	if *fromFlag == "" || *toFlag == "" || *amountFlag == "" {
		return nil, fmt.Errorf("all flags are required: --from, --to, --amount")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	key := *keyFlag
	if key == "" {
		key = uuid.New().String()
	}

	return &transferRequest{
		senderEmail:    *fromFlag,
		recipientEmail: *toFlag,
		amount:         amount,
		currency:       *currencyFlag,
		description:    *descriptionFlag,
		idempotencyKey: key,
	}, nil
}

// explainError turns ledger sentinel errors into operator-facing messages.
func explainError(err error) string {
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		return "Sender does not have enough funds for this transfer"
	case errors.Is(err, store.ErrSelfTransfer):
		return "Sender and recipient are the same account"
	case errors.Is(err, store.ErrRecipientNotFound):
		return "Recipient account does not exist"
	case errors.Is(err, store.ErrInvalidCurrency):
		return "Currency is not recognized by this ledger"
	case errors.Is(err, store.ErrLockTimeout):
		return "Accounts are busy, retry the transfer"
	default:
		return err.Error()
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	request, err := parseAndValidateFlags()
	if err != nil {
		logger.Fatal("Invalid flags", zap.Error(err))
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

	sender, err := dbService.GetUserByEmail(ctx, request.senderEmail)
	if err != nil {
		logger.Fatal("Sender not found", zap.String("email", request.senderEmail), zap.Error(err))
	}

	recipient, err := dbService.GetUserByEmail(ctx, request.recipientEmail)
	if err != nil {
		logger.Fatal("Recipient not found", zap.String("email", request.recipientEmail), zap.Error(err))
	}

	currencies, err := common.LoadCurrencyRegistry(cfg.Ledger.CurrenciesFile)
	if err != nil {
		logger.Fatal("Failed to load currency registry", zap.Error(err))
	}

	ledgerService := ledger.NewService(dbService, currencies, cfg.Ledger.LockWaitTimeout)

	logger.Info("Submitting transfer",
		zap.String("sender_id", sender.Id),
		zap.String("recipient_id", recipient.Id),
		zap.String("amount", request.amount.String()),
		zap.String("currency", request.currency))

	record, err := ledgerService.Transfer(ctx, ledger.TransferParams{
		SenderId:       sender.Id,
		RecipientId:    recipient.Id,
		Amount:         request.amount,
		Currency:       request.currency,
		Description:    request.description,
		IdempotencyKey: request.idempotencyKey,
	})
	if err != nil {
		logger.Error("Transfer failed", zap.Error(err))
		fmt.Printf("\n✗ Transfer failed: %s\n\n", explainError(err))
		return
	}

	fmt.Println()
	common.PrintHeader("TRANSFER COMPLETED", common.DefaultWidth)
	fmt.Printf("Transfer ID:       %s\n", record.Id)
	fmt.Printf("From:              %s (%s)\n", sender.Name, sender.Email)
	fmt.Printf("To:                %s (%s)\n", recipient.Name, recipient.Email)
	fmt.Printf("Amount:            %s %s\n", record.Amount.String(), record.Currency)
	if record.Description != "" {
		fmt.Printf("Description:       %s\n", record.Description)
	}
	fmt.Printf("Sender balance:    %s\n", record.SenderBalanceAfter.String())
	fmt.Printf("Recipient balance: %s\n", record.RecipientBalanceAfter.String())
	fmt.Printf("Idempotency key:   %s\n", record.IdempotencyKey)
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	logger.Info("Transfer completed",
		zap.String("transfer_id", record.Id),
		zap.String("sender_balance", record.SenderBalanceAfter.String()),
		zap.String("recipient_balance", record.RecipientBalanceAfter.String()))
}

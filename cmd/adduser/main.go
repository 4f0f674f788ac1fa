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
	"flag"
	"fmt"
	"regexp"
	"strings"

	"units-ledger-go/internal/common"
	"units-ledger-go/internal/config"
	"units-ledger-go/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	return nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	// Parse command line flags
	nameFlag := flag.String("name", "", "User's full name (required)")
	emailFlag := flag.String("email", "", "User's email address (required)")
	grantFlag := flag.String("grant", "", "Initial balance to grant the new user (optional)")
	currencyFlag := flag.String("currency", "UNITS", "Currency for the initial grant")
	flag.Parse()

	// Validate required flags
	if *nameFlag == "" || *emailFlag == "" {
		zap.L().Fatal("Both flags are required: --name and --email")
	}

	if err := validateName(*nameFlag); err != nil {
		zap.L().Fatal("Invalid name", zap.Error(err))
	}

	if err := validateEmail(*emailFlag); err != nil {
		zap.L().Fatal("Invalid email", zap.Error(err))
	}

	zap.L().Info("Starting user creation process",
		zap.String("name", *nameFlag),
		zap.String("email", *emailFlag))

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabase(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	// Generate UUID for the new user
	userId := uuid.New().String()

	user, err := dbService.CreateUser(ctx, userId, *nameFlag, *emailFlag)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			zap.L().Fatal("User already exists with this email", zap.String("email", *emailFlag))
		}
		zap.L().Fatal("Failed to create user", zap.Error(err))
	}

	fmt.Println()
	common.PrintHeader("USER CREATED", common.DefaultWidth)
	fmt.Printf("ID:    %s\n", user.Id)
	fmt.Printf("Name:  %s\n", user.Name)
	fmt.Printf("Email: %s\n", user.Email)
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	zap.L().Info("User created successfully", zap.String("id", user.Id))

	if *grantFlag == "" {
		return
	}

	amount, err := decimal.NewFromString(*grantFlag)
	if err != nil || !amount.IsPositive() {
		zap.L().Fatal("Invalid grant amount", zap.String("amount", *grantFlag))
	}

	currencies, err := common.LoadCurrencyRegistry(cfg.Ledger.CurrenciesFile)
	if err != nil {
		zap.L().Fatal("Failed to load currency registry", zap.Error(err))
	}

	ledgerService := ledger.NewService(dbService, currencies, cfg.Ledger.LockWaitTimeout)

	record, err := ledgerService.Grant(ctx, ledger.GrantParams{
		RecipientId:    user.Id,
		Amount:         amount,
		Currency:       *currencyFlag,
		Description:    "initial balance",
		IdempotencyKey: uuid.New().String(),
	})
	if err != nil {
		zap.L().Fatal("User created but initial grant failed", zap.Error(err))
	}

	fmt.Printf("Granted %s %s (transfer %s, balance %s)\n\n",
		amount.String(), *currencyFlag, common.FormatId(record.Id),
		record.RecipientBalanceAfter.String())

	zap.L().Info("Initial balance granted",
		zap.String("user_id", user.Id),
		zap.String("transfer_id", record.Id),
		zap.String("amount", amount.String()),
		zap.String("currency", *currencyFlag))
}

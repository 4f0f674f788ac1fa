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
	"os"
	"os/signal"
	"syscall"

	"units-ledger-go/internal/api"
	"units-ledger-go/internal/common"
	"units-ledger-go/internal/config"
	"units-ledger-go/internal/ledger"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.Server.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set to run the transfer gateway")
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabase(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	currencies, err := common.LoadCurrencyRegistry(cfg.Ledger.CurrenciesFile)
	if err != nil {
		logger.Fatal("Failed to load currency registry", zap.Error(err))
	}
	logger.Info("Currency registry loaded", zap.Strings("codes", currencies.Codes()))

	ledgerService := ledger.NewService(dbService, currencies, cfg.Ledger.LockWaitTimeout)
	handler := api.NewHandler(ledgerService, dbService, cfg.Ledger.HistoryPageSize)
	app := api.NewServer(cfg.Server, handler)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Transfer gateway listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := app.Listen(cfg.Server.ListenAddr); err != nil {
			logger.Fatal("Server stopped unexpectedly", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("Shutting down transfer gateway")

	if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}

	logger.Info("Transfer gateway stopped")
}

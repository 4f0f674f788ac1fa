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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"units-ledger-go/internal/models"
	"units-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns the current balance for an (owner, currency) pair.
// An absent row means zero: accounts are created lazily on first write.
func (s *Service) GetBalance(ctx context.Context, ownerId, currency string) (decimal.Decimal, error) {
	zap.L().Debug("Getting balance", zap.String("owner_id", ownerId), zap.String("currency", currency))

	var balanceStr string
	err := s.db.QueryRowContext(ctx, queryGetBalance, ownerId, currency).Scan(&balanceStr)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("owner_id", ownerId), zap.String("currency", currency), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		zap.L().Error("Failed to parse balance", zap.String("balance_str", balanceStr), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to parse balance: %w", err)
	}

	return balance, nil
}

// GetAllBalances returns all non-zero balances for an owner
func (s *Service) GetAllBalances(ctx context.Context, ownerId string) ([]models.AccountBalance, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAllBalances, ownerId)
	if err != nil {
		zap.L().Error("Failed to get all balances", zap.String("owner_id", ownerId), zap.Error(err))
		return nil, fmt.Errorf("failed to get all balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var balances []models.AccountBalance
	for rows.Next() {
		var balance models.AccountBalance
		var balanceStr string
		err := rows.Scan(&balance.Id, &balance.OwnerId, &balance.Currency, &balanceStr,
			&balance.LastTransferId, &balance.Version, &balance.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}

		balance.Balance, err = decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
		}

		balances = append(balances, balance)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during balance row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	return balances, nil
}

// ApplyDelta atomically adds a (positive or negative) delta to one balance.
// It is the only mutation primitive: every balance change funnels through
// here. The delta is rejected with store.ErrInsufficientFunds, without any
// mutation, if the resulting balance would be negative.
func (s *Service) ApplyDelta(ctx context.Context, params store.ApplyDeltaParams) (decimal.Decimal, error) {
	zap.L().Debug("Applying balance delta",
		zap.String("owner_id", params.OwnerId),
		zap.String("currency", params.Currency),
		zap.String("delta", params.Delta.String()))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentBalanceStr string
	var accountId string
	var version int64

	err = tx.QueryRowContext(ctx, queryGetBalanceForUpdate, params.OwnerId, params.Currency).
		Scan(&accountId, &currentBalanceStr, &version)

	var currentBalance decimal.Decimal
	if errors.Is(err, sql.ErrNoRows) {
		// Lazy account creation on first reference
		accountId = uuid.New().String()
		currentBalance = decimal.Zero
		version = 1

		if _, err := tx.ExecContext(ctx, queryInsertBalance, accountId, params.OwnerId, params.Currency, "0", 1); err != nil {
			return decimal.Zero, fmt.Errorf("failed to create account balance: %w", err)
		}
	} else if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get current balance: %w", err)
	} else {
		currentBalance, err = decimal.NewFromString(currentBalanceStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse current balance '%s': %w", currentBalanceStr, err)
		}
	}

	newBalance := currentBalance.Add(params.Delta)
	if newBalance.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: balance %s, delta %s",
			store.ErrInsufficientFunds, currentBalance.String(), params.Delta.String())
	}

	result, err := tx.ExecContext(ctx, queryUpdateBalance,
		newBalance.String(), params.TransferId, params.OwnerId, params.Currency, version)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return decimal.Zero, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Debug("Balance delta applied",
		zap.String("owner_id", params.OwnerId),
		zap.String("currency", params.Currency),
		zap.String("old_balance", currentBalance.String()),
		zap.String("new_balance", newBalance.String()))

	return newBalance, nil
}

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

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"units-ledger-go/internal/common"
	"units-ledger-go/internal/models"
	"units-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service is the sole entry point for moving value between accounts. It
// validates requests, serializes transfers that share an account, and runs
// the debit/credit/append commit as an all-or-nothing unit.
type Service struct {
	store      store.LedgerStore
	currencies *common.CurrencyRegistry
	locks      *accountLocks
	lockWait   time.Duration
}

func NewService(ledgerStore store.LedgerStore, currencies *common.CurrencyRegistry, lockWait time.Duration) *Service {
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	return &Service{
		store:      ledgerStore,
		currencies: currencies,
		locks:      newAccountLocks(),
		lockWait:   lockWait,
	}
}

// TransferParams is one transfer instruction. Metadata is opaque to the
// ledger and stored verbatim for audit purposes only.
type TransferParams struct {
	SenderId       string
	RecipientId    string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	Metadata       string
	IdempotencyKey string
}

// GrantParams is a platform-initiated credit with no sending account.
type GrantParams struct {
	RecipientId    string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	IdempotencyKey string
}

// Transfer moves a positive amount from the sender to the recipient and
// appends the matching record, atomically.
//
// Validation is fail-fast and ordered for deterministic error reporting:
// amount, currency, self-transfer, recipient resolution, then sufficient
// funds. Validation failures are terminal caller errors with no state
// change and no record. A commit failure after the debit rolls the debit
// back before returning.
func (s *Service) Transfer(ctx context.Context, params TransferParams) (*models.Transfer, error) {
	if params.SenderId == "" {
		return nil, fmt.Errorf("sender id is required")
	}
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", store.ErrInvalidAmount, params.Amount.String())
	}
	if !s.currencies.Recognized(params.Currency) {
		return nil, fmt.Errorf("%w: %s", store.ErrInvalidCurrency, params.Currency)
	}
	if params.SenderId == params.RecipientId {
		return nil, fmt.Errorf("%w: %s", store.ErrSelfTransfer, params.SenderId)
	}

	exists, err := s.store.UserExists(ctx, params.RecipientId)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", store.ErrRecipientNotFound, params.RecipientId)
	}

	release, err := s.locks.acquire(ctx, s.lockWait, params.SenderId, params.RecipientId)
	if err != nil {
		return nil, err
	}
	defer release()

	// Replay detection must happen inside the lock: a retried request and
	// its original may otherwise interleave.
	if params.IdempotencyKey != "" {
		existing, err := s.store.FindByIdempotencyKey(ctx, params.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			zap.L().Info("Idempotent transfer replay, returning existing record",
				zap.String("idempotency_key", params.IdempotencyKey),
				zap.String("transfer_id", existing.Id))
			return existing, nil
		}
	}

	balance, err := s.store.GetBalance(ctx, params.SenderId, params.Currency)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(params.Amount) {
		return nil, fmt.Errorf("%w: balance %s, requested %s",
			store.ErrInsufficientFunds, balance.String(), params.Amount.String())
	}

	transferId := uuid.New().String()

	senderAfter, err := s.store.ApplyDelta(ctx, store.ApplyDeltaParams{
		OwnerId:    params.SenderId,
		Currency:   params.Currency,
		Delta:      params.Amount.Neg(),
		TransferId: transferId,
	})
	if err != nil {
		return nil, fmt.Errorf("debit failed: %w", err)
	}

	recipientAfter, err := s.store.ApplyDelta(ctx, store.ApplyDeltaParams{
		OwnerId:    params.RecipientId,
		Currency:   params.Currency,
		Delta:      params.Amount,
		TransferId: transferId,
	})
	if err != nil {
		s.compensate(ctx, params.SenderId, params.Currency, params.Amount, transferId)
		return nil, fmt.Errorf("credit failed, debit rolled back: %w", err)
	}

	record := &models.Transfer{
		Id:                    transferId,
		SenderId:              params.SenderId,
		RecipientId:           params.RecipientId,
		Currency:              params.Currency,
		Amount:                params.Amount,
		SenderBalanceAfter:    senderAfter,
		RecipientBalanceAfter: recipientAfter,
		Description:           params.Description,
		Metadata:              params.Metadata,
		IdempotencyKey:        params.IdempotencyKey,
		Kind:                  models.TransferKindTransfer,
		Status:                "completed",
		CreatedAt:             time.Now().UTC(),
	}

	stored, err := s.store.Append(ctx, record)
	if err != nil {
		s.compensate(ctx, params.RecipientId, params.Currency, params.Amount.Neg(), transferId)
		s.compensate(ctx, params.SenderId, params.Currency, params.Amount, transferId)

		if errors.Is(err, store.ErrDuplicateTransfer) {
			// Another caller committed the same key between our lookup and
			// the append (the two requests did not share an account lock).
			existing, lookupErr := s.store.FindByIdempotencyKey(ctx, params.IdempotencyKey)
			if lookupErr == nil && existing != nil {
				zap.L().Info("Lost idempotency race, returning committed record",
					zap.String("idempotency_key", params.IdempotencyKey),
					zap.String("transfer_id", existing.Id))
				return existing, nil
			}
		}
		return nil, fmt.Errorf("record append failed, balances rolled back: %w", err)
	}

	zap.L().Info("Transfer completed",
		zap.String("transfer_id", stored.Id),
		zap.String("sender_id", params.SenderId),
		zap.String("recipient_id", params.RecipientId),
		zap.String("currency", params.Currency),
		zap.String("amount", params.Amount.String()),
		zap.String("sender_balance", senderAfter.String()),
		zap.String("recipient_balance", recipientAfter.String()))

	return stored, nil
}

// Grant credits a user from the platform with no sending account, used to
// seed initial balances. Validation and commit mirror Transfer minus the
// sender-side checks.
func (s *Service) Grant(ctx context.Context, params GrantParams) (*models.Transfer, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", store.ErrInvalidAmount, params.Amount.String())
	}
	if !s.currencies.Recognized(params.Currency) {
		return nil, fmt.Errorf("%w: %s", store.ErrInvalidCurrency, params.Currency)
	}

	exists, err := s.store.UserExists(ctx, params.RecipientId)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", store.ErrRecipientNotFound, params.RecipientId)
	}

	release, err := s.locks.acquire(ctx, s.lockWait, params.RecipientId)
	if err != nil {
		return nil, err
	}
	defer release()

	if params.IdempotencyKey != "" {
		existing, err := s.store.FindByIdempotencyKey(ctx, params.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			zap.L().Info("Idempotent grant replay, returning existing record",
				zap.String("idempotency_key", params.IdempotencyKey),
				zap.String("transfer_id", existing.Id))
			return existing, nil
		}
	}

	transferId := uuid.New().String()

	recipientAfter, err := s.store.ApplyDelta(ctx, store.ApplyDeltaParams{
		OwnerId:    params.RecipientId,
		Currency:   params.Currency,
		Delta:      params.Amount,
		TransferId: transferId,
	})
	if err != nil {
		return nil, fmt.Errorf("credit failed: %w", err)
	}

	record := &models.Transfer{
		Id:                    transferId,
		RecipientId:           params.RecipientId,
		Currency:              params.Currency,
		Amount:                params.Amount,
		RecipientBalanceAfter: recipientAfter,
		Description:           params.Description,
		IdempotencyKey:        params.IdempotencyKey,
		Kind:                  models.TransferKindGrant,
		Status:                "completed",
		CreatedAt:             time.Now().UTC(),
	}

	stored, err := s.store.Append(ctx, record)
	if err != nil {
		s.compensate(ctx, params.RecipientId, params.Currency, params.Amount.Neg(), transferId)
		return nil, fmt.Errorf("record append failed, credit rolled back: %w", err)
	}

	zap.L().Info("Grant completed",
		zap.String("transfer_id", stored.Id),
		zap.String("recipient_id", params.RecipientId),
		zap.String("currency", params.Currency),
		zap.String("amount", params.Amount.String()))

	return stored, nil
}

// History returns the transfers an owner participated in, oldest first.
func (s *Service) History(ctx context.Context, ownerId string, limit, offset int) ([]models.Transfer, error) {
	if ownerId == "" {
		return nil, fmt.Errorf("owner id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.FindByParticipant(ctx, ownerId, limit, offset)
}

// Balances returns all non-zero balances for an owner.
func (s *Service) Balances(ctx context.Context, ownerId string) ([]models.UserBalance, error) {
	if ownerId == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	balances, err := s.store.GetAllBalances(ctx, ownerId)
	if err != nil {
		zap.L().Error("Failed to get balances", zap.String("owner_id", ownerId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balances")
	}

	result := make([]models.UserBalance, len(balances))
	for i, balance := range balances {
		result[i] = models.UserBalance{
			Currency: balance.Currency,
			Balance:  balance.Balance,
		}
	}
	return result, nil
}

// compensate reverses a previously applied delta after a failed commit.
// A failure here leaves the stores inconsistent and is logged at error
// level with everything needed to reconcile.
func (s *Service) compensate(ctx context.Context, ownerId, currency string, delta decimal.Decimal, transferId string) {
	if _, err := s.store.ApplyDelta(ctx, store.ApplyDeltaParams{
		OwnerId:    ownerId,
		Currency:   currency,
		Delta:      delta,
		TransferId: transferId,
	}); err != nil {
		zap.L().Error("Rollback failed",
			zap.String("owner_id", ownerId),
			zap.String("currency", currency),
			zap.String("delta", delta.String()),
			zap.String("transfer_id", transferId),
			zap.Error(err))
	}
}

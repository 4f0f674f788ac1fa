package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"units-ledger-go/internal/models"
	"units-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Append persists a fully-formed transfer record. Records are immutable:
// there is no update or delete path. Appending a record whose idempotency
// key already exists fails with store.ErrDuplicateTransfer.
func (s *Service) Append(ctx context.Context, transfer *models.Transfer) (*models.Transfer, error) {
	zap.L().Info("Appending transfer record",
		zap.String("transfer_id", transfer.Id),
		zap.String("sender_id", transfer.SenderId),
		zap.String("recipient_id", transfer.RecipientId),
		zap.String("currency", transfer.Currency),
		zap.String("amount", transfer.Amount.String()),
		zap.String("kind", transfer.Kind))

	stored := &models.Transfer{}
	var amountStr, senderAfterStr, recipientAfterStr string
	err := s.db.QueryRowContext(ctx, queryInsertTransfer,
		transfer.Id, transfer.SenderId, transfer.RecipientId, transfer.Currency,
		transfer.Amount.String(), transfer.SenderBalanceAfter.String(), transfer.RecipientBalanceAfter.String(),
		transfer.Description, transfer.Metadata, transfer.IdempotencyKey,
		transfer.Kind, transfer.Status, transfer.CreatedAt).
		Scan(&stored.Id, &stored.SenderId, &stored.RecipientId, &stored.Currency,
			&amountStr, &senderAfterStr, &recipientAfterStr,
			&stored.Description, &stored.Metadata, &stored.IdempotencyKey,
			&stored.Kind, &stored.Status, &stored.CreatedAt)
	if err != nil {
		if isIdempotencyKeyConflict(err) {
			return nil, fmt.Errorf("%w: idempotency key %s already exists",
				store.ErrDuplicateTransfer, transfer.IdempotencyKey)
		}
		return nil, fmt.Errorf("failed to insert transfer: %w", err)
	}

	stored.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse returned amount: %w", err)
	}
	stored.SenderBalanceAfter, err = decimal.NewFromString(senderAfterStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse returned sender balance: %w", err)
	}
	stored.RecipientBalanceAfter, err = decimal.NewFromString(recipientAfterStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse returned recipient balance: %w", err)
	}

	return stored, nil
}

// FindByParticipant returns the transfers in which an owner participated as
// sender or recipient, oldest first. The limit/offset pair makes the
// sequence restartable for audit paging.
func (s *Service) FindByParticipant(ctx context.Context, ownerId string, limit, offset int) ([]models.Transfer, error) {
	rows, err := s.db.QueryContext(ctx, queryFindByParticipant, ownerId, ownerId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer history: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var transfers []models.Transfer
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *transfer)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transfer row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transfer rows: %w", err)
	}

	return transfers, nil
}

// FindByIdempotencyKey returns the transfer recorded for a caller-supplied
// idempotency key, or nil if the key has never been committed.
func (s *Service) FindByIdempotencyKey(ctx context.Context, key string) (*models.Transfer, error) {
	if key == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, queryFindByIdempotencyKey, key)
	transfer, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return transfer, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (*models.Transfer, error) {
	transfer := &models.Transfer{}
	var amountStr, senderAfterStr, recipientAfterStr string
	err := row.Scan(&transfer.Id, &transfer.SenderId, &transfer.RecipientId, &transfer.Currency,
		&amountStr, &senderAfterStr, &recipientAfterStr,
		&transfer.Description, &transfer.Metadata, &transfer.IdempotencyKey,
		&transfer.Kind, &transfer.Status, &transfer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transfer: %w", err)
	}

	transfer.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	transfer.SenderBalanceAfter, err = decimal.NewFromString(senderAfterStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sender balance '%s': %w", senderAfterStr, err)
	}
	transfer.RecipientBalanceAfter, err = decimal.NewFromString(recipientAfterStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recipient balance '%s': %w", recipientAfterStr, err)
	}

	return transfer, nil
}

func isIdempotencyKeyConflict(err error) bool {
	return strings.Contains(err.Error(), "transfers.idempotency_key")
}

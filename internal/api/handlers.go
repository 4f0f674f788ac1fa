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

package api

import (
	"encoding/json"

	"units-ledger-go/internal/ledger"
	"units-ledger-go/internal/models"
	"units-ledger-go/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler struct {
	ledger   *ledger.Service
	store    store.LedgerStore
	validate *validator.Validate
	pageSize int
}

func NewHandler(ledgerService *ledger.Service, ledgerStore store.LedgerStore, historyPageSize int) *Handler {
	if historyPageSize <= 0 {
		historyPageSize = 50
	}
	return &Handler{
		ledger:   ledgerService,
		store:    ledgerStore,
		validate: validator.New(),
		pageSize: historyPageSize,
	}
}

// CreateTransfer handles POST /v1/transfers. The idempotency key comes from
// the Idempotency-Key header, falling back to the body field.
func (h *Handler) CreateTransfer(c *fiber.Ctx) error {
	caller := models.CallerFromContext(c.UserContext())
	if caller == nil {
		return unauthorized(c, "missing caller identity")
	}

	var req models.TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "malformed_body", "request body is not valid JSON", false)
	}
	if err := h.validate.Struct(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "malformed_body", err.Error(), false)
	}

	idempotencyKey := c.Get("Idempotency-Key")
	if idempotencyKey == "" {
		idempotencyKey = req.IdempotencyKey
	}

	record, err := h.ledger.Transfer(c.UserContext(), ledger.TransferParams{
		SenderId:       caller.UserId,
		RecipientId:    req.RecipientId,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
		Metadata:       string(req.Metadata),
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toTransferRecord(record, caller.UserId))
}

// ListTransfers handles GET /v1/transfers: the caller's history, oldest
// first.
func (h *Handler) ListTransfers(c *fiber.Ctx) error {
	caller := models.CallerFromContext(c.UserContext())
	if caller == nil {
		return unauthorized(c, "missing caller identity")
	}

	limit := c.QueryInt("limit", h.pageSize)
	offset := c.QueryInt("offset", 0)

	transfers, err := h.ledger.History(c.UserContext(), caller.UserId, limit, offset)
	if err != nil {
		return respondError(c, err)
	}

	records := make([]models.TransferRecord, len(transfers))
	for i, transfer := range transfers {
		records[i] = toTransferRecord(&transfer, caller.UserId)
	}

	return c.JSON(fiber.Map{"transfers": records})
}

// ListBalances handles GET /v1/balances: the caller's non-zero balances.
func (h *Handler) ListBalances(c *fiber.Ctx) error {
	caller := models.CallerFromContext(c.UserContext())
	if caller == nil {
		return unauthorized(c, "missing caller identity")
	}

	balances, err := h.ledger.Balances(c.UserContext(), caller.UserId)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"balances": balances})
}

func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.store.Ping(c.UserContext()); err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func toTransferRecord(transfer *models.Transfer, perspective string) models.TransferRecord {
	record := models.TransferRecord{
		Id:             transfer.Id,
		SenderId:       transfer.SenderId,
		RecipientId:    transfer.RecipientId,
		Amount:         transfer.Amount,
		Currency:       transfer.Currency,
		Description:    transfer.Description,
		Kind:           transfer.Kind,
		Status:         transfer.Status,
		IdempotencyKey: transfer.IdempotencyKey,
		CreatedAt:      transfer.CreatedAt,
	}
	if transfer.Metadata != "" {
		record.Metadata = json.RawMessage(transfer.Metadata)
	}
	if transfer.SenderId == perspective {
		record.Direction = models.DirectionOutgoing
	} else {
		record.Direction = models.DirectionIncoming
	}
	return record
}

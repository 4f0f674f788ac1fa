package api

import (
	"errors"

	"units-ledger-go/internal/models"
	"units-ledger-go/internal/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError maps ledger errors to the gateway's status contract. Caller
// errors keep their specific message; storage faults are reported
// generically and marked retryable.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidAmount):
		return writeError(c, fiber.StatusBadRequest, "invalid_amount", err.Error(), false)
	case errors.Is(err, store.ErrInvalidCurrency):
		return writeError(c, fiber.StatusBadRequest, "invalid_currency", err.Error(), false)
	case errors.Is(err, store.ErrSelfTransfer):
		return writeError(c, fiber.StatusForbidden, "self_transfer_forbidden", err.Error(), false)
	case errors.Is(err, store.ErrInsufficientFunds):
		return writeError(c, fiber.StatusForbidden, "insufficient_funds", err.Error(), false)
	case errors.Is(err, store.ErrRecipientNotFound):
		return writeError(c, fiber.StatusNotFound, "recipient_not_found", err.Error(), false)
	case errors.Is(err, store.ErrLockTimeout):
		return writeError(c, fiber.StatusServiceUnavailable, "lock_timeout", err.Error(), true)
	default:
		zap.L().Error("Request failed with storage fault", zap.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "storage_fault", "internal error", true)
	}
}

func writeError(c *fiber.Ctx, status int, code, message string, retryable bool) error {
	return c.Status(status).JSON(models.ErrorResponse{
		Error:     message,
		Code:      code,
		Retryable: retryable,
	})
}

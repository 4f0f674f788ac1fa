package store

import (
	"context"
	"errors"

	"units-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across backends and the ledger service.
//
// Caller errors are terminal: they are reported synchronously, produce no
// state change and no transfer record, and must not be retried. Transient
// errors (ErrLockTimeout, ErrConcurrentModification, storage faults) are
// retryable with the same idempotency key.
var (
	ErrInvalidAmount     = errors.New("amount must be strictly positive")
	ErrInvalidCurrency   = errors.New("unrecognized currency")
	ErrSelfTransfer      = errors.New("self-transfer forbidden")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrLockTimeout            = errors.New("timed out waiting for account locks")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrDuplicateTransfer      = errors.New("duplicate transfer")
	ErrUserNotFound           = errors.New("user not found")
)

// ApplyDeltaParams contains the parameters for one balance mutation.
// TransferId, when set, is recorded on the balance row for audit.
type ApplyDeltaParams struct {
	OwnerId    string
	Currency   string
	Delta      decimal.Decimal
	TransferId string
}

// AccountStore is the durable mapping from (owner, currency) to balance.
// ApplyDelta is the only mutation primitive; it fails with
// ErrInsufficientFunds, without mutating, if the result would be negative.
type AccountStore interface {
	GetBalance(ctx context.Context, ownerId, currency string) (decimal.Decimal, error)
	GetAllBalances(ctx context.Context, ownerId string) ([]models.AccountBalance, error)
	ApplyDelta(ctx context.Context, params ApplyDeltaParams) (decimal.Decimal, error)
}

// TransactionLog is the append-only record of transfers. Records are
// immutable once appended.
type TransactionLog interface {
	Append(ctx context.Context, transfer *models.Transfer) (*models.Transfer, error)
	FindByParticipant(ctx context.Context, ownerId string, limit, offset int) ([]models.Transfer, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Transfer, error)
}

// UserDirectory resolves and manages user identities.
type UserDirectory interface {
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, userId, name, email string) (*models.User, error)
	UserExists(ctx context.Context, userId string) (bool, error)
}

// LedgerStore defines the contract that every backend must satisfy.
type LedgerStore interface {
	AccountStore
	TransactionLog
	UserDirectory

	Ping(ctx context.Context) error
	Close()
}

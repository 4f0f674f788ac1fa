package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a user in the system
type User struct {
	Id        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// AccountBalance represents the current balance of one (owner, currency)
// pair (hot data). Rows are created lazily on first reference and never
// deleted, only zeroed.
type AccountBalance struct {
	Id             string          `db:"id"`
	OwnerId        string          `db:"owner_id"`
	Currency       string          `db:"currency"`
	Balance        decimal.Decimal `db:"balance"`
	LastTransferId string          `db:"last_transfer_id"`
	Version        int64           `db:"version"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// Transfer kinds.
const (
	TransferKindTransfer = "transfer"
	TransferKindGrant    = "grant"
)

// Transfer represents one immutable movement of value between two accounts
// (cold data). SenderId is empty for platform grants. Metadata is stored
// verbatim and never interpreted.
type Transfer struct {
	Id                    string          `db:"id"`
	SenderId              string          `db:"sender_id"`
	RecipientId           string          `db:"recipient_id"`
	Currency              string          `db:"currency"`
	Amount                decimal.Decimal `db:"amount"`
	SenderBalanceAfter    decimal.Decimal `db:"sender_balance_after"`
	RecipientBalanceAfter decimal.Decimal `db:"recipient_balance_after"`
	Description           string          `db:"description"`
	Metadata              string          `db:"metadata"`
	IdempotencyKey        string          `db:"idempotency_key"`
	Kind                  string          `db:"kind"`
	Status                string          `db:"status"`
	CreatedAt             time.Time       `db:"created_at"`
}

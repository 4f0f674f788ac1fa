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

package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Transfer directions relative to the queried owner.
const (
	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"
)

// TransferRequest is the gateway request body for POST /v1/transfers.
// The sender is always taken from the authenticated caller, never from
// the body.
type TransferRequest struct {
	RecipientId    string          `json:"recipient_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency" validate:"required"`
	Description    string          `json:"description"`
	Metadata       json.RawMessage `json:"metadata"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// TransferRecord is the gateway view of a committed transfer
type TransferRecord struct {
	Id             string          `json:"id"`
	SenderId       string          `json:"sender_id,omitempty"`
	RecipientId    string          `json:"recipient_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	Kind           string          `json:"kind"`
	Status         string          `json:"status"`
	Direction      string          `json:"direction,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// UserBalance represents a user's balance for a specific currency
type UserBalance struct {
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

// ErrorResponse is the gateway error envelope. Retryable tells the caller
// whether resubmitting the same request (with the same idempotency key)
// may succeed.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

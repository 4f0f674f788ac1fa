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

const (
	// User queries
	queryGetActiveUsers = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE active = 1
		ORDER BY created_at`

	queryInsertUser = `
		INSERT OR IGNORE INTO users (id, name, email) VALUES (?, ?, ?)`

	queryGetUserById = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE id = ? AND active = 1`

	queryGetUserByEmail = `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE email = ? AND active = 1`

	queryUserExists = `
		SELECT 1 FROM users WHERE id = ? AND active = 1`

	// Balance queries
	queryGetBalance = `
		SELECT balance
		FROM account_balances
		WHERE owner_id = ? AND currency = ?`

	queryGetAllBalances = `
		SELECT id, owner_id, currency, balance, last_transfer_id, version, updated_at
		FROM account_balances
		WHERE owner_id = ? AND CAST(balance AS REAL) != 0
		ORDER BY currency`

	queryGetBalanceForUpdate = `
		SELECT id, balance, version
		FROM account_balances
		WHERE owner_id = ? AND currency = ?`

	queryInsertBalance = `
		INSERT INTO account_balances (id, owner_id, currency, balance, version)
		VALUES (?, ?, ?, ?, ?)`

	queryUpdateBalance = `
		UPDATE account_balances
		SET balance = ?, last_transfer_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE owner_id = ? AND currency = ? AND version = ?`

	// Transfer queries
	queryInsertTransfer = `
		INSERT INTO transfers (
			id, sender_id, recipient_id, currency, amount,
			sender_balance_after, recipient_balance_after,
			description, metadata, idempotency_key, kind, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, sender_id, recipient_id, currency, amount,
		          sender_balance_after, recipient_balance_after,
		          description, metadata, idempotency_key, kind, status, created_at`

	queryFindByParticipant = `
		SELECT id, sender_id, recipient_id, currency, amount,
		       sender_balance_after, recipient_balance_after,
		       description, metadata, idempotency_key, kind, status, created_at
		FROM transfers
		WHERE sender_id = ? OR recipient_id = ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ? OFFSET ?`

	queryFindByIdempotencyKey = `
		SELECT id, sender_id, recipient_id, currency, amount,
		       sender_balance_after, recipient_balance_after,
		       description, metadata, idempotency_key, kind, status, created_at
		FROM transfers
		WHERE idempotency_key = ?
		LIMIT 1`
)

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
	"units-ledger-go/internal/models"

	"github.com/gofiber/fiber/v2"
)

// NewServer wires the transfer gateway routes. Everything under /v1
// requires a valid bearer token; the health endpoint does not.
func NewServer(cfg models.ServerConfig, handler *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get("/healthz", handler.Health)

	v1 := app.Group("/v1", AuthRequired(cfg.JWTSecret))
	v1.Post("/transfers", handler.CreateTransfer)
	v1.Get("/transfers", handler.ListTransfers)
	v1.Get("/balances", handler.ListBalances)

	return app
}

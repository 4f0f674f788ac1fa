package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"units-ledger-go/internal/common"
	"units-ledger-go/internal/database"
	"units-ledger-go/internal/ledger"
	"units-ledger-go/internal/models"
	"units-ledger-go/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const testSecret = "test-secret"

func setupTestServer(t *testing.T) (*fiber.App, *database.Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	dbService := database.NewServiceWithDB(db)
	if err := dbService.InitSchema(false); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	ctx := context.Background()
	for _, user := range []struct{ id, name, email string }{
		{"user1", "First User", "first@example.com"},
		{"user2", "Second User", "second@example.com"},
	} {
		if _, err := dbService.CreateUser(ctx, user.id, user.name, user.email); err != nil {
			t.Fatalf("Failed to create test user %s: %v", user.id, err)
		}
	}

	registry := common.NewCurrencyRegistry(common.DefaultCurrencies())
	ledgerService := ledger.NewService(dbService, registry, time.Second)
	handler := NewHandler(ledgerService, dbService, 50)
	app := NewServer(models.ServerConfig{JWTSecret: testSecret}, handler)

	cleanup := func() {
		db.Close()
	}

	return app, dbService, cleanup
}

func mintToken(t *testing.T, userId, email, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserId: userId,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	return out
}

func fundAccount(t *testing.T, dbService *database.Service, ownerId string, amount int64) {
	t.Helper()
	_, err := dbService.ApplyDelta(context.Background(), store.ApplyDeltaParams{
		OwnerId:    ownerId,
		Currency:   "UNITS",
		Delta:      decimal.NewFromInt(amount),
		TransferId: "seed",
	})
	if err != nil {
		t.Fatalf("Failed to fund account: %v", err)
	}
}

func TestCreateTransfer_RequiresAuth(t *testing.T) {
	app, _, cleanup := setupTestServer(t)
	defer cleanup()

	resp := doRequest(t, app, "POST", "/v1/transfers", "", models.TransferRequest{
		RecipientId: "user2",
		Amount:      decimal.NewFromInt(10),
		Currency:    "UNITS",
	})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}

	// A token signed with a different secret is also rejected
	badToken := mintToken(t, "user1", "first@example.com", "wrong-secret")
	resp = doRequest(t, app, "POST", "/v1/transfers", badToken, models.TransferRequest{
		RecipientId: "user2",
		Amount:      decimal.NewFromInt(10),
		Currency:    "UNITS",
	})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected 401 with bad signature, got %d", resp.StatusCode)
	}
}

func TestCreateTransfer_Success(t *testing.T) {
	app, dbService, cleanup := setupTestServer(t)
	defer cleanup()

	fundAccount(t, dbService, "user1", 100)
	token := mintToken(t, "user1", "first@example.com", testSecret)

	resp := doRequest(t, app, "POST", "/v1/transfers", token, models.TransferRequest{
		RecipientId: "user2",
		Amount:      decimal.NewFromInt(40),
		Currency:    "UNITS",
		Description: "lunch",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	record := decodeBody[models.TransferRecord](t, resp)
	if record.SenderId != "user1" || record.RecipientId != "user2" {
		t.Errorf("Unexpected participants: %+v", record)
	}
	if !record.Amount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected amount 40, got %s", record.Amount.String())
	}
	if record.Direction != models.DirectionOutgoing {
		t.Errorf("Expected outgoing direction for sender, got %s", record.Direction)
	}
}

func TestCreateTransfer_StatusMapping(t *testing.T) {
	app, dbService, cleanup := setupTestServer(t)
	defer cleanup()

	fundAccount(t, dbService, "user1", 100)
	token := mintToken(t, "user1", "first@example.com", testSecret)

	cases := []struct {
		name       string
		request    models.TransferRequest
		wantStatus int
		wantCode   string
	}{
		{
			name: "insufficient funds",
			request: models.TransferRequest{
				RecipientId: "user2", Amount: decimal.NewFromInt(500), Currency: "UNITS",
			},
			wantStatus: fiber.StatusForbidden,
			wantCode:   "insufficient_funds",
		},
		{
			name: "self transfer",
			request: models.TransferRequest{
				RecipientId: "user1", Amount: decimal.NewFromInt(10), Currency: "UNITS",
			},
			wantStatus: fiber.StatusForbidden,
			wantCode:   "self_transfer_forbidden",
		},
		{
			name: "unknown recipient",
			request: models.TransferRequest{
				RecipientId: "nobody", Amount: decimal.NewFromInt(10), Currency: "UNITS",
			},
			wantStatus: fiber.StatusNotFound,
			wantCode:   "recipient_not_found",
		},
		{
			name: "invalid amount",
			request: models.TransferRequest{
				RecipientId: "user2", Amount: decimal.NewFromInt(-10), Currency: "UNITS",
			},
			wantStatus: fiber.StatusBadRequest,
			wantCode:   "invalid_amount",
		},
		{
			name: "unknown currency",
			request: models.TransferRequest{
				RecipientId: "user2", Amount: decimal.NewFromInt(10), Currency: "DOGE",
			},
			wantStatus: fiber.StatusBadRequest,
			wantCode:   "invalid_currency",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, app, "POST", "/v1/transfers", token, tc.request)
			if resp.StatusCode != tc.wantStatus {
				t.Errorf("Expected status %d, got %d", tc.wantStatus, resp.StatusCode)
			}
			body := decodeBody[models.ErrorResponse](t, resp)
			if body.Code != tc.wantCode {
				t.Errorf("Expected code %s, got %s", tc.wantCode, body.Code)
			}
			if body.Retryable {
				t.Errorf("Caller errors must not be retryable: %+v", body)
			}
		})
	}
}

func TestCreateTransfer_MalformedBody(t *testing.T) {
	app, _, cleanup := setupTestServer(t)
	defer cleanup()

	token := mintToken(t, "user1", "first@example.com", testSecret)

	req := httptest.NewRequest("POST", "/v1/transfers", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", resp.StatusCode)
	}
}

func TestCreateTransfer_IdempotencyKeyHeader(t *testing.T) {
	app, dbService, cleanup := setupTestServer(t)
	defer cleanup()

	fundAccount(t, dbService, "user1", 100)
	token := mintToken(t, "user1", "first@example.com", testSecret)

	send := func() models.TransferRecord {
		payload, _ := json.Marshal(models.TransferRequest{
			RecipientId: "user2", Amount: decimal.NewFromInt(25), Currency: "UNITS",
		})
		req := httptest.NewRequest("POST", "/v1/transfers", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "header-key")

		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("Expected 201, got %d", resp.StatusCode)
		}
		return decodeBody[models.TransferRecord](t, resp)
	}

	first := send()
	second := send()

	if first.Id != second.Id {
		t.Errorf("Expected identical records for replayed key, got %s and %s", first.Id, second.Id)
	}

	balance, err := dbService.GetBalance(context.Background(), "user1", "UNITS")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Expected balance 75 after one transfer, got %s", balance.String())
	}
}

func TestListTransfers_TagsDirection(t *testing.T) {
	app, dbService, cleanup := setupTestServer(t)
	defer cleanup()

	fundAccount(t, dbService, "user1", 100)
	senderToken := mintToken(t, "user1", "first@example.com", testSecret)
	recipientToken := mintToken(t, "user2", "second@example.com", testSecret)

	resp := doRequest(t, app, "POST", "/v1/transfers", senderToken, models.TransferRequest{
		RecipientId: "user2", Amount: decimal.NewFromInt(30), Currency: "UNITS",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("Transfer failed with status %d", resp.StatusCode)
	}

	type listResponse struct {
		Transfers []models.TransferRecord `json:"transfers"`
	}

	resp = doRequest(t, app, "GET", "/v1/transfers", senderToken, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	senderList := decodeBody[listResponse](t, resp)
	if len(senderList.Transfers) != 1 || senderList.Transfers[0].Direction != models.DirectionOutgoing {
		t.Errorf("Expected one outgoing record for sender, got %+v", senderList.Transfers)
	}

	resp = doRequest(t, app, "GET", "/v1/transfers", recipientToken, nil)
	recipientList := decodeBody[listResponse](t, resp)
	if len(recipientList.Transfers) != 1 || recipientList.Transfers[0].Direction != models.DirectionIncoming {
		t.Errorf("Expected one incoming record for recipient, got %+v", recipientList.Transfers)
	}
}

func TestListBalances(t *testing.T) {
	app, dbService, cleanup := setupTestServer(t)
	defer cleanup()

	fundAccount(t, dbService, "user1", 80)
	token := mintToken(t, "user1", "first@example.com", testSecret)

	resp := doRequest(t, app, "GET", "/v1/balances", token, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	type balancesResponse struct {
		Balances []models.UserBalance `json:"balances"`
	}
	body := decodeBody[balancesResponse](t, resp)
	if len(body.Balances) != 1 {
		t.Fatalf("Expected 1 balance, got %d", len(body.Balances))
	}
	if body.Balances[0].Currency != "UNITS" || !body.Balances[0].Balance.Equal(decimal.NewFromInt(80)) {
		t.Errorf("Unexpected balance: %+v", body.Balances[0])
	}
}

func TestHealthz_NoAuth(t *testing.T) {
	app, _, cleanup := setupTestServer(t)
	defer cleanup()

	resp := doRequest(t, app, "GET", "/healthz", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200 from health endpoint, got %d", resp.StatusCode)
	}
}

func TestCreateTransfer_StorageFaultIsRetryable(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	dbService := database.NewServiceWithDB(db)
	if err := dbService.InitSchema(false); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}
	if _, err := dbService.CreateUser(context.Background(), "user1", "First User", "first@example.com"); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	registry := common.NewCurrencyRegistry(common.DefaultCurrencies())
	ledgerService := ledger.NewService(dbService, registry, time.Second)
	handler := NewHandler(ledgerService, dbService, 50)
	app := NewServer(models.ServerConfig{JWTSecret: testSecret}, handler)

	// Close the database underneath the running server
	db.Close()

	token := mintToken(t, "user1", "first@example.com", testSecret)
	resp := doRequest(t, app, "POST", "/v1/transfers", token, models.TransferRequest{
		RecipientId: "user2", Amount: decimal.NewFromInt(10), Currency: "UNITS",
	})
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("Expected 500 for storage fault, got %d", resp.StatusCode)
	}

	body := decodeBody[models.ErrorResponse](t, resp)
	if !body.Retryable {
		t.Errorf("Storage faults must be retryable: %+v", body)
	}
	if body.Error != "internal error" {
		t.Errorf("Storage fault details must not leak, got %q", fmt.Sprintf("%s", body.Error))
	}
}

package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	algocrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/vaultkeep/vaultkeep/internal/auth"
	"github.com/vaultkeep/vaultkeep/internal/config"
	"github.com/vaultkeep/vaultkeep/internal/ledger"
	"github.com/vaultkeep/vaultkeep/internal/logging"
	"github.com/vaultkeep/vaultkeep/internal/pda"
)

const operatorKey = "faucet-operator"

func setupApp(t *testing.T) (*fiber.App, ledger.Ledger) {
	t.Helper()
	return setupAppWithCache(t, nil)
}

func setupAppWithCache(t *testing.T, cache *redis.Client) (*fiber.App, ledger.Ledger) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(operatorKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg := config.Config{
		AppName:                 "vaultkeep-test",
		AppEnv:                  "test",
		RentLamportsPerByteYear: 3480,
		RentExemptionYears:      2,
		AuthMaxSkew:             time.Minute,
		OperatorKeyHash:         string(hash),
		AirdropMaxLamports:      10_000_000_000,
		RateLimitPerMinute:      100,
		IdempotencyTTL:          time.Minute,
	}
	led := ledger.NewInMemory(ledger.DefaultRent())
	app := fiber.New()
	if err := Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logging.Discard(), Ledger: led}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return app, led
}

func signed(t *testing.T, account algocrypto.Account, path, body string) *http.Request {
	t.Helper()
	key := uuid.NewString()
	h := auth.Sign(account.PrivateKey, fiber.MethodPost, path, key, []byte(body), time.Now())
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(auth.SignerHeader, h.Signer)
	req.Header.Set(auth.TimestampHeader, h.Timestamp)
	req.Header.Set(auth.SignatureHeader, h.Signature)
	req.Header.Set(auth.IdempotencyKeyHeader, key)
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request, want int) []byte {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected %d got %d: %s", req.Method, req.URL.Path, want, resp.StatusCode, body)
	}
	return body
}

func TestSignedVaultFlow(t *testing.T) {
	app, led := setupApp(t)
	owner := algocrypto.GenerateAccount()

	airdrop := httptest.NewRequest(fiber.MethodPost, "/api/v1/airdrop",
		strings.NewReader(`{"to":"`+owner.Address.String()+`","amount":2000000000}`))
	airdrop.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	airdrop.Header.Set(auth.OperatorKeyHeader, operatorKey)
	do(t, app, airdrop, http.StatusOK)

	initBody := do(t, app, signed(t, owner, "/api/v1/vaults/init", ""), http.StatusCreated)
	var created struct {
		Vault        string `json:"vault"`
		VaultBalance uint64 `json:"vault_balance"`
	}
	if err := json.Unmarshal(initBody, &created); err != nil {
		t.Fatalf("decode init: %v", err)
	}
	if created.VaultBalance != led.Rent().MinimumBalance(0) {
		t.Fatalf("expected vault at minimum balance, got %d", created.VaultBalance)
	}

	do(t, app, signed(t, owner, "/api/v1/vaults/deposit", `{"amount":1000}`), http.StatusOK)
	do(t, app, signed(t, owner, "/api/v1/vaults/withdraw", `{"amount":1001}`), http.StatusUnprocessableEntity)
	do(t, app, signed(t, owner, "/api/v1/vaults/withdraw", `{"amount":1000}`), http.StatusOK)

	view := do(t, app, httptest.NewRequest(fiber.MethodGet, "/api/v1/vaults/"+owner.Address.String(), nil), http.StatusOK)
	if !bytes.Contains(view, []byte(created.Vault)) {
		t.Fatalf("vault view does not name vault %s: %s", created.Vault, view)
	}
	do(t, app, httptest.NewRequest(fiber.MethodGet, "/api/v1/accounts/"+created.Vault, nil), http.StatusOK)

	do(t, app, signed(t, owner, "/api/v1/vaults/close", ""), http.StatusOK)
	do(t, app, httptest.NewRequest(fiber.MethodGet, "/api/v1/accounts/"+created.Vault, nil), http.StatusNotFound)

	metrics := do(t, app, httptest.NewRequest(fiber.MethodGet, "/metrics", nil), http.StatusOK)
	if !bytes.Contains(metrics, []byte(`vault_operations_total{operation="withdraw",outcome="insufficient_funds"} 1`)) {
		t.Fatalf("expected rejected withdraw in metrics:\n%s", metrics)
	}
}

func TestRetriedDepositAppliedOnce(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app, led := setupAppWithCache(t, cache)
	owner := algocrypto.GenerateAccount()
	ownerAddr, _ := pda.AddressFromBytes(owner.PublicKey)
	ledger.SeedBalance(led, ownerAddr, 2_000_000_000)

	do(t, app, signed(t, owner, "/api/v1/vaults/init", ""), http.StatusCreated)

	deposit := signed(t, owner, "/api/v1/vaults/deposit", `{"amount":1000}`)
	retry := deposit.Clone(deposit.Context())
	retry.Body = io.NopCloser(strings.NewReader(`{"amount":1000}`))

	first := do(t, app, deposit, http.StatusOK)
	resp, err := app.Test(retry)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	replayed, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replayed 200, got %d %v", resp.StatusCode, resp.Header)
	}
	if !bytes.Equal(first, replayed) {
		t.Fatalf("replay differs:\n%s\n%s", first, replayed)
	}

	var view struct {
		Balance uint64 `json:"balance"`
	}
	body := do(t, app, httptest.NewRequest(fiber.MethodGet, "/api/v1/vaults/"+ownerAddr.String(), nil), http.StatusOK)
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if want := led.Rent().MinimumBalance(0) + 1000; view.Balance != want {
		t.Fatalf("expected deposit applied once (%d), got %d", want, view.Balance)
	}
}

func TestUnsignedInstructionRejected(t *testing.T) {
	app, _ := setupApp(t)
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/vaults/init", nil)
	do(t, app, req, http.StatusUnauthorized)
}

func TestAirdropRequiresOperatorKey(t *testing.T) {
	app, _ := setupApp(t)
	owner := algocrypto.GenerateAccount()
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/airdrop",
		strings.NewReader(`{"to":"`+owner.Address.String()+`","amount":2000000000}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(auth.OperatorKeyHeader, "not-the-key")
	do(t, app, req, http.StatusForbidden)
}

func TestSetupRejectsBadProgramID(t *testing.T) {
	err := Setup(fiber.New(), Deps{Cfg: config.Config{AppEnv: "test", ProgramID: "nope"}, Logger: logging.Discard()})
	if err == nil {
		t.Fatal("expected invalid PROGRAM_ID to fail")
	}
}

func TestHealthz(t *testing.T) {
	app, _ := setupApp(t)
	body := do(t, app, httptest.NewRequest(fiber.MethodGet, "/healthz", nil), http.StatusOK)
	if !bytes.Contains(body, []byte(`"postgres":"disabled"`)) {
		t.Fatalf("unexpected health body %s", body)
	}
}

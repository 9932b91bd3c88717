package funding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vaultkeep/vaultkeep/internal/ledger"
	"github.com/vaultkeep/vaultkeep/internal/notification"
	"github.com/vaultkeep/vaultkeep/internal/observability"
	"github.com/vaultkeep/vaultkeep/internal/pda"
)

func TestServiceAirdrop(t *testing.T) {
	ctx := context.Background()
	ledgerBackend := ledger.NewInMemory(ledger.DefaultRent())
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	service, err := NewService(ledgerBackend, CapPolicy{Max: 5_000_000_000}, nil, metrics, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	alice := pda.AddressFromName("alice")
	res, err := service.Airdrop(ctx, AirdropInput{To: alice, Amount: 2_000_000_000})
	if err != nil {
		t.Fatalf("airdrop: %v", err)
	}
	if res.Balance != 2_000_000_000 {
		t.Fatalf("expected balance 2000000000, got %d", res.Balance)
	}

	res, err = service.Airdrop(ctx, AirdropInput{To: alice, Amount: 1})
	if err != nil {
		t.Fatalf("second airdrop: %v", err)
	}
	if res.Balance != 2_000_000_001 {
		t.Fatalf("expected balance to accumulate, got %d", res.Balance)
	}
	if got := testutil.ToFloat64(metrics.Airdrops); got != 2 {
		t.Fatalf("expected 2 airdrops counted, got %v", got)
	}
}

type fixedReceiptLedger struct {
	ledger.Ledger
	receipt ledger.Receipt
}

func (l fixedReceiptLedger) Airdrop(ctx context.Context, to pda.Address, lamports uint64) (ledger.Receipt, uint64, error) {
	_, balance, err := l.Ledger.Airdrop(ctx, to, lamports)
	if err != nil {
		return ledger.Receipt{}, 0, err
	}
	return l.receipt, balance, nil
}

type capturingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (n *capturingNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func TestServiceAirdropReportsLedgerTransaction(t *testing.T) {
	ctx := context.Background()
	committed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	backend := fixedReceiptLedger{
		Ledger:  ledger.NewInMemory(ledger.DefaultRent()),
		receipt: ledger.Receipt{TransactionID: "tx-ledger-1", Kind: ledger.KindAirdrop, CommittedAt: committed},
	}
	notifier := &capturingNotifier{}
	service, err := NewService(backend, CapPolicy{Max: 5_000_000_000}, notifier, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	res, err := service.Airdrop(ctx, AirdropInput{To: pda.AddressFromName("alice"), Amount: 2_000_000_000})
	if err != nil {
		t.Fatalf("airdrop: %v", err)
	}
	if res.TransactionID != "tx-ledger-1" || !res.CompletedAt.Equal(committed) {
		t.Fatalf("expected ledger receipt in result, got %+v", res)
	}
	if len(notifier.messages) != 1 || notifier.messages[0].TransactionID != "tx-ledger-1" {
		t.Fatalf("expected event to carry ledger transaction id, got %+v", notifier.messages)
	}
}

func TestServiceAirdropRejects(t *testing.T) {
	ctx := context.Background()
	ledgerBackend := ledger.NewInMemory(ledger.DefaultRent())
	service, err := NewService(ledgerBackend, CapPolicy{Max: 1_000_000}, nil, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	bob := pda.AddressFromName("bob")

	cases := []struct {
		name    string
		input   AirdropInput
		wantErr error
	}{
		{name: "zero amount", input: AirdropInput{To: bob}, wantErr: ErrInvalidAmount},
		{name: "above cap", input: AirdropInput{To: bob, Amount: 1_000_001}, wantErr: ErrAboveCap},
		{name: "no recipient", input: AirdropInput{Amount: 10}, wantErr: ErrInvalidRecipient},
		{name: "below rent minimum", input: AirdropInput{To: bob, Amount: 10}, wantErr: ledger.ErrBelowRentMinimum},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.Airdrop(ctx, tc.input); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
	if _, err := ledgerBackend.Account(ctx, bob); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("rejected airdrops must not create accounts, got %v", err)
	}
}

func TestHandlerAirdrop(t *testing.T) {
	service, err := NewService(ledger.NewInMemory(ledger.DefaultRent()), CapPolicy{Max: 5_000_000_000}, nil, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	app := fiber.New()
	app.Post("/airdrop", NewHandler(service).Airdrop)

	alice := pda.AddressFromName("alice").String()
	cases := []struct {
		body string
		want int
	}{
		{body: `{"to":"` + alice + `","amount":1000000000}`, want: http.StatusOK},
		{body: `{"to":"` + alice + `","amount":9000000000}`, want: http.StatusUnprocessableEntity},
		{body: `{"to":"nope","amount":1}`, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(fiber.MethodPost, "/airdrop", strings.NewReader(tc.body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.body, tc.want, resp.StatusCode)
		}
	}
}

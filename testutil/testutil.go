// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/astro-strike/auth"
	"github.com/danielhkuo/astro-strike/ciphertext"
	"github.com/danielhkuo/astro-strike/db"
	"github.com/danielhkuo/astro-strike/engine"
	"github.com/danielhkuo/astro-strike/fhe"
	"github.com/danielhkuo/astro-strike/models"
	"github.com/danielhkuo/astro-strike/oracle"
	"github.com/danielhkuo/astro-strike/payout"
	"github.com/danielhkuo/astro-strike/proof"
	"github.com/danielhkuo/astro-strike/registry"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	_ "modernc.org/sqlite"
)

// Epoch is the fake clock's starting instant.
var Epoch = time.Unix(1_800_000_000, 0).UTC()

// SetupTestDB opens a fresh in-memory SQLite database with the full schema.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(db.TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

var (
	keysOnce  sync.Once
	sharedKey *fhe.PrivateKey
	sharedSig *ecdsa.PrivateKey
	keysErr   error
)

// Coprocessor returns a fresh in-process coprocessor. The BFV and
// signing keys are generated once per test binary.
func Coprocessor(t *testing.T) *fhe.Local {
	t.Helper()
	keysOnce.Do(func() {
		sharedKey, keysErr = fhe.GenerateKey()
		if keysErr != nil {
			return
		}
		sharedSig, keysErr = gethcrypto.GenerateKey()
	})
	if keysErr != nil {
		t.Fatalf("Failed to generate coprocessor keys: %v", keysErr)
	}
	return fhe.NewLocal(sharedKey, sharedSig)
}

// CoprocessorSigner is the key every Coprocessor signs proofs and callbacks
// with, for tests that need to forge a correctly signed but bogus message.
func CoprocessorSigner(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	Coprocessor(t)
	return sharedSig
}

// NewAccount returns a fresh secp256k1 key.
func NewAccount(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := gethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("Failed to generate account: %v", err)
	}
	return key
}

func Address(key *ecdsa.PrivateKey) common.Address {
	return gethcrypto.PubkeyToAddress(key.PublicKey)
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ErrTransferDown is returned by FlakyPayer while it is failing.
var ErrTransferDown = errors.New("transfer backend unavailable")

// FlakyPayer wraps a Payer and fails transfers on demand.
type FlakyPayer struct {
	engine.Payer

	mu    sync.Mutex
	fail  int
	calls int
}

func (f *FlakyPayer) FailNext(n int) {
	f.mu.Lock()
	f.fail = n
	f.mu.Unlock()
}

func (f *FlakyPayer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FlakyPayer) Transfer(ctx context.Context, to common.Address, amount *uint256.Int, memo string) error {
	f.mu.Lock()
	f.calls++
	if f.fail > 0 {
		f.fail--
		f.mu.Unlock()
		return ErrTransferDown
	}
	f.mu.Unlock()
	return f.Payer.Transfer(ctx, to, amount, memo)
}

// TestLimits are the pool limits every Env uses.
func TestLimits() engine.Limits {
	return engine.Limits{
		MinEntryFee: uint256.NewInt(100),
		MinDuration: 5 * time.Minute,
		MaxDuration: 30 * 24 * time.Hour,
		MaxFeeBps:   2000,
	}
}

// Env is a fully wired engine over an in-memory database.
type Env struct {
	DB       *sql.DB
	Registry *registry.Registry
	Coproc   *fhe.Local
	Ledger   *payout.Ledger
	Payer    *FlakyPayer
	Clock    *Clock
	Owner    *ecdsa.PrivateKey
	Engine   *engine.Engine
}

// EnvOption customizes NewEnv.
type EnvOption func(*envConfig)

type envConfig struct {
	wrap func(*fhe.Local) oracle.Coprocessor
}

// WithCoprocessor routes the engine's decryption traffic through wrap(local)
// instead of the local coprocessor itself.
func WithCoprocessor(wrap func(*fhe.Local) oracle.Coprocessor) EnvOption {
	return func(c *envConfig) { c.wrap = wrap }
}

func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	var ec envConfig
	for _, opt := range opts {
		opt(&ec)
	}

	conn := SetupTestDB(t)
	reg := registry.New(conn)
	coproc := Coprocessor(t)

	verifier, err := proof.NewVerifier([]common.Address{coproc.Address()})
	if err != nil {
		t.Fatalf("Failed to build verifier: %v", err)
	}

	ledger := payout.NewLedger(reg)
	payer := &FlakyPayer{Payer: ledger}
	clock := NewClock(Epoch)
	owner := NewAccount(t)

	var upstream oracle.Coprocessor = coproc
	if ec.wrap != nil {
		upstream = ec.wrap(coproc)
	}

	eng := engine.New(engine.Deps{
		Registry: reg,
		Store:    ciphertext.NewStore(coproc.Evaluator()),
		Verifier: verifier,
		Oracle:   oracle.NewAdapter(upstream, coproc.Address()),
		Payer:    payer,
	}, engine.Config{
		Limits:        TestLimits(),
		TreasuryOwner: Address(owner),
	}, engine.WithClock(clock.Now))

	return &Env{
		DB:       conn,
		Registry: reg,
		Coproc:   coproc,
		Ledger:   ledger,
		Payer:    payer,
		Clock:    clock,
		Owner:    owner,
		Engine:   eng,
	}
}

// CreatePool creates a pool open for ten minutes with no protocol fee.
func (e *Env) CreatePool(t *testing.T, creator *ecdsa.PrivateKey, poolID string, entryFee uint64) *models.Pool {
	t.Helper()
	p, err := e.Engine.CreatePool(context.Background(), Address(creator), poolID, uint256.NewInt(entryFee), 10*time.Minute, 0)
	if err != nil {
		t.Fatalf("Failed to create pool %s: %v", poolID, err)
	}
	return p
}

// Enter encrypts weight for participant and enters the pool paying its fee.
func (e *Env) Enter(t *testing.T, participant *ecdsa.PrivateKey, poolID string, choice models.Choice, weight uint64) error {
	t.Helper()
	ct, prf := e.Encrypt(t, participant, poolID, weight)
	p, err := e.Engine.GetPool(context.Background(), poolID)
	if err != nil {
		return err
	}
	_, err = e.Engine.EnterPool(context.Background(), Address(participant), poolID, choice, ct, prf, p.EntryFee)
	return err
}

// MustEnter is Enter that fails the test on error.
func (e *Env) MustEnter(t *testing.T, participant *ecdsa.PrivateKey, poolID string, choice models.Choice, weight uint64) {
	t.Helper()
	if err := e.Enter(t, participant, poolID, choice, weight); err != nil {
		t.Fatalf("Failed to enter pool %s: %v", poolID, err)
	}
}

func (e *Env) Encrypt(t *testing.T, participant *ecdsa.PrivateKey, poolID string, weight uint64) (ciphertext.Ciphertext, []byte) {
	t.Helper()
	ct, prf, err := e.Coproc.EncryptWeight(poolID, Address(participant), weight)
	if err != nil {
		t.Fatalf("Failed to encrypt weight: %v", err)
	}
	return ct, prf
}

// Lock advances the clock past every pool's lock time.
func (e *Env) Lock() {
	e.Clock.Advance(time.Hour)
}

// Settle runs the full settlement round-trip for poolID.
func (e *Env) Settle(t *testing.T, poolID string) *models.Pool {
	t.Helper()
	ctx := context.Background()

	req, err := e.Engine.Settle(ctx, poolID)
	if err != nil {
		t.Fatalf("Failed to settle %s: %v", poolID, err)
	}
	if req != nil {
		cb, err := e.Coproc.Fulfil(req.Token)
		if err != nil {
			t.Fatalf("Coprocessor failed to fulfil %s: %v", req.Token, err)
		}
		if _, err := e.Engine.DeliverSettlement(ctx, cb.Token, cb.Sums, cb.Signature); err != nil {
			t.Fatalf("Failed to deliver settlement for %s: %v", poolID, err)
		}
	}

	p, err := e.Engine.GetPool(ctx, poolID)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// Balance returns what the ledger has credited to key's account.
func (e *Env) Balance(t *testing.T, key *ecdsa.PrivateKey) *uint256.Int {
	t.Helper()
	b, err := e.Ledger.Balance(context.Background(), Address(key))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// SignedRequest is MakeRequest signed by key at now.
func SignedRequest(t *testing.T, key *ecdsa.PrivateKey, now time.Time, method, path string, body any) *http.Request {
	t.Helper()
	req := MakeRequest(method, path, body, nil)
	if err := auth.SignRequest(req, key, now); err != nil {
		t.Fatalf("Failed to sign request: %v", err)
	}
	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

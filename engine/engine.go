// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/astro-strike/ciphertext"
	"github.com/danielhkuo/astro-strike/db"
	"github.com/danielhkuo/astro-strike/models"
	"github.com/danielhkuo/astro-strike/oracle"
	"github.com/danielhkuo/astro-strike/proof"
	"github.com/danielhkuo/astro-strike/registry"
	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Payer moves funds out of the engine's custody.
type Payer interface {
	Transfer(ctx context.Context, to common.Address, amount *uint256.Int, memo string) error
}

// Limits bound the parameters of a new pool.
type Limits struct {
	MinEntryFee *uint256.Int
	MinDuration time.Duration
	MaxDuration time.Duration
	MaxFeeBps   uint16
}

type Config struct {
	Limits
	// TreasuryOwner is the only account allowed to withdraw the treasury.
	TreasuryOwner common.Address
}

// Deps are the collaborators the engine orchestrates.
type Deps struct {
	Registry *registry.Registry
	Store    *ciphertext.Store
	Verifier *proof.Verifier
	Oracle   *oracle.Adapter
	Payer    Payer
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs the pool lifecycle. Mutations on one pool are serialized by a
// per-pool mutex; different pools never contend. Any transaction touching
// the treasury also takes treasuryMu, inside the transaction and after the
// pool lock, and drops it once the transaction ends.
type Engine struct {
	reg      *registry.Registry
	store    *ciphertext.Store
	verifier *proof.Verifier
	oracle   *oracle.Adapter
	payer    Payer
	cfg      Config
	now      func() time.Time

	mu    sync.Mutex
	pools map[string]*poolLock

	treasuryMu sync.Mutex
}

func New(deps Deps, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		reg:      deps.Registry,
		store:    deps.Store,
		verifier: deps.Verifier,
		oracle:   deps.Oracle,
		payer:    deps.Payer,
		cfg:      cfg,
		now:      time.Now,
		pools:    make(map[string]*poolLock),
	}
	if e.cfg.MinEntryFee == nil {
		e.cfg.MinEntryFee = new(uint256.Int)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine's clock reading, truncated to whole seconds.
func (e *Engine) Now() time.Time {
	return e.now().UTC().Truncate(time.Second)
}

// poolLock is dropped from the map once no caller holds or awaits it.
type poolLock struct {
	sync.Mutex
	refs int
}

// lock acquires the mutex of poolID and returns its release.
func (e *Engine) lock(poolID string) func() {
	e.mu.Lock()
	l, ok := e.pools[poolID]
	if !ok {
		l = &poolLock{}
		e.pools[poolID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.pools, poolID)
		}
		e.mu.Unlock()
	}
}

// checkPoolID rejects ids that name no pool before a lock is taken for them.
func (e *Engine) checkPoolID(ctx context.Context, poolID string) error {
	if !poolIDPattern.MatchString(poolID) {
		return fail(ErrNotFound, "pool %q", poolID)
	}
	ok, err := registry.PoolExists(ctx, e.reg.DB(), poolID)
	if err != nil {
		return err
	}
	if !ok {
		return fail(ErrNotFound, "pool %q", poolID)
	}
	return nil
}

// treasuryLock is taken inside a transaction only when it touches the
// treasury, and held until the transaction has committed.
type treasuryLock struct {
	mu   *sync.Mutex
	held bool
}

func (e *Engine) treasury() *treasuryLock {
	return &treasuryLock{mu: &e.treasuryMu}
}

func (t *treasuryLock) acquire() {
	if !t.held {
		t.mu.Lock()
		t.held = true
	}
}

func (t *treasuryLock) release() {
	if t.held {
		t.mu.Unlock()
		t.held = false
	}
}

// Queries

// ListPools returns every pool id in creation order.
func (e *Engine) ListPools(ctx context.Context) ([]string, error) {
	return registry.ListPoolIDs(ctx, e.reg.DB())
}

func (e *Engine) GetPool(ctx context.Context, poolID string) (*models.Pool, error) {
	return loadPool(ctx, e.reg.DB(), poolID)
}

func (e *Engine) GetPickCounts(ctx context.Context, poolID string) ([models.NumChoices]uint64, error) {
	p, err := e.GetPool(ctx, poolID)
	if err != nil {
		return [models.NumChoices]uint64{}, err
	}
	return p.PickCounts, nil
}

func (e *Engine) GetPlayerCount(ctx context.Context, poolID string) (uint64, error) {
	p, err := e.GetPool(ctx, poolID)
	if err != nil {
		return 0, err
	}
	return p.PlayerCount, nil
}

// GetEntry returns the participant's entry. A participant who never entered
// gets an entry with Exists false; an unknown pool is ErrNotFound.
func (e *Engine) GetEntry(ctx context.Context, poolID string, participant common.Address) (*models.Entry, error) {
	q := e.reg.DB()
	if _, err := loadPool(ctx, q, poolID); err != nil {
		return nil, err
	}
	entry, err := registry.GetEntry(ctx, q, poolID, participant)
	if errors.Is(err, registry.ErrEntryNotFound) {
		return &models.Entry{PoolID: poolID, Participant: participant}, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Events returns the pool's event log in emission order.
func (e *Engine) Events(ctx context.Context, poolID string) ([]models.Event, error) {
	q := e.reg.DB()
	if _, err := loadPool(ctx, q, poolID); err != nil {
		return nil, err
	}
	return registry.Events(ctx, q, poolID)
}

// TreasuryBalance returns the accrued fees and rounding remainders.
func (e *Engine) TreasuryBalance(ctx context.Context) (*uint256.Int, error) {
	return registry.TreasuryBalance(ctx, e.reg.DB())
}

func loadPool(ctx context.Context, q db.DBTX, poolID string) (*models.Pool, error) {
	p, err := registry.GetPool(ctx, q, poolID)
	if errors.Is(err, registry.ErrPoolNotFound) {
		return nil, fail(ErrNotFound, "pool %q", poolID)
	}
	return p, err
}

func loadEntry(ctx context.Context, q db.DBTX, poolID string, participant common.Address) (*models.Entry, error) {
	entry, err := registry.GetEntry(ctx, q, poolID, participant)
	if errors.Is(err, registry.ErrEntryNotFound) {
		return nil, fail(ErrNotFound, "no entry for %s in pool %q", participant.Hex(), poolID)
	}
	return entry, err
}

func (e *Engine) emit(ctx context.Context, q db.DBTX, ev models.Event) error {
	ev.At = e.Now()
	return registry.AppendEvent(ctx, q, &ev)
}

func amount(v *uint256.Int) string {
	return humanize.BigComma(v.ToBig())
}

func logPool(msg string, p *models.Pool, args ...any) {
	slog.Info(msg, append([]any{"pool_id", p.ID}, args...)...)
}

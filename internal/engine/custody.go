package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Ledger tracks native-currency balances for all identities plus the engine's
// own escrow account. It is the shared pool for every native-asset job; the
// amount released for a job is always read from the Job record, never derived
// from this pool.
type Ledger struct {
	mu       sync.RWMutex
	balances map[Identity]uint64
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[Identity]uint64)}
}

// Deposit credits amount to id's balance.
func (l *Ledger) Deposit(id Identity, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[id] += amount
}

// Balance returns id's current balance.
func (l *Ledger) Balance(id Identity) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[id]
}

// Transfer moves amount from one account to another. It fails without any
// mutation if the source balance is insufficient.
func (l *Ledger) Transfer(from, to Identity, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return fmt.Errorf("insufficient balance for %q: have %d, need %d", from, l.balances[from], amount)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

// TokenBackend is the adapter for a fungible-token contract. Both calls must
// report failure explicitly; the engine aborts the whole transition on any
// error, persisting nothing.
type TokenBackend interface {
	// TransferFrom issues a delegated transfer from a payer to the engine.
	TransferFrom(ctx context.Context, from, to Identity, amount uint64) error

	// Transfer moves tokens held by the engine to a destination.
	Transfer(ctx context.Context, to Identity, amount uint64) error
}

// Custody locks a job's value at creation and releases it to exactly one
// destination at a terminal transition.
type Custody struct {
	ledger  *Ledger
	account Identity // the engine's own escrow account on the native ledger
	logger  *slog.Logger

	mu     sync.RWMutex
	tokens map[string]TokenBackend
}

// NewCustody builds a custody module over the given native ledger. account is
// the identity under which escrowed native value is held.
func NewCustody(ledger *Ledger, account Identity, logger *slog.Logger) *Custody {
	return &Custody{
		ledger:  ledger,
		account: account,
		logger:  logger,
		tokens:  make(map[string]TokenBackend),
	}
}

// RegisterToken binds a token reference to its backend. Jobs denominated in
// an unregistered token fail at lock time.
func (c *Custody) RegisterToken(ref string, backend TokenBackend) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[ref] = backend
}

// Ledger exposes the native ledger for deposit/balance surfaces.
func (c *Custody) Ledger() *Ledger {
	return c.ledger
}

func (c *Custody) backend(ref string) (TokenBackend, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.tokens[ref]
	if !ok {
		return nil, fmt.Errorf("no backend registered for token %q", ref)
	}
	return b, nil
}

// Lock takes custody of amount from payer. For native assets the attached
// value must equal amount exactly; for tokens a delegated transfer is issued
// to the engine's account.
func (c *Custody) Lock(ctx context.Context, asset Asset, amount uint64, payer Identity, attached uint64) error {
	switch asset.Kind {
	case AssetNative:
		if attached != amount {
			return fmt.Errorf("%w: attached value %d must equal amount %d", ErrValidation, attached, amount)
		}
		if err := c.ledger.Transfer(payer, c.account, amount); err != nil {
			return NewTransferError("lock", err)
		}
	case AssetToken:
		backend, err := c.backend(asset.Token)
		if err != nil {
			return NewTransferError("lock", err)
		}
		if err := backend.TransferFrom(ctx, payer, c.account, amount); err != nil {
			return NewTransferError("lock", err)
		}
	default:
		return fmt.Errorf("%w: unknown asset kind %q", ErrValidation, asset.Kind)
	}

	c.logger.Debug("Funds locked",
		slog.String("asset", string(asset.Kind)),
		slog.Uint64("amount", amount),
		slog.String("payer", string(payer)),
	)
	return nil
}

// Release pays amount out to destination. Amount comes from the Job record,
// never from the engine's aggregate balance.
func (c *Custody) Release(ctx context.Context, asset Asset, amount uint64, destination Identity) error {
	switch asset.Kind {
	case AssetNative:
		if err := c.ledger.Transfer(c.account, destination, amount); err != nil {
			return NewTransferError("release", err)
		}
	case AssetToken:
		backend, err := c.backend(asset.Token)
		if err != nil {
			return NewTransferError("release", err)
		}
		if err := backend.Transfer(ctx, destination, amount); err != nil {
			return NewTransferError("release", err)
		}
	default:
		return fmt.Errorf("%w: unknown asset kind %q", ErrValidation, asset.Kind)
	}

	c.logger.Debug("Funds released",
		slog.String("asset", string(asset.Kind)),
		slog.Uint64("amount", amount),
		slog.String("destination", string(destination)),
	)
	return nil
}

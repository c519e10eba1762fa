package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCustody() (*Custody, *Ledger) {
	ledger := NewLedger()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCustody(ledger, "escrow-pool", logger), ledger
}

func TestLedger_Transfer(t *testing.T) {
	ledger := NewLedger()
	ledger.Deposit("alice", 100)

	require.NoError(t, ledger.Transfer("alice", "bob", 60))
	assert.Equal(t, uint64(40), ledger.Balance("alice"))
	assert.Equal(t, uint64(60), ledger.Balance("bob"))

	// Insufficient balance leaves both sides untouched.
	err := ledger.Transfer("alice", "bob", 41)
	require.Error(t, err)
	assert.Equal(t, uint64(40), ledger.Balance("alice"))
	assert.Equal(t, uint64(60), ledger.Balance("bob"))
}

func TestCustody_NativeLockAndRelease(t *testing.T) {
	custody, ledger := newTestCustody()
	ctx := context.Background()
	ledger.Deposit("alice", 200)

	asset := Asset{Kind: AssetNative}

	// Attached value must match the amount exactly.
	err := custody.Lock(ctx, asset, 100, "alice", 99)
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, custody.Lock(ctx, asset, 100, "alice", 100))
	assert.Equal(t, uint64(100), ledger.Balance("alice"))
	assert.Equal(t, uint64(100), ledger.Balance("escrow-pool"))

	require.NoError(t, custody.Release(ctx, asset, 100, "bob"))
	assert.Equal(t, uint64(100), ledger.Balance("bob"))
	assert.Equal(t, uint64(0), ledger.Balance("escrow-pool"))
}

func TestCustody_NativeLockInsufficientBalance(t *testing.T) {
	custody, ledger := newTestCustody()
	ledger.Deposit("alice", 50)

	err := custody.Lock(context.Background(), Asset{Kind: AssetNative}, 100, "alice", 100)
	require.Error(t, err)
	assert.True(t, IsTransferError(err))
	assert.Equal(t, uint64(50), ledger.Balance("alice"))
}

// recordingToken captures the calls the custody module issues.
type recordingToken struct {
	lockCalls    int
	releaseCalls int
	lastFrom     Identity
	lastTo       Identity
	lastAmount   uint64
	err          error
}

func (tk *recordingToken) TransferFrom(_ context.Context, from, to Identity, amount uint64) error {
	tk.lockCalls++
	tk.lastFrom = from
	tk.lastTo = to
	tk.lastAmount = amount
	return tk.err
}

func (tk *recordingToken) Transfer(_ context.Context, to Identity, amount uint64) error {
	tk.releaseCalls++
	tk.lastTo = to
	tk.lastAmount = amount
	return tk.err
}

func TestCustody_TokenLockAndRelease(t *testing.T) {
	custody, _ := newTestCustody()
	ctx := context.Background()

	token := &recordingToken{}
	custody.RegisterToken("GLD", token)

	asset := Asset{Kind: AssetToken, Token: "GLD"}

	require.NoError(t, custody.Lock(ctx, asset, 100, "alice", 0))
	assert.Equal(t, 1, token.lockCalls)
	assert.Equal(t, Identity("alice"), token.lastFrom)
	assert.Equal(t, Identity("escrow-pool"), token.lastTo)
	assert.Equal(t, uint64(100), token.lastAmount)

	require.NoError(t, custody.Release(ctx, asset, 100, "bob"))
	assert.Equal(t, 1, token.releaseCalls)
	assert.Equal(t, Identity("bob"), token.lastTo)
}

func TestCustody_UnregisteredToken(t *testing.T) {
	custody, _ := newTestCustody()
	ctx := context.Background()
	asset := Asset{Kind: AssetToken, Token: "UNKNOWN"}

	err := custody.Lock(ctx, asset, 100, "alice", 0)
	require.Error(t, err)
	assert.True(t, IsTransferError(err))

	err = custody.Release(ctx, asset, 100, "bob")
	require.Error(t, err)
	assert.True(t, IsTransferError(err))
}

func TestCustody_BackendFailureIsWrapped(t *testing.T) {
	custody, _ := newTestCustody()
	ctx := context.Background()

	backendErr := errors.New("contract reverted")
	custody.RegisterToken("GLD", &recordingToken{err: backendErr})
	asset := Asset{Kind: AssetToken, Token: "GLD"}

	err := custody.Lock(ctx, asset, 100, "alice", 0)
	require.Error(t, err)
	assert.True(t, IsTransferError(err))
	assert.ErrorIs(t, err, backendErr)
}

func TestCustody_UnknownAssetKind(t *testing.T) {
	custody, _ := newTestCustody()

	err := custody.Lock(context.Background(), Asset{Kind: "BEADS"}, 100, "alice", 100)
	assert.ErrorIs(t, err, ErrValidation)
}

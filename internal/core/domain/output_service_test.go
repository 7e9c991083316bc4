package domain_test

import (
	"testing"

	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestLockUnlockOutput(t *testing.T) {
	t.Parallel()

	o := domain.Output{Status: domain.OutputStatusUnspent}
	require.False(t, o.IsLocked())

	err := o.Lock("tx1")
	require.NoError(t, err)
	require.True(t, o.IsLocked())
	require.Equal(t, "tx1", o.LockedBy)

	// Locking again for the same transaction is harmless.
	err = o.Lock("tx1")
	require.NoError(t, err)

	o.Unlock("tx2")
	require.True(t, o.IsLocked())

	o.Unlock("tx1")
	require.True(t, o.IsUnspent())
	require.Empty(t, o.LockedBy)
}

func TestFailingLockOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output domain.Output
	}{
		{"locked by other tx", domain.Output{Status: domain.OutputStatusLocked, LockedBy: "tx2"}},
		{"unconfirmed", domain.Output{Status: domain.OutputStatusUnconfirmed}},
		{"spent", domain.Output{Status: domain.OutputStatusSpent}},
		{"cancelled", domain.Output{Status: domain.OutputStatusCancelled}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.output.Lock("tx1")
			require.ErrorIs(t, err, domain.ErrOutputAlreadyLocked)
		})
	}
}

func TestOutputSpendable(t *testing.T) {
	t.Parallel()

	o := domain.Output{Status: domain.OutputStatusUnconfirmed}
	require.False(t, o.IsSpendable(100, 1))

	o.Confirm(95, 1234)
	require.True(t, o.IsUnspent())
	require.Equal(t, uint64(1234), o.MMRIndex)
	require.Equal(t, uint64(6), o.Confirmations(100))
	require.True(t, o.IsSpendable(100, 6))
	require.False(t, o.IsSpendable(100, 10))

	require.NoError(t, o.Lock("tx"))
	require.False(t, o.IsSpendable(100, 1))

	o.Spend()
	require.True(t, o.IsSpent())
	o.Confirm(96, 1234)
	require.True(t, o.IsSpent())
}

func TestCancelOutput(t *testing.T) {
	t.Parallel()

	o := domain.Output{Status: domain.OutputStatusUnconfirmed}
	o.Cancel()
	require.Equal(t, domain.OutputStatusCancelled, o.Status)

	u := domain.Output{Status: domain.OutputStatusUnspent}
	u.Cancel()
	require.Equal(t, domain.OutputStatusUnspent, u.Status)
}

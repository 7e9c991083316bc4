package coinselect

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func coins(values ...uint64) []Coin {
	list := make([]Coin, 0, len(values))
	for i, v := range values {
		list = append(list, Coin{
			Commit: fmt.Sprintf("%066x", i),
			Value:  v,
			Height: uint64(100 + i),
		})
	}
	return list
}

func values(list []Coin) []uint64 {
	v := make([]uint64, 0, len(list))
	for _, c := range list {
		v = append(v, c.Value)
	}
	return v
}

var unitFee = Opts{BaseFee: 1}

func TestFee(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(8), Fee(1, 2, 1, 1))
	require.Equal(t, uint64(7), Fee(2, 2, 1, 1))
	require.Equal(t, uint64(1), Fee(20, 1, 1, 1))
	require.Equal(t, uint64(8*DefaultBaseFee), Fee(1, 2, 1, DefaultBaseFee))
	require.Equal(t, uint64(math.MaxUint64), Fee(1, 2, 1, math.MaxUint64))
}

func TestSelect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		coins      []Coin
		amount     uint64
		strategy   Strategy
		wantValues []uint64
		wantFee    uint64
		wantChange uint64
	}{
		{
			name:       "smallest picks the single covering coin",
			coins:      coins(30, 70),
			amount:     50,
			strategy:   Smallest,
			wantValues: []uint64{70},
			wantFee:    8,
			wantChange: 12,
		},
		{
			name:       "use all consolidates",
			coins:      coins(30, 70),
			amount:     50,
			strategy:   UseAll,
			wantValues: []uint64{30, 70},
			wantFee:    7,
			wantChange: 43,
		},
		{
			name:       "smallest prefers fewer inputs over smaller total",
			coins:      coins(10, 10, 10, 10, 200),
			amount:     30,
			strategy:   Smallest,
			wantValues: []uint64{200},
			wantFee:    8,
			wantChange: 162,
		},
		{
			name:       "smallest picks the smallest total among equal counts",
			coins:      coins(5, 90, 80),
			amount:     70,
			strategy:   Smallest,
			wantValues: []uint64{80},
			wantFee:    8,
			wantChange: 2,
		},
		{
			name:       "smallest combines when no single coin covers",
			coins:      coins(20, 40, 41, 45),
			amount:     70,
			strategy:   Smallest,
			wantValues: []uint64{40, 41},
			wantFee:    7,
			wantChange: 4,
		},
		{
			name:       "exact amount needs no change",
			coins:      coins(54),
			amount:     50,
			strategy:   Smallest,
			wantValues: []uint64{54},
			wantFee:    4,
			wantChange: 0,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := Select(tt.amount, tt.strategy, tt.coins, unitFee)
			require.NoError(t, err)
			require.Equal(t, tt.wantValues, values(res.Coins))
			require.Equal(t, tt.wantFee, res.Fee)
			require.Equal(t, tt.wantChange, res.Change)
			require.Equal(t, res.Total, tt.amount+res.Fee+res.Change)
			require.Equal(t, tt.strategy, res.Strategy)
		})
	}
}

func TestSelectTieBreak(t *testing.T) {
	t.Parallel()

	list := []Coin{
		{Commit: "bb", Value: 70, Height: 5},
		{Commit: "aa", Value: 70, Height: 5},
		{Commit: "cc", Value: 70, Height: 3},
	}
	res, err := Select(50, Smallest, list, unitFee)
	require.NoError(t, err)
	require.Equal(t, "cc", res.Coins[0].Commit)

	res, err = Select(50, Smallest, list[:2], unitFee)
	require.NoError(t, err)
	require.Equal(t, "aa", res.Coins[0].Commit)
}

func TestSelectMaxInputs(t *testing.T) {
	t.Parallel()

	opts := Opts{BaseFee: 1, MaxInputs: 2}
	res, err := Select(100, UseAll, coins(1, 2, 60, 60), opts)
	require.NoError(t, err)
	require.Equal(t, []uint64{60, 60}, values(res.Coins))

	_, err = Select(150, Smallest, coins(60, 60, 60), opts)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestFailingSelect(t *testing.T) {
	t.Parallel()

	_, err := Select(0, Smallest, coins(10), unitFee)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Select(10, Strategy(9), coins(10), unitFee)
	require.ErrorIs(t, err, ErrUnknownStrategy)

	for _, strategy := range Strategies {
		_, err = Select(100, strategy, coins(30, 70), unitFee)
		require.ErrorIs(t, err, ErrInsufficientFunds)

		var insufficient *InsufficientFundsError
		require.True(t, errors.As(err, &insufficient))
		require.Equal(t, uint64(100), insufficient.Available)
		require.Equal(t, uint64(107), insufficient.Needed)
		require.Equal(t, uint64(7), insufficient.Shortfall())
	}

	_, err = Select(10, Smallest, nil, unitFee)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSelectAmountOverflow(t *testing.T) {
	t.Parallel()

	opts := Opts{BaseFee: DefaultBaseFee}
	tests := []struct {
		name   string
		amount uint64
		coins  []Coin
	}{
		{"amount plus fee wraps", math.MaxUint64 - 10, coins(5_000_000)},
		{"amount plus fee wraps with small coin", math.MaxUint64 - 10, coins(2_000_000)},
		{"max amount", math.MaxUint64, coins(30, 70)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			for _, strategy := range Strategies {
				res, err := Select(tt.amount, strategy, tt.coins, opts)
				require.ErrorIs(t, err, ErrInsufficientFunds, strategy.String())
				require.Zero(t, res.Change)

				var insufficient *InsufficientFundsError
				require.True(t, errors.As(err, &insufficient))
				require.Equal(t, uint64(math.MaxUint64), insufficient.Needed)
				require.Equal(t, sumValues(tt.coins), insufficient.Available)
				require.Equal(t, math.MaxUint64-sumValues(tt.coins), insufficient.Shortfall())
			}
		})
	}

	t.Run("largest amount a coin can fund", func(t *testing.T) {
		t.Parallel()

		res, err := Select(math.MaxUint64-9, Smallest, coins(math.MaxUint64), unitFee)
		require.NoError(t, err)
		require.Equal(t, uint64(8), res.Fee)
		require.Equal(t, uint64(1), res.Change)

		res, err = Select(math.MaxUint64-4, Smallest, coins(math.MaxUint64), unitFee)
		require.NoError(t, err)
		require.Equal(t, uint64(4), res.Fee)
		require.Zero(t, res.Change)
	})
}

func TestPreview(t *testing.T) {
	t.Parallel()

	results, err := Preview(50, coins(30, 70), unitFee)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, Smallest, results[0].Strategy)
	require.Equal(t, uint64(8), results[0].Fee)
	require.Equal(t, UseAll, results[1].Strategy)
	require.Equal(t, uint64(7), results[1].Fee)

	_, err = Preview(500, coins(30, 70), unitFee)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	for _, s := range Strategies {
		parsed, err := ParseStrategy(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}
	_, err := ParseStrategy("largest")
	require.ErrorIs(t, err, ErrUnknownStrategy)
}

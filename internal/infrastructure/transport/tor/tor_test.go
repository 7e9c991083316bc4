package tor_test

import (
	"testing"

	"github.com/ironbelly/walletd/internal/infrastructure/transport/tor"
	"github.com/stretchr/testify/require"
)

func TestIsOnion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host     string
		expected bool
	}{
		{"2gzyxa5ihm7nsggfxnu52rck2vv4rvmdlkiu3zzui5du4xyclen53wid.onion", true},
		{"2gzyxa5ihm7nsggfxnu52rck2vv4rvmdlkiu3zzui5du4xyclen53wid.ONION:80", true},
		{"example.com", false},
		{"127.0.0.1:3415", false},
		{"onion.example.com", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, tor.IsOnion(tt.host), tt.host)
	}
}

func TestNewDialer(t *testing.T) {
	t.Parallel()

	_, err := tor.NewDialer("")
	require.ErrorIs(t, err, tor.ErrMissingSocksAddr)

	dial, err := tor.NewDialer("127.0.0.1:9050")
	require.NoError(t, err)
	require.NotNil(t, dial)
}

func TestNewOnionService(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts tor.OnionOpts
		err  error
	}{
		{
			name: "missing control address",
			opts: tor.OnionOpts{KeyPath: "onion.key"},
			err:  tor.ErrMissingControlAddr,
		},
		{
			name: "missing key path",
			opts: tor.OnionOpts{ControlAddr: "127.0.0.1:9051"},
			err:  tor.ErrMissingKeyPath,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tor.NewOnionService(tt.opts)
			require.ErrorIs(t, err, tt.err)
		})
	}

	svc, err := tor.NewOnionService(tor.OnionOpts{
		ControlAddr: "127.0.0.1:9051",
		KeyPath:     t.TempDir() + "/onion.key",
	})
	require.NoError(t, err)
	// Nothing published yet.
	require.NoError(t, svc.Close())
}

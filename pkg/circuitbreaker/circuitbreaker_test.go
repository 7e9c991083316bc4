package circuitbreaker_test

import (
	"errors"
	"testing"

	"github.com/ironbelly/walletd/pkg/circuitbreaker"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

var errFailure = errors.New("failure")

func TestCircuitBreakerTrips(t *testing.T) {
	t.Parallel()

	cb := circuitbreaker.NewCircuitBreaker("test")
	for i := 0; i <= circuitbreaker.MaxNumOfFailingRequests; i++ {
		_, err := cb.Execute(func() (interface{}, error) {
			return nil, errFailure
		})
		require.ErrorIs(t, err, errFailure)
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Execute(func() (interface{}, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestCircuitBreakerStaysClosed(t *testing.T) {
	t.Parallel()

	cb := circuitbreaker.NewCircuitBreaker("test")
	for i := 0; i < 3*circuitbreaker.MaxNumOfFailingRequests; i++ {
		// One failure out of two keeps the ratio below the threshold.
		_, _ = cb.Execute(func() (interface{}, error) {
			if i%2 == 0 {
				return nil, errFailure
			}
			return "ok", nil
		})
	}
	require.Equal(t, gobreaker.StateClosed, cb.State())
}

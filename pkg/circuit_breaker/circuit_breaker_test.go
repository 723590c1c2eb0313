package circuit_breaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Astemirdum/library-circulation/pkg/circuit_breaker"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time { return c.t }

func Test_circuitBreaker_Call(t *testing.T) {
	errBroker := errors.New("broker down")
	ok := func() error { return nil }
	fail := func() error { return errBroker }

	clock := &manualClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := circuit_breaker.New(10, time.Second, 0.3, 2, circuit_breaker.WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		require.NoError(t, cb.Call(ok))
	}
	require.Equal(t, circuit_breaker.Closed, cb.State())

	// two failures out of ten stay under the 30% threshold
	require.ErrorIs(t, cb.Call(fail), errBroker)
	require.ErrorIs(t, cb.Call(fail), errBroker)
	require.Equal(t, circuit_breaker.Closed, cb.State())

	require.ErrorIs(t, cb.Call(fail), errBroker)
	require.Equal(t, circuit_breaker.Open, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	require.ErrorIs(t, err, circuit_breaker.ErrOpenCB)
	require.False(t, called)

	clock.t = clock.t.Add(2 * time.Second)
	require.NoError(t, cb.Call(ok))
	require.Equal(t, circuit_breaker.HalfOpen, cb.State())

	// a failure while half-open trips it again
	require.ErrorIs(t, cb.Call(fail), errBroker)
	require.Equal(t, circuit_breaker.Open, cb.State())

	clock.t = clock.t.Add(2 * time.Second)
	require.NoError(t, cb.Call(ok))
	require.NoError(t, cb.Call(ok))
	require.Equal(t, circuit_breaker.Closed, cb.State())
}

func Test_circuitBreaker_Reset(t *testing.T) {
	cb := circuit_breaker.New(2, time.Hour, 0.5, 1)
	require.Error(t, cb.Call(func() error { return errors.New("x") }))
	require.Equal(t, circuit_breaker.Open, cb.State())

	cb.Reset()
	require.Equal(t, circuit_breaker.Closed, cb.State())
	require.NoError(t, cb.Call(func() error { return nil }))
}

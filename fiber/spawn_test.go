//go:build linux && amd64

// File: fiber/spawn_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/fiber"
)

func TestJoinReturnsChildOutput(t *testing.T) {
	_, err := run(t, func() (struct{}, error) {
		h, err := fiber.Spawn(func() (int, error) { return 123, nil })
		require.NoError(t, err)
		out, err := h.Join()
		require.NoError(t, err)
		require.Equal(t, 123, out)
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

func TestJoinNonChild(t *testing.T) {
	_, err := run(t, func() (struct{}, error) {
		other, err := fiber.Spawn(func() (int, error) { return 123, nil })
		require.NoError(t, err)
		h, err := fiber.Spawn(func() (int, error) { return other.Join() })
		require.NoError(t, err)
		out, err := h.Join()
		require.NoError(t, err)
		require.Equal(t, 123, out)
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

func TestJoinAlreadyCompleted(t *testing.T) {
	_, err := run(t, func() (struct{}, error) {
		h, err := fiber.Spawn(func() (int, error) { return 7, nil })
		require.NoError(t, err)
		require.NoError(t, fiber.Yield()) // let the child run to completion
		out, err := h.Join()
		require.NoError(t, err)
		require.Equal(t, 7, out)
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

func TestJoinDeliversPanic(t *testing.T) {
	_, err := run(t, func() (struct{}, error) {
		h, err := fiber.Spawn(func() (int, error) { panic("boom") })
		require.NoError(t, err)
		_, joinErr := h.Join()
		var pe *api.PanicError
		require.ErrorAs(t, joinErr, &pe)
		require.Equal(t, "boom", pe.Value)
		// A joined panic does not cancel the parent.
		require.False(t, fiber.IsCancelled())
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

func TestDoubleJoinPanics(t *testing.T) {
	_, err := run(t, func() (struct{}, error) {
		h, err := fiber.Spawn(func() (int, error) { return 1, nil })
		require.NoError(t, err)
		_, err = h.Join()
		require.NoError(t, err)
		require.Panics(t, func() { _, _ = h.Join() })
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

func TestSecondJoinerPanics(t *testing.T) {
	_, err := run(t, func() (struct{}, error) {
		slow, err := fiber.Spawn(func() (int, error) {
			return 0, fiber.Sleep(50 * time.Millisecond)
		})
		require.NoError(t, err)

		first, err := fiber.Spawn(func() (int, error) { return slow.Join() })
		require.NoError(t, err)
		require.NoError(t, fiber.Yield()) // first joiner parks

		require.Panics(t, func() { _, _ = slow.Join() })

		slow.Cancel()
		_, _ = first.Join()
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

// A detached child keeps its parent at scope exit until it finishes.
func TestScopeWaitsForDetachedChild(t *testing.T) {
	start := time.Now()
	_, err := run(t, func() (struct{}, error) {
		_, err := fiber.Spawn(func() (struct{}, error) {
			// Implicitly cancelled at parent exit; the sleep returns early
			// with ErrCancelled, but only after the parent reached its
			// scope exit.
			err := fiber.Sleep(5 * time.Millisecond)
			return struct{}{}, err
		})
		return struct{}{}, err
	})
	require.NoError(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
}

// An unjoined panic surfaces through the parent at scope exit: here all
// the way out of Run.
func TestDetachedPanicPropagates(t *testing.T) {
	_, err := run(t, func() (struct{}, error) {
		_, err := fiber.Spawn(func() (int, error) { panic("detached boom") })
		require.NoError(t, err)
		require.NoError(t, fiber.Yield()) // child runs and panics
		return struct{}{}, nil
	})
	var pe *api.PanicError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "detached boom", pe.Value)
}

// Children finish strictly before their ancestors, transitively.
func TestFinishOrderBottomUp(t *testing.T) {
	var order []string
	_, err := run(t, func() (struct{}, error) {
		f1, err := fiber.Spawn(func() (struct{}, error) {
			f2, err := fiber.Spawn(func() (struct{}, error) {
				err := fiber.Sleep(time.Millisecond)
				order = append(order, "f2")
				return struct{}{}, err
			})
			if err != nil {
				return struct{}{}, err
			}
			_, err = f2.Join()
			order = append(order, "f1")
			return struct{}{}, err
		})
		require.NoError(t, err)
		_, err = f1.Join()
		order = append(order, "root")
		return struct{}{}, err
	})
	require.NoError(t, err)
	require.Equal(t, []string{"f2", "f1", "root"}, order)
}

func TestSpawnOrderIsFIFO(t *testing.T) {
	var order []int
	_, err := run(t, func() (struct{}, error) {
		for i := 0; i < 5; i++ {
			_, err := fiber.Spawn(func() (struct{}, error) {
				order = append(order, i)
				return struct{}{}, nil
			})
			require.NoError(t, err)
		}
		require.NoError(t, fiber.Yield())
		return struct{}{}, nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestSpawnErrorSurfaces(t *testing.T) {
	_, err := run(t, func() (struct{}, error) {
		h, err := fiber.Spawn(func() (int, error) {
			return 0, errors.New("worker failed")
		})
		require.NoError(t, err)
		_, joinErr := h.Join()
		require.EqualError(t, joinErr, "worker failed")
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

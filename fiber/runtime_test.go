//go:build linux && amd64

// File: fiber/runtime_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber_test

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/fiber"
)

// run wraps fiber.Run, skipping the test where io_uring is unavailable
// (sandboxed CI kernels).
func run[T any](t *testing.T, fn func() (T, error), opts ...fiber.Option) (T, error) {
	t.Helper()
	v, err := fiber.Run(fn, opts...)
	if err != nil && strings.Contains(err.Error(), "io_uring_setup") {
		t.Skipf("io_uring unavailable: %v", err)
	}
	return v, err
}

func TestRunReturnsOutput(t *testing.T) {
	out, err := run(t, func() (int, error) { return 123, nil })
	require.NoError(t, err)
	require.Equal(t, 123, out)
}

func TestRunReturnsError(t *testing.T) {
	want := errors.New("boom")
	_, err := run(t, func() (int, error) { return 0, want })
	require.ErrorIs(t, err, want)
}

func TestRunCatchesPanic(t *testing.T) {
	_, err := run(t, func() (int, error) { panic("boom") })
	var pe *api.PanicError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "boom", pe.Value)
}

func TestRunCannotNest(t *testing.T) {
	_, err := run(t, func() (int, error) {
		require.PanicsWithValue(t, api.ErrRuntimeActive, func() {
			_, _ = fiber.Run(func() (int, error) { return 0, nil })
		})
		return 0, nil
	})
	require.NoError(t, err)
}

func TestRunWorksSeveralTimes(t *testing.T) {
	for i := 0; i < 3; i++ {
		out, err := run(t, func() (int, error) { return i, nil })
		require.NoError(t, err)
		require.Equal(t, i, out)
	}
}

func TestRunWorksInParallel(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := fiber.Run(func() (int, error) {
				if err := fiber.Sleep(time.Millisecond); err != nil {
					return 0, err
				}
				return i, nil
			})
			if err != nil && strings.Contains(err.Error(), "io_uring_setup") {
				return
			}
			if err != nil || out != i {
				t.Errorf("instance %d: out=%d err=%v", i, out, err)
			}
		}()
	}
	wg.Wait()
}

func TestCurrentIdentifiesFibers(t *testing.T) {
	_, err := run(t, func() (struct{}, error) {
		root := fiber.Current()
		require.False(t, root.Zero())

		h, err := fiber.Spawn(func() (api.FiberID, error) {
			return fiber.Current(), nil
		})
		require.NoError(t, err)
		child, err := h.Join()
		require.NoError(t, err)
		require.NotEqual(t, root, child)
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

func TestStatsAccounting(t *testing.T) {
	_, err := run(t, func() (struct{}, error) {
		before := fiber.Stats()
		for i := 0; i < 10; i++ {
			h, err := fiber.Spawn(func() (struct{}, error) {
				return struct{}{}, fiber.Yield()
			})
			require.NoError(t, err)
			_, err = h.Join()
			require.NoError(t, err)
		}
		after := fiber.Stats()
		require.Equal(t, before.FibersSpawned+10, after.FibersSpawned)
		require.Equal(t, 1, after.FibersLive, "only the root should remain")
		require.Equal(t, after.StacksLive, 1, "joined children must return stacks")
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

// Spawning N fibers that immediately yield and exit leaks no stacks: pool
// accounting must balance once everything is joined.
func TestNoStackLeaks(t *testing.T) {
	const n = 500
	_, err := run(t, func() (struct{}, error) {
		handles := make([]*fiber.Handle[struct{}], 0, n)
		for i := 0; i < n; i++ {
			h, err := fiber.Spawn(func() (struct{}, error) {
				return struct{}{}, fiber.Yield()
			})
			if err != nil {
				return struct{}{}, err
			}
			handles = append(handles, h)
		}
		for _, h := range handles {
			if _, err := h.Join(); err != nil {
				return struct{}{}, err
			}
		}
		st := fiber.Stats()
		require.Equal(t, 1, st.StacksLive)
		require.Equal(t, 1, st.FibersLive)
		return struct{}{}, nil
	}, fiber.WithStackSize(32<<10))
	require.NoError(t, err)
}

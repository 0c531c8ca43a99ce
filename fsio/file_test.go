//go:build linux && amd64

// File: fsio/file_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fsio_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/fiber"
	"github.com/momentics/hioload-fiber/fsio"
)

func run[T any](t *testing.T, fn func() (T, error), opts ...fiber.Option) (T, error) {
	t.Helper()
	v, err := fiber.Run(fn, opts...)
	if err != nil && strings.Contains(err.Error(), "io_uring_setup") {
		t.Skipf("io_uring unavailable: %v", err)
	}
	return v, err
}

func TestFileWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.bin")
	_, err := run(t, func() (struct{}, error) {
		f, err := fsio.Create(path)
		require.NoError(t, err)
		require.Equal(t, path, f.Name())

		n, err := f.Write([]byte("written through the ring"))
		require.NoError(t, err)
		require.Equal(t, 24, n)
		require.NoError(t, f.Sync())
		require.NoError(t, f.Close())

		r, err := fsio.Open(path)
		require.NoError(t, err)
		buf := make([]byte, 64)
		n, err = r.Read(buf)
		require.NoError(t, err)
		require.Equal(t, "written through the ring", string(buf[:n]))

		_, err = r.Read(buf)
		require.ErrorIs(t, err, io.EOF)
		require.NoError(t, r.Close())
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

func TestReadAtOffsets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	_, err := run(t, func() (struct{}, error) {
		f, err := fsio.Open(path)
		require.NoError(t, err)
		defer f.Close()

		buf := make([]byte, 4)
		n, err := f.ReadAt(buf, 3)
		require.NoError(t, err)
		require.Equal(t, "3456", string(buf[:n]))

		// Write on a read-only descriptor surfaces the errno untouched.
		_, err = f.WriteAt([]byte("XY"), 0)
		var sys *api.SyscallError
		require.ErrorAs(t, err, &sys)
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := run(t, func() (struct{}, error) {
		_, err := fsio.Open("/nonexistent/really/not/here")
		var sys *api.SyscallError
		require.ErrorAs(t, err, &sys)
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

func TestPrintWritesStdout(t *testing.T) {
	_, err := run(t, func() (struct{}, error) {
		return struct{}{}, fsio.Print("fsio: print through the ring\n")
	})
	require.NoError(t, err)
}

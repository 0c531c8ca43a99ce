//go:build linux

// File: reactor/reactor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/uring"
)

// fakeRing is an in-memory Ring: staged SQEs become CQEs on Submit, with
// results scripted per user_data.
type fakeRing struct {
	space   uint32
	staged  []uring.SQE
	pending []uring.SQE
	results map[uint64]int32
	cqes    []uring.CQE
}

func newFakeRing(space uint32) *fakeRing {
	return &fakeRing{space: space, results: map[uint64]int32{}}
}

func (f *fakeRing) NextSQE() *uring.SQE {
	if uint32(len(f.staged)) >= f.space {
		return nil
	}
	f.staged = append(f.staged, uring.SQE{})
	return &f.staged[len(f.staged)-1]
}

func (f *fakeRing) Submit(minComplete uint32) (int, error) {
	n := len(f.staged)
	f.pending = append(f.pending, f.staged...)
	f.staged = f.staged[:0]
	for _, sqe := range f.pending {
		res := f.results[sqe.UserData]
		f.cqes = append(f.cqes, uring.CQE{UserData: sqe.UserData, Res: res})
	}
	f.pending = f.pending[:0]
	return n, nil
}

func (f *fakeRing) DrainCQ(fn func(uring.CQE)) int {
	n := len(f.cqes)
	for _, cqe := range f.cqes {
		fn(cqe)
	}
	f.cqes = f.cqes[:0]
	return n
}

func (f *fakeRing) SQSpace() uint32  { return f.space - uint32(len(f.staged)) }
func (f *fakeRing) Features() uint32 { return uring.FeatFastPoll | uring.FeatExtArg }
func (f *fakeRing) Close() error     { return nil }

func TestCookieRoundTrip(t *testing.T) {
	id := api.FiberID{Slot: 0x00ABCDEF, Gen: 0xDEADBEEF}
	c := MakeCookie(id, api.OpAccept)
	if c.Fiber() != id {
		t.Errorf("fiber = %v, want %v", c.Fiber(), id)
	}
	if c.Kind() != api.OpAccept {
		t.Errorf("kind = %v, want accept", c.Kind())
	}
}

func TestSubmitRoutesCompletion(t *testing.T) {
	ring := newFakeRing(8)
	r, err := NewWithRing(ring)
	require.NoError(t, err)

	fid := api.FiberID{Slot: 1, Gen: 7}
	c, err := r.Submit(fid, api.OpRead, func(sqe *uring.SQE) { sqe.Opcode = uring.OpRead })
	require.NoError(t, err)
	ring.results[uint64(c)] = 128

	var got []Completion
	require.NoError(t, r.WaitAndDrain(func(cc Completion) { got = append(got, cc) }))

	require.Len(t, got, 1)
	require.Equal(t, fid, got[0].Fiber)
	require.Equal(t, api.OpRead, got[0].Kind)
	require.EqualValues(t, 128, got[0].Res)
	require.False(t, got[0].Discarded)
	require.Zero(t, r.WaiterCount())
}

func TestCancelMarksInFlight(t *testing.T) {
	ring := newFakeRing(8)
	r, err := NewWithRing(ring)
	require.NoError(t, err)

	fid := api.FiberID{Slot: 2, Gen: 1}
	c, err := r.Submit(fid, api.OpTimeout, func(sqe *uring.SQE) {})
	require.NoError(t, err)

	r.Cancel(c)
	r.Cancel(c) // idempotent
	require.EqualValues(t, 1, r.Stats().Cancellations)

	// Kernel completed the op successfully anyway; result is discarded.
	ring.results[uint64(c)] = 0
	var got []Completion
	require.NoError(t, r.WaitAndDrain(func(cc Completion) { got = append(got, cc) }))

	require.Len(t, got, 1, "async-cancel CQE itself must be dropped")
	require.True(t, got[0].Discarded)
	require.Zero(t, r.WaiterCount())
}

func TestStaleCookieDropped(t *testing.T) {
	ring := newFakeRing(8)
	r, err := NewWithRing(ring)
	require.NoError(t, err)

	// A completion for a generation that no longer has a waiter entry.
	stale := MakeCookie(api.FiberID{Slot: 3, Gen: 1}, api.OpWrite)
	ring.cqes = append(ring.cqes, uring.CQE{UserData: uint64(stale), Res: 5})

	n := r.Drain(func(Completion) { t.Fatal("stale completion must not route") })
	require.Equal(t, 1, n)
}

func TestEagerFlushWhenFull(t *testing.T) {
	ring := newFakeRing(2)
	r, err := NewWithRing(ring)
	require.NoError(t, err)

	for i := uint32(0); i < 5; i++ {
		_, err := r.Submit(api.FiberID{Slot: i, Gen: 1}, api.OpNop, func(sqe *uring.SQE) {})
		require.NoError(t, err, "submit %d must flush instead of failing", i)
	}
	require.Equal(t, 5, r.WaiterCount())
}

func TestDuplicateCookiePanics(t *testing.T) {
	ring := newFakeRing(8)
	r, err := NewWithRing(ring)
	require.NoError(t, err)

	fid := api.FiberID{Slot: 9, Gen: 2}
	_, err = r.Submit(fid, api.OpRead, func(sqe *uring.SQE) {})
	require.NoError(t, err)

	require.Panics(t, func() {
		_, _ = r.Submit(fid, api.OpRead, func(sqe *uring.SQE) {})
	})
}

func TestLinkedTimeoutStagesPair(t *testing.T) {
	ring := newFakeRing(8)
	r, err := NewWithRing(ring)
	require.NoError(t, err)

	ts := &uring.Timespec{Sec: 1}
	fid := api.FiberID{Slot: 4, Gen: 3}
	c, err := r.SubmitLinkedTimeout(fid, api.OpRead, func(sqe *uring.SQE) { sqe.Opcode = uring.OpRead }, ts)
	require.NoError(t, err)

	require.Len(t, ring.staged, 2)
	require.NotZero(t, ring.staged[0].Flags&uring.SQEIOLink)
	require.Equal(t, uring.OpLinkTimeout, ring.staged[1].Opcode)
	require.Equal(t, uint64(CancelCookie), ring.staged[1].UserData)
	require.Equal(t, uint64(c), ring.staged[0].UserData)
}

package clrt

import (
	"fmt"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/goclrt/cl"
)

// shared owns a native handle and releases it when the last reference is dropped.
type shared[H ~uintptr] struct {
	handle  H
	refs    atomic.Int64
	release func(H) cl.Status
	fnName  string
}

func newShared[H ~uintptr](handle H, fnName string, release func(H) cl.Status) *shared[H] {
	s := &shared[H]{handle: handle, release: release, fnName: fnName}
	s.refs.Store(1)
	return s
}

func (s *shared[H]) acquire() *shared[H] {
	if s.refs.Add(1) <= 1 {
		exceptions.Panicf("clrt: acquiring %#x after it was released by its last holder", uintptr(s.handle))
	}
	return s
}

func (s *shared[H]) drop() error {
	refs := s.refs.Add(-1)
	if refs > 0 {
		return nil
	}
	if refs < 0 {
		exceptions.Panicf("clrt: %#x released more times than acquired", uintptr(s.handle))
	}
	return cl.StatusError(s.fnName, s.release(s.handle))
}

// lease is one holder's reference on a shared handle. Release is effective only once per lease.
type lease[H ~uintptr] struct {
	s        *shared[H]
	released atomic.Bool
}

func (l *lease[H]) handle() H {
	if l.released.Load() {
		exceptions.Panicf("clrt: use of released handle %#x", uintptr(l.s.handle))
	}
	return l.s.handle
}

func (l *lease[H]) isReleased() bool {
	return l.released.Load()
}

func (l *lease[H]) refs() int64 {
	return l.s.refs.Load()
}

func (l *lease[H]) release() error {
	if !l.released.CompareAndSwap(false, true) {
		return nil
	}
	return l.s.drop()
}

// Context is a lease on a platform's reference counted native context.
//
// The Platform and every Device and Program built from it hold their own lease; the native context is released
// when the last lease is released. Call Acquire to keep the context beyond the lifetime of the object it was
// obtained from.
type Context struct {
	l lease[cl.Context]
}

func newContext(api cl.API, handle cl.Context) *Context {
	return &Context{l: lease[cl.Context]{s: newShared(handle, "clReleaseContext", api.ReleaseContext)}}
}

// Acquire returns a new lease on the same native context.
func (c *Context) Acquire() *Context {
	return &Context{l: lease[cl.Context]{s: c.l.s.acquire()}}
}

// Release this lease. It is a no-op if the lease was already released.
func (c *Context) Release() error {
	return c.l.release()
}

// Handle returns the native context. It panics if this lease was released.
func (c *Context) Handle() cl.Context {
	return c.l.handle()
}

func (c *Context) released() bool {
	return c.l.isReleased()
}

// Refs returns the number of live leases on the native context.
func (c *Context) Refs() int64 {
	return c.l.refs()
}

// String implements fmt.Stringer.
func (c *Context) String() string {
	return fmt.Sprintf("Context[%#x, refs=%d]", uintptr(c.l.s.handle), c.Refs())
}

// CommandQueue is a lease on a device's reference counted native command queue, see Context.
type CommandQueue struct {
	l lease[cl.CommandQueue]
}

func newCommandQueue(api cl.API, handle cl.CommandQueue) *CommandQueue {
	return &CommandQueue{l: lease[cl.CommandQueue]{s: newShared(handle, "clReleaseCommandQueue", api.ReleaseCommandQueue)}}
}

// Acquire returns a new lease on the same native command queue.
func (q *CommandQueue) Acquire() *CommandQueue {
	return &CommandQueue{l: lease[cl.CommandQueue]{s: q.l.s.acquire()}}
}

// Release this lease. It is a no-op if the lease was already released.
func (q *CommandQueue) Release() error {
	return q.l.release()
}

// Handle returns the native command queue. It panics if this lease was released.
func (q *CommandQueue) Handle() cl.CommandQueue {
	return q.l.handle()
}

func (q *CommandQueue) released() bool {
	return q.l.isReleased()
}

// Refs returns the number of live leases on the native command queue.
func (q *CommandQueue) Refs() int64 {
	return q.l.refs()
}

// String implements fmt.Stringer.
func (q *CommandQueue) String() string {
	return fmt.Sprintf("CommandQueue[%#x, refs=%d]", uintptr(q.l.s.handle), q.Refs())
}

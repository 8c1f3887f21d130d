// Package handlerreg maps request names to handlers, enforces a maximum
// registered-handler count, and dispatches requests into a uniform result
// that the server maps onto the response envelope.
package handlerreg

import (
	"fmt"
	"sync"

	"github.com/corvidlabs/dgramrpc/internal/rpcerr"
	"github.com/corvidlabs/dgramrpc/pkg/protocol"
)

// Result is the outcome of one handler invocation: either Value is set, or
// Err is, never both.
type Result struct {
	Value interface{}
	Err   *rpcerr.Error
}

// Handler is any function that can service a Request. Sync handlers run on
// the dispatching goroutine; Async wraps a function that reports its
// result on a channel, letting it run detached.
type Handler interface {
	Handle(*protocol.Request) Result
}

// Sync adapts a plain function into a Handler.
type Sync func(*protocol.Request) Result

// Handle implements Handler.
func (h Sync) Handle(r *protocol.Request) Result { return h(r) }

// Async adapts a function that reports its Result asynchronously on the
// channel it is given.
type Async func(*protocol.Request, chan<- Result)

// Handle implements Handler, blocking until the async function reports.
func (h Async) Handle(r *protocol.Request) Result {
	ch := make(chan Result, 1)
	go h(r, ch)
	return <-ch
}

func wrapErr(err error) *rpcerr.Error {
	if e, ok := rpcerr.As(err); ok {
		return e
	}
	return rpcerr.New(rpcerr.InternalError, err.Error())
}

// Typed convenience constructors, matching the shapes a manifest's
// response spec can describe directly.

// NewBoolHandler wraps fn as a Handler returning a bool.
func NewBoolHandler(fn func(*protocol.Request) (bool, error)) Handler {
	return Sync(func(r *protocol.Request) Result {
		v, err := fn(r)
		if err != nil {
			return Result{Err: wrapErr(err)}
		}
		return Result{Value: v}
	})
}

// NewStringHandler wraps fn as a Handler returning a string.
func NewStringHandler(fn func(*protocol.Request) (string, error)) Handler {
	return Sync(func(r *protocol.Request) Result {
		v, err := fn(r)
		if err != nil {
			return Result{Err: wrapErr(err)}
		}
		return Result{Value: v}
	})
}

// NewIntHandler wraps fn as a Handler returning an int.
func NewIntHandler(fn func(*protocol.Request) (int, error)) Handler {
	return Sync(func(r *protocol.Request) Result {
		v, err := fn(r)
		if err != nil {
			return Result{Err: wrapErr(err)}
		}
		return Result{Value: v}
	})
}

// NewFloatHandler wraps fn as a Handler returning a float64.
func NewFloatHandler(fn func(*protocol.Request) (float64, error)) Handler {
	return Sync(func(r *protocol.Request) Result {
		v, err := fn(r)
		if err != nil {
			return Result{Err: wrapErr(err)}
		}
		return Result{Value: v}
	})
}

// NewArrayHandler wraps fn as a Handler returning a JSON array.
func NewArrayHandler(fn func(*protocol.Request) ([]interface{}, error)) Handler {
	return Sync(func(r *protocol.Request) Result {
		v, err := fn(r)
		if err != nil {
			return Result{Err: wrapErr(err)}
		}
		return Result{Value: v}
	})
}

// NewObjectHandler wraps fn as a Handler returning a JSON object.
func NewObjectHandler(fn func(*protocol.Request) (map[string]interface{}, error)) Handler {
	return Sync(func(r *protocol.Request) Result {
		v, err := fn(r)
		if err != nil {
			return Result{Err: wrapErr(err)}
		}
		return Result{Value: v}
	})
}

// NewAsyncObjectHandler wraps fn, run in its own goroutine, as a Handler
// returning a JSON object.
func NewAsyncObjectHandler(fn func(*protocol.Request) (map[string]interface{}, error)) Handler {
	return Async(func(r *protocol.Request, out chan<- Result) {
		v, err := fn(r)
		if err != nil {
			out <- Result{Err: wrapErr(err)}
			return
		}
		out <- Result{Value: v}
	})
}

// Registry maps request name to Handler. Mutation (Register/Unregister) is
// serialized; Dispatch reads a snapshot and runs lock-free.
type Registry struct {
	mu          sync.RWMutex
	handlers    map[string]Handler
	maxHandlers int
}

// New returns an empty Registry accepting at most maxHandlers
// registrations. A non-positive maxHandlers means unlimited.
func New(maxHandlers int) *Registry {
	return &Registry{handlers: make(map[string]Handler), maxHandlers: maxHandlers}
}

// Register adds handler under name. Fails with InvalidParams if name is
// empty or the registry is already at capacity.
func (r *Registry) Register(name string, handler Handler) error {
	if name == "" {
		return rpcerr.New(rpcerr.InvalidParams, "handler name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; !exists && r.maxHandlers > 0 && len(r.handlers) >= r.maxHandlers {
		return rpcerr.New(rpcerr.InvalidParams, fmt.Sprintf("handler registry is at capacity (%d)", r.maxHandlers))
	}
	r.handlers[name] = handler
	return nil
}

// Unregister removes name, returning whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; !ok {
		return false
	}
	delete(r.handlers, name)
	return true
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Dispatch runs the handler registered for req.Request, returning
// MethodNotFound when absent.
func (r *Registry) Dispatch(req *protocol.Request) Result {
	r.mu.RLock()
	h, ok := r.handlers[req.Request]
	r.mu.RUnlock()
	if !ok {
		return Result{Err: rpcerr.New(rpcerr.MethodNotFound, fmt.Sprintf("no handler registered for '%s'", req.Request))}
	}
	return h.Handle(req)
}

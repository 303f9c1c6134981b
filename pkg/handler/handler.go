// Package handler implements the uniform named read/write attribute
// protocol of per-element and global Handlers stored in a
// router-wide Pool, resolved to stable integer ids (hindex) once
// add_handlers has run, and invoked through a single call surface that
// every control-plane exposure (pkg/control's gRPC surface, a future
// filesystem or socket exposure) goes through.
package handler

import (
	"fmt"
	"sync"

	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
)

// Flag bits, matching the vocabulary.
const (
	OpRead     = 1 << iota // handler supports read
	OpWrite                // handler supports write
	ReadParam              // read takes a parameter string
	Exclusive              // handler requires exclusive access while running
	Raw                    // value is not UTF-8 text
	Calm                   // write(read()) is guaranteed accepted
	Button                 // write-only, value argument ignored
	Checkbox               // read/write a boolean-like value
	Uncombined             // do not combine with same-named handlers from other elements
)

// ReadFunc produces a handler's current value.
type ReadFunc func() (string, error)

// WriteFunc applies value, reporting errors through eh.
type WriteFunc func(value string, eh errh.Handler) error

// Handler is a named attribute, readable and/or writable, on an element
// or global to the router.
type Handler struct {
	Name    string
	Flags   int
	Element element.EIndex // element.RootEIndex for a global handler
	Read    ReadFunc
	Write   WriteFunc
}

// CanRead reports whether this handler supports Call Read.
func (h *Handler) CanRead() bool { return h.Flags&OpRead != 0 && h.Read != nil }

// CanWrite reports whether this handler supports Call Write.
func (h *Handler) CanWrite() bool { return h.Flags&OpWrite != 0 && h.Write != nil }

// HIndex is a stable integer id for a handler, resolved by Pool.HIndex.
// Negative means missing, matching the historical convention.
type HIndex int

const missingHIndex HIndex = -1

// key identifies a handler slot before it is assigned an HIndex.
type key struct {
	elem element.EIndex
	name string
}

// Pool is the router-wide handler store. It is append-only during
// add_handlers and read-only afterward: once Freeze has been called,
// registration panics and lookups take only the read lock; before that,
// the mutex guards concurrent registration from elements initializing on
// different scheduler threads.
type Pool struct {
	mu      sync.RWMutex
	frozen  bool
	byKey   map[key]HIndex
	byIndex []*Handler
	// byElement indexes each element's own handler names, in
	// registration order, mirroring the per-element linked list of
	// handlers in the historical implementation.
	byElement map[element.EIndex][]HIndex
}

// NewPool returns an empty handler pool.
func NewPool() *Pool {
	return &Pool{
		byKey:     make(map[key]HIndex),
		byElement: make(map[element.EIndex][]HIndex),
	}
}

// Registrar returns an element.HandlerRegistrar bound to elem, suitable
// for passing to Element.AddHandlers during the Router's add_handlers
// phase.
func (p *Pool) Registrar(elem element.EIndex) element.HandlerRegistrar {
	return &elementRegistrar{pool: p, elem: elem}
}

type elementRegistrar struct {
	pool *Pool
	elem element.EIndex
}

func (r *elementRegistrar) AddReadHandler(name string, flags int, read func() (string, error)) {
	r.pool.set(r.elem, name, flags|OpRead, read, nil)
}

func (r *elementRegistrar) AddWriteHandler(name string, flags int, write func(value string, eh errh.Handler) error) {
	r.pool.set(r.elem, name, flags|OpWrite, nil, write)
}

// AddGlobalReadHandler registers a handler not tied to any element (the
// "classes", "packages", "config" examples), callable through
// CallRead(element.RootEIndex, name).
func (p *Pool) AddGlobalReadHandler(name string, flags int, read ReadFunc) {
	p.set(element.RootEIndex, name, flags|OpRead, read, nil)
}

// AddGlobalWriteHandler registers a global write handler.
func (p *Pool) AddGlobalWriteHandler(name string, flags int, write WriteFunc) {
	p.set(element.RootEIndex, name, flags|OpWrite, nil, write)
}

// set installs or merges a handler under (elem, name). Read and write
// halves of the same name may be registered separately (a common
// pattern: AddReadHandler("count", ...) then AddWriteHandler("count",
// ...) to reset it), in which case they're merged into one Handler.
func (p *Pool) set(elem element.EIndex, name string, flags int, read ReadFunc, write WriteFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen {
		panic("handler: Pool is frozen; AddHandlers must run before Freeze")
	}
	k := key{elem: elem, name: name}
	if idx, ok := p.byKey[k]; ok {
		h := p.byIndex[idx]
		h.Flags |= flags
		if read != nil {
			h.Read = read
		}
		if write != nil {
			h.Write = write
		}
		return
	}
	h := &Handler{Name: name, Flags: flags, Element: elem, Read: read, Write: write}
	idx := HIndex(len(p.byIndex))
	p.byIndex = append(p.byIndex, h)
	p.byKey[k] = idx
	p.byElement[elem] = append(p.byElement[elem], idx)
}

// Freeze marks the pool read-only; called by the Router once
// add_handlers has run for every element ("append-only during
// add_handlers and read-only afterward"). HIndex values are stable from
// this point on.
func (p *Pool) Freeze() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frozen = true
}

// HIndex resolves (elem, name) to a stable integer id, or missingHIndex
// if no such handler was registered.
func (p *Pool) HIndex(elem element.EIndex, name string) HIndex {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if idx, ok := p.byKey[key{elem: elem, name: name}]; ok {
		return idx
	}
	return missingHIndex
}

// Handler retrieves the handler at idx, or nil if idx is out of range.
func (p *Pool) Handler(idx HIndex) *Handler {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if idx < 0 || int(idx) >= len(p.byIndex) {
		return nil
	}
	return p.byIndex[idx]
}

// ForElement returns the names of every handler registered on elem, in
// registration order.
func (p *Pool) ForElement(elem element.EIndex) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	idxs := p.byElement[elem]
	names := make([]string, len(idxs))
	for i, idx := range idxs {
		names[i] = p.byIndex[idx].Name
	}
	return names
}

// CallRead invokes the read half of (elem, name), returning an error if
// the handler is missing or not readable.
func (p *Pool) CallRead(elem element.EIndex, name string) (string, error) {
	idx := p.HIndex(elem, name)
	h := p.Handler(idx)
	if h == nil {
		return "", fmt.Errorf("handler: no such handler %q on element %d", name, elem)
	}
	if !h.CanRead() {
		return "", fmt.Errorf("handler: %q is not readable", name)
	}
	return h.Read()
}

// CallWrite invokes the write half of (elem, name) with value, returning
// an error on failure. Diagnostics beyond a bare error are reported
// through eh, matching the historical call_write(value, element, errh)
// signature.
func (p *Pool) CallWrite(elem element.EIndex, name, value string, eh errh.Handler) error {
	idx := p.HIndex(elem, name)
	h := p.Handler(idx)
	if h == nil {
		err := fmt.Errorf("handler: no such handler %q on element %d", name, elem)
		if eh != nil {
			errh.Errorf(eh, errh.Landmark{}, "%s", err)
		}
		return err
	}
	if !h.CanWrite() {
		err := fmt.Errorf("handler: %q is not writable", name)
		if eh != nil {
			errh.Errorf(eh, errh.Landmark{}, "%s", err)
		}
		return err
	}
	return h.Write(value, eh)
}

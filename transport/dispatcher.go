package transport

import (
	"sync"

	"github.com/censtar0502/gkl-pump-controller/errcode"
)

// Dispatcher maps a transport Handle to the Handler (Link) that owns it,
// replacing a firmware-style static global array with a table owned by
// the subsystem. It is a plain value the caller constructs and owns —
// nothing here is a package-level global, so nothing prevents running
// two independent controllers (e.g. in tests) side by side.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Handle]Handler
	next     Handle
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Handle]Handler)}
}

// Register binds a Handler to a freshly allocated Handle.
func (d *Dispatcher) Register(h Handler) Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	handle := d.next
	d.handlers[handle] = h
	return handle
}

// Rebind swaps the Handler bound to an already-allocated Handle,
// leaving the Handle value itself unchanged. This lets platform startup
// code reserve a Handle before the Link it belongs to exists yet (the
// Port needs the Handle to construct; the Link needs the Port to
// construct), then bind the real Link in once both exist.
func (d *Dispatcher) Rebind(h Handle, handler Handler) {
	d.mu.Lock()
	d.handlers[h] = handler
	d.mu.Unlock()
}

// Unregister drops a Handle's binding. Safe to call more than once.
func (d *Dispatcher) Unregister(h Handle) {
	d.mu.Lock()
	delete(d.handlers, h)
	d.mu.Unlock()
}

func (d *Dispatcher) lookup(h Handle) Handler {
	d.mu.RLock()
	handler := d.handlers[h]
	d.mu.RUnlock()
	return handler
}

// DispatchTXComplete forwards a TX-done interrupt to the bound Handler,
// a no-op if the handle is unknown (e.g. raced with Unregister).
func (d *Dispatcher) DispatchTXComplete(h Handle) {
	if handler := d.lookup(h); handler != nil {
		handler.OnTXComplete()
	}
}

// DispatchRXByte forwards one received byte to the bound Handler.
func (d *Dispatcher) DispatchRXByte(h Handle, b byte) {
	if handler := d.lookup(h); handler != nil {
		handler.OnRXByte(b)
	}
}

// DispatchError forwards a transport error to the bound Handler.
func (d *Dispatcher) DispatchError(h Handle, code errcode.Code) {
	if handler := d.lookup(h); handler != nil {
		handler.OnError(code)
	}
}

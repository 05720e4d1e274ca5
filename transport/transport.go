// Package transport defines the byte transport boundary the GKL link
// layer is built on. It is deliberately tiny: a transport is anything
// that can start an asynchronous transmit and arm a one-byte receive,
// and report back via three callbacks. The real serial hardware driver,
// MCU bring-up, and DMA wiring live in the platform package, which
// supplies concrete Port implementations.
package transport

import "github.com/censtar0502/gkl-pump-controller/errcode"

// Port is the asynchronous byte transport a Link drives. Both methods
// must return immediately; completion is reported through the Handler
// registered for this port's Handle.
type Port interface {
	// Transmit starts sending buf. It does not block for the transfer to
	// complete; completion is reported via Handler.OnTXComplete.
	Transmit(buf []byte) error
	// ReceiveOneByte arms a single-byte asynchronous receive. Completion
	// (or error) is reported via Handler.OnRXByte / Handler.OnError.
	ReceiveOneByte() error
}

// Handler receives the three callbacks a transport's interrupt context
// produces: TX-complete, one received byte, and a transport error. A
// Link implements Handler for exactly one Port.
type Handler interface {
	OnTXComplete()
	OnRXByte(b byte)
	OnError(code errcode.Code)
}

// Handle is an opaque identifier a concrete transport driver uses to
// name "which port" an interrupt fired for, letting one ISR-style
// callback function serve every registered port without per-port
// closures on a constrained target.
type Handle uint32

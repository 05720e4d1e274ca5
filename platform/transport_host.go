//go:build !tinygo

package platform

import (
	"time"

	"github.com/censtar0502/gkl-pump-controller/transport"
)

// txLatency/rxLatency model the wire + pump turnaround time a real
// GasKitLink exchange takes, just enough for the link layer's own
// 10ms/200ms timeouts to mean something against a simulated pump.
const (
	txLatency = 2 * time.Millisecond
	rxLatency = 8 * time.Millisecond
)

// SimPort is a host-only transport.Port backed by a simPump: enough to
// drive cmd/pumpctl against something that
// behaves like a real pump without any hardware attached. Transmit and
// the simulated response delivery run on their own goroutine, calling
// back through a transport.Dispatcher the same way a real interrupt
// vector would call into dispatcher.DispatchTXComplete /
// DispatchRXByte — the Link this Port drives never sees the
// difference.
type SimPort struct {
	disp   *transport.Dispatcher
	handle transport.Handle
	sim    *simPump
}

// NewSimPort returns a Port bound to handle on disp, backed by a fresh
// simPump.
func NewSimPort(disp *transport.Dispatcher, handle transport.Handle) *SimPort {
	return &SimPort{disp: disp, handle: handle, sim: newSimPump()}
}

func (p *SimPort) Transmit(buf []byte) error {
	frame := append([]byte(nil), buf...)
	go func() {
		time.Sleep(txLatency)
		p.disp.DispatchTXComplete(p.handle)

		resp, ok := p.sim.handle(frame)
		if !ok {
			return
		}
		time.Sleep(rxLatency)
		for _, b := range resp {
			p.disp.DispatchRXByte(p.handle, b)
		}
	}()
	return nil
}

// ReceiveOneByte is a no-op on the simulated transport: SimPort always
// delivers a full response after Transmit, rather than needing to be
// re-armed byte by byte the way a real UART RX interrupt would.
func (p *SimPort) ReceiveOneByte() error { return nil }

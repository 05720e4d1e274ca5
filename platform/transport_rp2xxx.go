//go:build tinygo && (rp2040 || rp2350)

package platform

import (
	"context"
	"sync"

	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"github.com/censtar0502/gkl-pump-controller/errcode"
	"github.com/censtar0502/gkl-pump-controller/transport"
)

// UARTPort drives one physical GasKitLink channel over a tinygo-uartx
// UART. The underlying driver's Write and RecvSomeContext are
// synchronous calls, so each is run on its own long-lived goroutine
// that reports completion back through a transport.Dispatcher the same
// way a real DMA-complete or RX-byte interrupt vector would — the Link
// bound to this Port never blocks waiting for either.
type UARTPort struct {
	uart   *uartx.UART
	disp   *transport.Dispatcher
	handle transport.Handle

	rxOnce   sync.Once
	rxCtx    context.Context
	rxCancel context.CancelFunc
}

// UARTConfig is the pin/baud configuration for one GasKitLink channel.
type UARTConfig struct {
	Which    int // 0 or 1, selecting uartx.UART0 / UART1
	BaudRate uint32
	TX, RX   machine.Pin
}

// NewUARTPort configures the selected UART for 9600 8N1 (GasKitLink's
// fixed framing) and returns a Port bound to handle on disp. The
// caller registers the owning Link on disp beforehand to obtain handle.
func NewUARTPort(cfg UARTConfig, disp *transport.Dispatcher, handle transport.Handle) (*UARTPort, error) {
	var hw *uartx.UART
	switch cfg.Which {
	case 0:
		hw = uartx.UART0
	case 1:
		hw = uartx.UART1
	default:
		return nil, errcode.Param
	}
	if err := hw.Configure(uartx.UARTConfig{BaudRate: cfg.BaudRate, TX: cfg.TX, RX: cfg.RX}); err != nil {
		return nil, errcode.Transport
	}
	if err := hw.SetFormat(8, 1, uartx.ParityNone); err != nil {
		return nil, errcode.Transport
	}
	p := &UARTPort{uart: hw, disp: disp, handle: handle}
	p.rxCtx, p.rxCancel = context.WithCancel(context.Background())
	return p, nil
}

// Transmit writes buf on its own goroutine and reports completion
// through the Dispatcher once the write returns.
func (p *UARTPort) Transmit(buf []byte) error {
	frame := append([]byte(nil), buf...)
	go func() {
		if _, err := p.uart.Write(frame); err != nil {
			p.disp.DispatchError(p.handle, errcode.Transport)
			return
		}
		p.disp.DispatchTXComplete(p.handle)
	}()
	return nil
}

// ReceiveOneByte starts (once) a background reader that feeds every
// received byte to the Dispatcher as it arrives. A real UART interrupt
// re-arms itself after each byte; this goroutine models the same thing
// as a loop instead of a self-re-arming ISR.
func (p *UARTPort) ReceiveOneByte() error {
	p.rxOnce.Do(func() {
		go p.readLoop()
	})
	return nil
}

func (p *UARTPort) readLoop() {
	var b [1]byte
	for {
		n, err := p.uart.RecvSomeContext(p.rxCtx, b[:])
		if p.rxCtx.Err() != nil {
			return
		}
		if err != nil {
			p.disp.DispatchError(p.handle, errcode.Transport)
			continue
		}
		if n > 0 {
			p.disp.DispatchRXByte(p.handle, b[0])
		}
	}
}

// Close stops the background reader goroutine.
func (p *UARTPort) Close() { p.rxCancel() }

//go:build tinygo && (rp2040 || rp2350)

// Command pump-master is the board target: it wires two real GasKitLink
// UART channels and a bus into the same host.Controller / host.Service
// pair that cmd/pumpctl drives against the simulator.
package main

import (
	"machine"
	"runtime"
	"time"

	"github.com/censtar0502/gkl-pump-controller/bus"
	"github.com/censtar0502/gkl-pump-controller/errcode"
	"github.com/censtar0502/gkl-pump-controller/gkltypes"
	"github.com/censtar0502/gkl-pump-controller/host"
	"github.com/censtar0502/gkl-pump-controller/platform"
	"github.com/censtar0502/gkl-pump-controller/transport"
)

const tickInterval = 5 * time.Millisecond

func main() {
	// Let USB/clocks settle before touching peripherals.
	time.Sleep(3 * time.Second)

	println("[main] bootstrapping bus")
	b := bus.NewBus(8)
	conn := b.NewConnection("pump-master")

	logger := host.NewLogger(conn)
	ctl := host.NewController(1000, logger)

	disp := transport.NewDispatcher()

	if err := addPump(ctl, disp, "p1", 0x00, 0x01, 1122, platform.UARTConfig{
		Which: 0, BaudRate: 9600, TX: machine.UART0_TX_PIN, RX: machine.UART0_RX_PIN,
	}); err != nil {
		println("[main] p1 uart bring-up failed")
	}
	if err := addPump(ctl, disp, "p2", 0x00, 0x02, 999, platform.UARTConfig{
		Which: 1, BaudRate: 9600, TX: machine.UART1_TX_PIN, RX: machine.UART1_RX_PIN,
	}); err != nil {
		println("[main] p2 uart bring-up failed")
	}

	svc := host.NewService(ctl, conn)

	println("[main] entering tick loop")
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var due []string
	nowMs := int64(0)
	memTick := 0
	for range ticker.C {
		nowMs += tickInterval.Milliseconds()
		ctl.Tick(nowMs, due)
		svc.Poll()

		memTick++
		if memTick >= 2000 { // ~10s at a 5ms tick
			memTick = 0
			printMem()
		}
	}
}

func addPump(ctl *host.Controller, disp *transport.Dispatcher, id string, ctrlAddr, slaveAddr byte, price gkltypes.Price, uartCfg platform.UARTConfig) error {
	handle := disp.Register(noopHandler{})
	port, err := platform.NewUARTPort(uartCfg, disp, handle)
	if err != nil {
		return err
	}
	l := ctl.AddPump(host.PumpConfig{ID: id, CtrlAddr: ctrlAddr, SlaveAddr: slaveAddr, Price: price}, port, 0)
	disp.Rebind(handle, l)
	_ = port.ReceiveOneByte() // arm the background reader
	return nil
}

type noopHandler struct{}

func (noopHandler) OnTXComplete()             {}
func (noopHandler) OnRXByte(b byte)           {}
func (noopHandler) OnError(code errcode.Code) {}

func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	println("[mem] alloc:", uint32(ms.Alloc), "heapInuse:", uint32(ms.HeapInuse))
}

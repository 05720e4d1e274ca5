//go:build !tinygo

// Command pumpctl is an interactive host-side shell for driving the GKL
// pump controller against the simulated transport, the way boardtest
// exercised real hardware from a console: type a verb, see the reply.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/shlex"

	"github.com/censtar0502/gkl-pump-controller/bus"
	"github.com/censtar0502/gkl-pump-controller/errcode"
	"github.com/censtar0502/gkl-pump-controller/gkltypes"
	"github.com/censtar0502/gkl-pump-controller/host"
	"github.com/censtar0502/gkl-pump-controller/platform"
	"github.com/censtar0502/gkl-pump-controller/transport"
)

const tickInterval = 5 * time.Millisecond

func main() {
	b := bus.NewBus(8)
	conn := b.NewConnection("pumpctl")

	logger := host.NewLogger(conn)
	ctl := host.NewController(1000, logger)

	disp := transport.NewDispatcher()
	addPump(ctl, disp, "p1", 0x00, 0x01, 1122)
	addPump(ctl, disp, "p2", 0x00, 0x02, 999)

	svc := host.NewService(ctl, conn)

	stop := make(chan struct{})
	go loop(ctl, svc, stop)
	defer close(stop)

	fmt.Println("pumpctl ready. pumps: p1 p2. type 'help' for commands.")
	repl(conn)
}

func addPump(ctl *host.Controller, disp *transport.Dispatcher, id string, ctrlAddr, slaveAddr byte, price gkltypes.Price) {
	// The Port needs a Handle to construct, but the Handle should
	// dispatch to the Link, which AddPump constructs internally from the
	// Port. Reserve the Handle against a placeholder first, then Rebind
	// it to the real Link once AddPump returns it.
	handle := disp.Register(noopHandler{})
	port := platform.NewSimPort(disp, handle)
	l := ctl.AddPump(host.PumpConfig{ID: id, CtrlAddr: ctrlAddr, SlaveAddr: slaveAddr, Price: price}, port, 0)
	disp.Rebind(handle, l)
}

// noopHandler is a placeholder Handler used only to reserve a Handle
// before the real Link exists.
type noopHandler struct{}

func (noopHandler) OnTXComplete()             {}
func (noopHandler) OnRXByte(b byte)           {}
func (noopHandler) OnError(code errcode.Code) {}

func loop(ctl *host.Controller, svc *host.Service, stop <-chan struct{}) {
	var due []string
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	nowMs := int64(0)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			nowMs += tickInterval.Milliseconds()
			ctl.Tick(nowMs, due)
			svc.Poll()
		}
	}
}

func repl(conn *bus.Connection) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		args, err := shlex.Split(sc.Text())
		if err != nil || len(args) == 0 {
			continue
		}
		runCommand(conn, args)
	}
}

func runCommand(conn *bus.Connection, args []string) {
	switch args[0] {
	case "help":
		fmt.Println("preset_volume <id> <nozzle> <volume_dl> <price>")
		fmt.Println("preset_money <id> <nozzle> <money> <price>")
		fmt.Println("pause|resume|cancel|poll_now|clear_fail <id>")
		fmt.Println("set_price <id> <price>")
		fmt.Println("quit")
	case "quit":
		os.Exit(0)
	case "preset_volume", "preset_money":
		presetCommand(conn, args)
	case "pause", "resume", "cancel", "poll_now", "clear_fail":
		sendControl(conn, args[1], args[0], host.ControlRequest{})
	case "set_price":
		if len(args) != 3 {
			fmt.Println("usage: set_price <id> <price>")
			return
		}
		price, _ := strconv.Atoi(args[2])
		sendControl(conn, args[1], "set_price", host.ControlRequest{Price: gkltypes.Price(price)})
	default:
		fmt.Println("unknown command:", args[0])
	}
}

func presetCommand(conn *bus.Connection, args []string) {
	if len(args) != 5 {
		fmt.Println("usage:", args[0], "<id> <nozzle> <amount> <price>")
		return
	}
	nozzle, _ := strconv.Atoi(args[2])
	amount, _ := strconv.Atoi(args[3])
	price, _ := strconv.Atoi(args[4])
	req := host.ControlRequest{Nozzle: gkltypes.Nozzle(nozzle), Price: gkltypes.Price(price)}
	if args[0] == "preset_volume" {
		req.VolumeDL = gkltypes.Deciliters(amount)
	} else {
		req.Money = gkltypes.Money(amount)
	}
	sendControl(conn, args[1], args[0], req)
}

func sendControl(conn *bus.Connection, id, verb string, req host.ControlRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m, err := conn.RequestWait(ctx, conn.NewMessage(bus.T("hal", "pump", id, "control", verb), req, false))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	reply, _ := m.Payload.(host.ControlReply)
	fmt.Println("->", reply.Code)
}

package adapter

import (
	"github.com/censtar0502/gkl-pump-controller/errcode"
	"github.com/censtar0502/gkl-pump-controller/gkltypes"
	"github.com/censtar0502/gkl-pump-controller/gklproto"
	"github.com/censtar0502/gkl-pump-controller/link"
	"github.com/censtar0502/gkl-pump-controller/x/strx"
)

const (
	eventQueueCap  = 8
	noConnectAfter = 10
)

// eventQueue is a fixed-capacity SPSC ring that drops the oldest entry
// to admit a new one when full, favouring the freshest pump state over
// a complete history — the diagnostic log (Link.DrainRawRX) is where a
// complete trace lives, not this queue.
type eventQueue struct {
	buf        [eventQueueCap]gkltypes.Event
	head, size int
}

func (q *eventQueue) push(ev gkltypes.Event) {
	if q.size == eventQueueCap {
		q.head = (q.head + 1) % eventQueueCap
		q.size--
	}
	idx := (q.head + q.size) % eventQueueCap
	q.buf[idx] = ev
	q.size++
}

func (q *eventQueue) pop() (gkltypes.Event, bool) {
	if q.size == 0 {
		return gkltypes.Event{}, false
	}
	ev := q.buf[q.head]
	q.head = (q.head + 1) % eventQueueCap
	q.size--
	return ev, true
}

// GKL implements Protocol over a single link.Link, translating
// Protocol-level commands into GasKitLink frames and Link responses
// into gkltypes.Event values.
type GKL struct {
	l     *link.Link
	ctrl  byte
	slave byte

	queue eventQueue

	noConnect  bool
	lastErrStr string

	pendingKind gkltypes.EventKind
	pendingSet  bool
}

// NewGKL returns a Protocol implementation addressed to one
// controller/slave pair and driven over an already-Init'd Link.
func NewGKL(l *link.Link, ctrl, slave byte) *GKL {
	return &GKL{l: l, ctrl: ctrl, slave: slave}
}

func (a *GKL) Task() {
	a.l.Task()
	if a.l.HasResponse() {
		f := a.l.GetResponse()
		var ev gkltypes.Event
		if gklproto.ParseResponse(&f, &ev) {
			a.noConnect = false
			a.lastErrStr = ""
			a.queue.push(ev)
		}
		a.pendingSet = false
		return
	}
	// A failed exchange (timeout, CRC, format) never sets respReady, so
	// HasResponse never fires for it; watch the Link's own state instead
	// of only the has-response path, or pendingSet would latch forever
	// after a single failure.
	if st := a.l.Stats().State; st != link.TxInFlight && st != link.WaitResp {
		a.pendingSet = false
	}
	a.checkNoConnect()
}

// checkNoConnect latches a single deduplicated Error event once the
// link's consecutive failure count reaches the no-connect threshold,
// instead of re-queuing the same failure on every tick while the bus
// stays silent.
func (a *GKL) checkNoConnect() {
	st := a.l.Stats()
	if st.ConsecutiveFail < noConnectAfter {
		return
	}
	a.noConnect = true
	errStr := strx.Coalesce(string(st.LastErr), "unknown")
	if errStr == a.lastErrStr {
		return
	}
	a.lastErrStr = errStr
	a.queue.push(gkltypes.Event{
		Addr:      gkltypes.Addr{CtrlAddr: a.ctrl, SlaveAddr: a.slave},
		Kind:      gkltypes.EventError,
		ErrCode:   errStr,
		FailCount: st.ConsecutiveFail,
	})
}

func (a *GKL) IsIdle() bool {
	return !a.pendingSet
}

func (a *GKL) send(cmd byte, data []byte, expectResp byte, kind gkltypes.EventKind) error {
	if a.pendingSet {
		return errcode.Busy
	}
	if code := a.l.Send(a.ctrl, a.slave, cmd, data, expectResp); code != errcode.OK {
		return code
	}
	a.pendingKind = kind
	a.pendingSet = true
	return nil
}

func (a *GKL) PollStatus() error {
	return a.send('S', nil, 'S', gkltypes.EventStatus)
}

// V and M (and B/G/N below) are fire-and-forget: the pump's reply to
// them only confirms framing, not a logical status. Confirmation of
// effect comes from the next S poll, not from this exchange, so
// expectResp is 0 (accept any response command).
func (a *GKL) PresetVolume(nozzle gkltypes.Nozzle, volumeDL gkltypes.Deciliters, price gkltypes.Price) error {
	var buf [16]byte
	data := gklproto.PresetVolume(buf[:0], uint8(nozzle), uint32(volumeDL)*10, uint16(price))
	return a.send('V', data, 0, gkltypes.EventStatus)
}

func (a *GKL) PresetMoney(nozzle gkltypes.Nozzle, money gkltypes.Money, price gkltypes.Price) error {
	var buf [16]byte
	data := gklproto.PresetMoney(buf[:0], uint8(nozzle), uint32(money), uint16(price))
	return a.send('M', data, 0, gkltypes.EventStatus)
}

func (a *GKL) Stop() error   { return a.send('B', nil, 0, gkltypes.EventStatus) }
func (a *GKL) Resume() error { return a.send('G', nil, 0, gkltypes.EventStatus) }
func (a *GKL) End() error    { return a.send('N', nil, 0, gkltypes.EventStatus) }

func (a *GKL) PollRealtimeVolume(nozzle gkltypes.Nozzle) error {
	var buf [2]byte
	data := gklproto.SingleDigit(buf[:0], uint8(nozzle))
	return a.send('L', data, 'L', gkltypes.EventRealtimeVolume)
}

func (a *GKL) PollRealtimeMoney(nozzle gkltypes.Nozzle) error {
	var buf [2]byte
	data := gklproto.SingleDigit(buf[:0], uint8(nozzle))
	return a.send('R', data, 'R', gkltypes.EventRealtimeMoney)
}

func (a *GKL) ReadTotalizer(index gkltypes.TotalizerIndex) error {
	var buf [2]byte
	data := gklproto.SingleDigit(buf[:0], uint8(index))
	return a.send('C', data, 'C', gkltypes.EventTotalizer)
}

func (a *GKL) ReadTransaction() error {
	return a.send('T', nil, 'T', gkltypes.EventTransactionFinal)
}

func (a *GKL) PopEvent() (gkltypes.Event, bool) {
	return a.queue.pop()
}

// Package link implements the GasKitLink datalink: framing, checksums,
// inter-byte and response timeouts, and a raw-RX diagnostic ring, driven
// by a non-blocking transport.Port. A Link owns exactly one physical
// channel and carries one exchange at a time; host.Controller holds one
// Link per pump id, and ids added with AddSharedPump reuse another id's
// Link (and adapter) rather than getting their own.
package link

import (
	"sync"

	"github.com/censtar0502/gkl-pump-controller/errcode"
	"github.com/censtar0502/gkl-pump-controller/gkltypes"
	"github.com/censtar0502/gkl-pump-controller/transport"
	"github.com/censtar0502/gkl-pump-controller/x/shmring"
	"github.com/censtar0502/gkl-pump-controller/x/timex"
)

const (
	interByteTimeoutMs = 10
	respTimeoutMs      = 200
	rawRXRingSize      = 512
)

// Stats is a point-in-time snapshot of a Link's counters.
type Stats struct {
	TxCount         uint32
	RxFrameCount    uint32
	TimeoutCount    uint32
	CrcErrCount     uint32
	FormatErrCount  uint32
	ConsecutiveFail uint8
	State           State
	LastErr         errcode.Code
}

// Link drives one physical channel's GKL datalink state machine. The
// transport's interrupt-style callbacks (OnTXComplete/OnRXByte/OnError)
// and the cooperative Task() housekeeping call share the fields below
// under mu, the Go stand-in for the firmware's "IRQ disabled" critical
// section: there are no OS threads here, only two call paths (the
// transport's callback path and the scheduler's Task() path) that must
// not interleave a half-updated state.
type Link struct {
	mu sync.Mutex

	port  transport.Port
	cache CacheOps

	state State

	txBuf [gkltypes.MaxFrameLen]byte
	txLen int

	rxBuf      [gkltypes.MaxFrameLen]byte
	rxLen      int
	expectResp byte

	lastTxMs int64
	lastRxMs int64

	respFrame gkltypes.Frame
	respReady bool

	consecFail uint8
	lastErr    errcode.Code
	errSeen    bool // one-shot auto-recovery latch for State == Error

	stats Stats

	rawRX *shmring.Ring
}

// New constructs a Link bound to no transport yet; call Init before Send.
func New() *Link {
	return &Link{
		cache: NoopCache{},
		rawRX: shmring.New(rawRXRingSize),
	}
}

// Init binds the Link to a transport.Port and, optionally, cache
// maintenance hooks for a non-coherent DMA path. cache may be nil, in
// which case a NoopCache is used.
func (l *Link) Init(port transport.Port, cache CacheOps) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.port = port
	if cache != nil {
		l.cache = cache
	}
	l.state = Idle
}

// Send starts a command frame transmission. It returns errcode.Busy if a
// transaction is already outstanding, errcode.Param if data is too long,
// or errcode.Transport if the port rejects the transmit. expectRespCmd
// is the response command byte to require on the reply, or 0 to accept
// any response command (used for fire-and-forget commands that still
// want framing validated).
func (l *Link) Send(ctrl, slave, cmd byte, data []byte, expectRespCmd byte) errcode.Code {
	if len(data) > gkltypes.MaxDataLen {
		return errcode.Param
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Idle && l.state != GotResp && l.state != Error {
		return errcode.Busy
	}
	if l.state == Error {
		// one transaction's worth of grace before auto-recovery fires in Task
		l.state = Idle
	}

	buf := gkltypes.Encode(l.txBuf[:0], ctrl, slave, cmd, data)
	l.txLen = len(buf)
	l.cache.CleanTX(l.txBuf[:l.txLen])

	if err := l.port.Transmit(l.txBuf[:l.txLen]); err != nil {
		l.lastErr = errcode.Transport
		l.state = Error
		return errcode.Transport
	}

	l.expectResp = expectRespCmd
	l.rxLen = 0
	l.respReady = false
	l.state = TxInFlight
	l.stats.TxCount++
	return errcode.OK
}

// HasResponse reports whether a decoded response frame is waiting.
func (l *Link) HasResponse() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.respReady
}

// GetResponse consumes and returns the pending response frame, clearing
// the Link back to Idle. Calling it with no response pending returns the
// zero Frame.
func (l *Link) GetResponse() gkltypes.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := l.respFrame
	l.respReady = false
	if l.state == GotResp {
		l.state = Idle
	}
	return f
}

// Stats returns a snapshot of the Link's counters.
func (l *Link) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.ConsecutiveFail = l.consecFail
	s.State = l.state
	s.LastErr = l.lastErr
	return s
}

// DrainRawRX copies up to len(out) raw received bytes from the
// diagnostic ring into out, for a Logger to trace without perturbing the
// datalink's own framing state. It never blocks.
func (l *Link) DrainRawRX(out []byte) int {
	n := 0
	for n < len(out) {
		p1, p2 := l.rawRX.ReadAcquire()
		if len(p1) == 0 {
			break
		}
		c := copy(out[n:], p1)
		n += c
		if c < len(p1) {
			l.rawRX.ReadRelease(c)
			break
		}
		l.rawRX.ReadRelease(len(p1))
		if len(p2) > 0 && n < len(out) {
			c2 := copy(out[n:], p2)
			n += c2
			l.rawRX.ReadRelease(c2)
		}
	}
	return n
}

// Task performs time-driven housekeeping: inter-byte and response
// timeouts, and the one-shot Error->Idle auto-recovery. It must be
// called frequently (the same cooperative loop tick that drives the
// rest of the engine) since Link has no timer interrupt of its own.
func (l *Link) Task() {
	now := timex.NowMs()
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case WaitResp:
		if now-l.lastRxMs >= interByteTimeoutMs && l.rxLen > 0 {
			l.finalizeRx()
			return
		}
		if now-l.lastTxMs >= respTimeoutMs {
			l.stats.TimeoutCount++
			l.failLocked(errcode.Timeout)
		}
	case Error:
		if l.errSeen {
			l.state = Idle
			l.errSeen = false
		} else {
			l.errSeen = true
		}
	}
}

// OnTXComplete implements transport.Handler. It arms the first receive
// byte and moves the Link into WaitResp.
func (l *Link) OnTXComplete() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != TxInFlight {
		return
	}
	l.state = WaitResp
	l.lastTxMs = timex.NowMs()
	l.lastRxMs = l.lastTxMs
	if err := l.port.ReceiveOneByte(); err != nil {
		l.failLocked(errcode.Transport)
	}
}

// OnRXByte implements transport.Handler. It appends one byte to the
// in-flight response buffer, mirrors it into the raw-RX diagnostic ring,
// and re-arms the next byte.
func (l *Link) OnRXByte(b byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p1, _ := l.rawRX.WriteAcquire(); len(p1) > 0 {
		p1[0] = b
		l.rawRX.WriteCommit(1)
	}

	if l.state != WaitResp {
		return
	}
	if l.rxLen == 0 && b != gkltypes.STX {
		// drop stray bytes ahead of the real frame start and stay armed
		if err := l.port.ReceiveOneByte(); err != nil {
			l.failLocked(errcode.Transport)
		}
		return
	}
	if l.rxLen < len(l.rxBuf) {
		l.rxBuf[l.rxLen] = b
		l.rxLen++
	}
	l.lastRxMs = timex.NowMs()

	if l.frameCompleteLocked() {
		l.finalizeRx()
		return
	}
	if err := l.port.ReceiveOneByte(); err != nil {
		l.failLocked(errcode.Transport)
	}
}

// OnError implements transport.Handler, reporting a transport-level
// failure (framing error, overrun, break) detected below the datalink.
func (l *Link) OnError(code errcode.Code) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failLocked(code)
}

// frameCompleteLocked reports whether rxBuf[:rxLen] looks like a
// complete frame: STX, ctrl, slave, cmd, then a fixed or as-yet-unknown
// data span, then XOR.
func (l *Link) frameCompleteLocked() bool {
	const headerLen = 4 // STX ctrl slave cmd
	if l.rxLen <= headerLen {
		return false
	}
	cmd := l.rxBuf[3]
	if n, ok := gkltypes.RespDataLen(cmd); ok {
		return l.rxLen == headerLen+int(n)+1
	}
	// unknown response command: only the inter-byte timeout in Task can
	// end the frame, via finalizeRx on a quiet bus.
	return false
}

// finalizeRx decodes the accumulated response buffer and either
// publishes it as the pending response or records a parse failure. Must
// be called with mu held.
func (l *Link) finalizeRx() {
	l.cache.InvalidateRX(l.rxBuf[:l.rxLen])
	f, err := gkltypes.Decode(l.rxBuf[:l.rxLen], l.expectResp)
	if err != nil {
		switch err {
		case gkltypes.ErrCrc:
			l.stats.CrcErrCount++
			l.failLocked(errcode.Crc)
		default:
			l.stats.FormatErrCount++
			l.failLocked(errcode.Format)
		}
		return
	}
	l.respFrame = f
	l.respReady = true
	l.stats.RxFrameCount++
	l.consecFail = 0
	l.state = GotResp
}

// failLocked records a failed exchange and transitions to Error. Must be
// called with mu held.
func (l *Link) failLocked(code errcode.Code) {
	l.lastErr = code
	if l.consecFail < 255 {
		l.consecFail++
	}
	l.errSeen = false
	l.state = Error
}

package host

import (
	"github.com/censtar0502/gkl-pump-controller/bus"
	"github.com/censtar0502/gkl-pump-controller/gkltypes"
	"github.com/censtar0502/gkl-pump-controller/link"
	"github.com/censtar0502/gkl-pump-controller/x/fmtx"
)

// rawTraceCap bounds one drain's scratch buffer; any bytes still queued
// beyond it stay in the ring for the next tick instead of growing the
// buffer.
const rawTraceCap = 256

// Logger renders a Link's raw RX trace (every byte seen on the wire,
// independent of framing) into one compact line per drain and publishes
// it on "log/pump/<id>", the way a field technician reads a dumb serial
// sniffer log rather than the decoded protocol.
type Logger struct {
	conn    *bus.Connection
	scratch [rawTraceCap]byte
	line    []byte
}

// NewLogger returns a Logger publishing through conn.
func NewLogger(conn *bus.Connection) *Logger {
	return &Logger{conn: conn}
}

// Trace drains l's pending raw RX bytes and, if any arrived since the
// last call, publishes them as one log line for id.
func (lg *Logger) Trace(id string, l *link.Link) {
	if l == nil {
		return
	}
	n := l.DrainRawRX(lg.scratch[:])
	if n == 0 {
		return
	}
	lg.line = lg.line[:0]
	for _, b := range lg.scratch[:n] {
		lg.line = appendSymbol(lg.line, b)
	}
	lg.conn.Publish(lg.conn.NewMessage(bus.T("log", "pump", id), string(lg.line), false))
}

// appendSymbol renders one raw byte: STX and the low control codes a
// GKL trace actually contains get a symbolic name, printable ASCII
// passes through, anything else renders as <XX> hex.
func appendSymbol(dst []byte, b byte) []byte {
	switch b {
	case gkltypes.STX:
		return append(dst, "<STX>"...)
	case 0x00:
		return append(dst, "<NUL>"...)
	case 0x01:
		return append(dst, "<SOH>"...)
	default:
		if b >= 0x20 && b < 0x7f {
			return append(dst, b)
		}
		dst = append(dst, '<')
		if b < 0x10 {
			dst = append(dst, '0')
		}
		dst = append(dst, fmtx.Sprintf("%X", b)...)
		return append(dst, '>')
	}
}

package host

import (
	"strings"
	"testing"

	"github.com/censtar0502/gkl-pump-controller/bus"
	"github.com/censtar0502/gkl-pump-controller/gkltypes"
	"github.com/censtar0502/gkl-pump-controller/link"
)

func TestLoggerTraceRendersControlBytesSymbolically(t *testing.T) {
	l := link.New()
	l.Init(fakePort{}, nil)
	l.OnRXByte(gkltypes.STX)
	l.OnRXByte('A')
	l.OnRXByte(0x00)
	l.OnRXByte(0x7f)

	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(bus.T("log", "pump", "p1"))

	NewLogger(conn).Trace("p1", l)

	m := <-sub.Channel()
	line, ok := m.Payload.(string)
	if !ok {
		t.Fatalf("want string payload, got %T", m.Payload)
	}
	if !strings.Contains(line, "<STX>A<NUL><7F>") {
		t.Fatalf("unexpected trace line: %q", line)
	}
}

func TestLoggerTraceSkipsPublishWhenNothingArrived(t *testing.T) {
	l := link.New()
	l.Init(fakePort{}, nil)

	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	sub := conn.Subscribe(bus.T("log", "pump", "p1"))

	NewLogger(conn).Trace("p1", l)

	select {
	case m := <-sub.Channel():
		t.Fatalf("expected no publish, got %+v", m)
	default:
	}
}

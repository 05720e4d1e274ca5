package host

import (
	"testing"

	"github.com/censtar0502/gkl-pump-controller/bus"
	"github.com/censtar0502/gkl-pump-controller/errcode"
	"github.com/censtar0502/gkl-pump-controller/gkltypes"
	"github.com/censtar0502/gkl-pump-controller/link"
)

type fakePort struct{}

func (fakePort) Transmit(buf []byte) error { return nil }
func (fakePort) ReceiveOneByte() error      { return nil }

func newTestController() (*Controller, *link.Link) {
	c := NewController(1000, nil)
	l := c.AddPump(PumpConfig{ID: "p1", CtrlAddr: 0x00, SlaveAddr: 0x01, Price: 1122}, fakePort{}, 0)
	return c, l
}

func feedFrame(l *link.Link, ctrl, slave, cmd byte, data []byte) {
	l.OnTXComplete()
	frame := gkltypes.Encode(nil, ctrl, slave, cmd, data)
	for _, b := range frame {
		l.OnRXByte(b)
	}
}

func TestControllerTickRoutesStatusIntoDeviceAndTransaction(t *testing.T) {
	c, l := newTestController()

	var due []string
	c.Tick(1000, due) // issues the first S poll (due one base period after AddPump at t=0)
	feedFrame(l, 0x00, 0x01, 'S', []byte("13"))
	c.Tick(1001, due)

	d := c.Manager().Device("p1")
	if d.Status != 1 || d.Nozzle != 3 {
		t.Fatalf("want status=1 nozzle=3, got status=%v nozzle=%v", d.Status, d.Nozzle)
	}
	if c.Transaction("p1").State().String() != "idle" {
		t.Fatalf("want idle, got %v", c.Transaction("p1").State())
	}
}

func TestServiceControlRequestStartsVolumePreset(t *testing.T) {
	c, _ := newTestController()
	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	svc := NewService(c, conn)

	req := conn.Request(conn.NewMessage(bus.T("hal", "pump", "p1", "control", "preset_volume"),
		ControlRequest{Nozzle: 1, VolumeDL: 255, Price: 1122}, false))

	svc.Poll()

	select {
	case m := <-req.Channel():
		reply, ok := m.Payload.(ControlReply)
		if !ok || reply.Code != errcode.OK {
			t.Fatalf("want OK reply, got %+v ok=%v", m.Payload, ok)
		}
	default:
		t.Fatal("expected a reply to be published")
	}

	if c.Transaction("p1").State().String() != "preset_sent" {
		t.Fatalf("want preset_sent, got %v", c.Transaction("p1").State())
	}
}

func TestServiceControlRequestForUnknownPumpReturnsNotFound(t *testing.T) {
	c, _ := newTestController()
	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	svc := NewService(c, conn)

	req := conn.Request(conn.NewMessage(bus.T("hal", "pump", "missing", "control", "pause"), ControlRequest{}, false))
	svc.Poll()

	m := <-req.Channel()
	reply := m.Payload.(ControlReply)
	if reply.Code != errcode.PumpNotFound {
		t.Fatalf("want PumpNotFound, got %v", reply.Code)
	}
}

func TestAddSharedPumpRoutesBothIDsThroughOneLinkAndAdapter(t *testing.T) {
	c, l := newTestController()
	if ok := c.AddSharedPump(PumpConfig{ID: "p1-nozzle2", CtrlAddr: 0x00, SlaveAddr: 0x01, Price: 1122}, "p1", 0); !ok {
		t.Fatal("AddSharedPump against a registered id should succeed")
	}

	if c.links["p1-nozzle2"] != l {
		t.Fatal("shared pump should reuse the same Link")
	}
	if c.manager.Protocol("p1-nozzle2") != c.manager.Protocol("p1") {
		t.Fatal("shared pump should reuse the same adapter")
	}
	if len(c.protocols) != 1 {
		t.Fatalf("want exactly one distinct adapter driven per tick, got %d", len(c.protocols))
	}

	var due []string
	c.Tick(1000, due)
	feedFrame(l, 0x00, 0x01, 'S', []byte("13"))
	c.Tick(1001, due)

	// one physical exchange updates both ids' cached device state, since
	// they share the same Link.
	if c.Manager().Device("p1").Status != 1 || c.Manager().Device("p1-nozzle2").Status != 1 {
		t.Fatal("both shared ids should observe the same polled status")
	}

	c.RemovePump("p1-nozzle2")
	if len(c.protocols) != 1 {
		t.Fatalf("removing one of two ids sharing an adapter must not drop it from Tick's rotation, got %d protocols", len(c.protocols))
	}
	c.RemovePump("p1")
	if len(c.protocols) != 0 {
		t.Fatalf("removing the last id sharing an adapter should drop it from Tick's rotation, got %d protocols", len(c.protocols))
	}
}

func TestPublishStateReflectsDeviceCache(t *testing.T) {
	c, l := newTestController()
	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	svc := NewService(c, conn)

	var due []string
	c.Tick(1000, due)
	feedFrame(l, 0x00, 0x01, 'S', []byte("13"))
	c.Tick(1001, due)

	sub := conn.Subscribe(bus.T("hal", "pump", "p1", "state"))
	svc.PublishState("p1")

	m := <-sub.Channel()
	snap := m.Payload.(StateSnapshot)
	if snap.Status != 1 || snap.Nozzle != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

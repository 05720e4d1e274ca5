package pump

import (
	"testing"

	"github.com/censtar0502/gkl-pump-controller/errcode"
	"github.com/censtar0502/gkl-pump-controller/gkltypes"
)

type fakeProtocol struct {
	idle       bool
	pollCalled int
	events     []gkltypes.Event
}

func (p *fakeProtocol) Task() {}
func (p *fakeProtocol) IsIdle() bool { return p.idle }
func (p *fakeProtocol) PollStatus() error {
	p.pollCalled++
	p.idle = false // mirrors the real adapter going busy until its reply lands
	return nil
}
func (p *fakeProtocol) PresetVolume(gkltypes.Nozzle, gkltypes.Deciliters, gkltypes.Price) error {
	return nil
}
func (p *fakeProtocol) PresetMoney(gkltypes.Nozzle, gkltypes.Money, gkltypes.Price) error {
	return nil
}
func (p *fakeProtocol) Stop() error   { return nil }
func (p *fakeProtocol) Resume() error { return nil }
func (p *fakeProtocol) End() error    { return nil }
func (p *fakeProtocol) PollRealtimeVolume(gkltypes.Nozzle) error    { return nil }
func (p *fakeProtocol) PollRealtimeMoney(gkltypes.Nozzle) error     { return nil }
func (p *fakeProtocol) ReadTotalizer(gkltypes.TotalizerIndex) error { return nil }
func (p *fakeProtocol) ReadTransaction() error                      { return nil }
func (p *fakeProtocol) PopEvent() (gkltypes.Event, bool) {
	if len(p.events) == 0 {
		return gkltypes.Event{}, false
	}
	ev := p.events[0]
	p.events = p.events[1:]
	return ev, true
}

func TestRegisterSchedulesFirstPoll(t *testing.T) {
	m := NewManager(1000)
	proto := &fakeProtocol{idle: true}
	m.Register("p1", gkltypes.Addr{CtrlAddr: 0, SlaveAddr: 1}, 1122, proto, 0)

	m.Tick(0, nil)
	if proto.pollCalled != 0 {
		t.Fatalf("poll should not fire before its due time, got %d calls", proto.pollCalled)
	}
	m.Tick(1000, nil)
	if proto.pollCalled != 1 {
		t.Fatalf("want 1 poll at the due tick, got %d", proto.pollCalled)
	}
}

func TestBusyAdapterSkipsPollWithoutLosingSchedule(t *testing.T) {
	m := NewManager(1000)
	proto := &fakeProtocol{idle: false}
	m.Register("p1", gkltypes.Addr{CtrlAddr: 0, SlaveAddr: 1}, 1122, proto, 0)

	m.Tick(1000, nil)
	if proto.pollCalled != 0 {
		t.Fatalf("busy adapter must not receive a poll call, got %d", proto.pollCalled)
	}
	proto.idle = true
	m.Tick(2000, nil)
	if proto.pollCalled != 1 {
		t.Fatalf("want 1 poll once idle and next due tick arrives, got %d", proto.pollCalled)
	}
}

func TestEventRoutingUpdatesDeviceAndRetunesCadence(t *testing.T) {
	m := NewManager(1000)
	proto := &fakeProtocol{idle: true}
	m.Register("p1", gkltypes.Addr{CtrlAddr: 0, SlaveAddr: 1}, 1122, proto, 0)

	proto.events = append(proto.events, gkltypes.Event{
		Addr:   gkltypes.Addr{CtrlAddr: 0, SlaveAddr: 1},
		Kind:   gkltypes.EventStatus,
		Status: 6,
		Nozzle: 1,
	})
	m.Tick(0, nil)

	d := m.Device("p1")
	if d.Status != 6 || d.Nozzle != 1 {
		t.Fatalf("device state not updated: %+v", d)
	}

	// active-family status should retune cadence to ActivePollMs.
	proto.pollCalled = 0
	m.Tick(ActivePollMs, nil)
	if proto.pollCalled != 1 {
		t.Fatalf("expected active cadence poll at %dms, got %d calls", ActivePollMs, proto.pollCalled)
	}
}

func TestRequestPollNowOverridesCadence(t *testing.T) {
	m := NewManager(10_000)
	proto := &fakeProtocol{idle: true}
	m.Register("p1", gkltypes.Addr{CtrlAddr: 0, SlaveAddr: 1}, 1122, proto, 0)

	if code := m.RequestPollNow("p1", 5); code != errcode.OK {
		t.Fatalf("RequestPollNow: want OK, got %v", code)
	}
	m.Tick(5, nil)
	if proto.pollCalled != 1 {
		t.Fatalf("want immediate poll after RequestPollNow, got %d", proto.pollCalled)
	}
}

func TestSetPriceUnknownPumpReturnsNotFound(t *testing.T) {
	m := NewManager(1000)
	if code := m.SetPrice("missing", 1122); code != errcode.PumpNotFound {
		t.Fatalf("want PumpNotFound, got %v", code)
	}
}

func TestTwoIDsSharingOneAdapterBothObserveEachEventOnce(t *testing.T) {
	m := NewManager(1000)
	proto := &fakeProtocol{idle: true}
	m.Register("nozzle1", gkltypes.Addr{CtrlAddr: 0, SlaveAddr: 1}, 1122, proto, 0)
	m.Register("nozzle2", gkltypes.Addr{CtrlAddr: 0, SlaveAddr: 1}, 999, proto, 0)

	proto.events = append(proto.events, gkltypes.Event{
		Addr:   gkltypes.Addr{CtrlAddr: 0, SlaveAddr: 1},
		Kind:   gkltypes.EventStatus,
		Status: 1,
		Nozzle: 2,
	})
	m.Tick(0, nil)

	if m.Device("nozzle1").Status != 1 || m.Device("nozzle2").Status != 1 {
		t.Fatalf("both ids sharing the adapter should see the polled status: %+v %+v",
			m.Device("nozzle1"), m.Device("nozzle2"))
	}

	// PollStatus is issued once, not once per shared id, since the
	// second id's adapter is no longer idle after the first fires.
	proto.pollCalled = 0
	proto.idle = true
	m.Tick(1000, nil)
	if proto.pollCalled != 1 {
		t.Fatalf("want exactly 1 poll for the shared adapter, got %d", proto.pollCalled)
	}

	m.Unregister("nozzle2")
	if m.Device("nozzle1") == nil {
		t.Fatal("unregistering one shared id must not affect the other")
	}
	proto.pollCalled = 0
	proto.idle = true
	m.Tick(2000, nil)
	if proto.pollCalled != 1 {
		t.Fatalf("remaining shared id should still be polled, got %d", proto.pollCalled)
	}
}

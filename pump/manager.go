// Package pump holds the device registry and adaptive polling scheduler
// that sit between the protocol adapters and the transaction layer: it
// owns cached device state, routes adapter events into it, and decides
// when each pump's next status poll is due.
package pump

import (
	"github.com/censtar0502/gkl-pump-controller/adapter"
	"github.com/censtar0502/gkl-pump-controller/errcode"
	"github.com/censtar0502/gkl-pump-controller/gkltypes"
	"github.com/censtar0502/gkl-pump-controller/x/mathx"
)

// clampAddr clamps ctrl_addr/slave_addr to their legal wire range at
// assignment, the same as price below.
func clampAddr(addr gkltypes.Addr) gkltypes.Addr {
	return gkltypes.Addr{
		CtrlAddr:  byte(mathx.Clamp(int(addr.CtrlAddr), 0, 255)),
		SlaveAddr: byte(mathx.Clamp(int(addr.SlaveAddr), 0, 255)),
	}
}

func clampPrice(price gkltypes.Price) gkltypes.Price {
	return gkltypes.Price(mathx.Clamp(uint16(price), 0, uint16(gkltypes.MaxPrice)))
}

// ActivePollMs is the tight polling cadence used while a pump's status
// is in the transaction-active family (dispensing, finishing, nozzle
// returned); BasePollMs is the relaxed cadence used otherwise.
const ActivePollMs = 30

// IsActiveFamily reports whether status belongs to the
// transaction-active family {3,4,6,8,9}; any other code (including ones
// outside the known 0..9 range) is treated as idle-ish for polling
// cadence purposes.
func IsActiveFamily(s gkltypes.Status) bool {
	switch s {
	case 3, 4, 6, 8, 9:
		return true
	default:
		return false
	}
}

// entry binds a registered device to the protocol that drives it.
type entry struct {
	device   *Device
	protocol adapter.Protocol
}

// Manager is the device registry and polling scheduler. It holds one
// entry per pump, keyed both by id and by {ctrl_addr, slave_addr}, plus
// a grouping by adapter so that two pump ids sharing one Link/adapter
// (two dispensing points on the same controller address) both get the
// polled event fanned out to their own cached device state from a
// single physical exchange. It owns the Scheduler that decides when
// each pump's next status poll is due.
type Manager struct {
	basePollMs int64

	byID    map[string]*entry
	byAddr  map[gkltypes.Addr]*entry
	byProto map[adapter.Protocol][]*entry

	sched *Scheduler
}

// NewManager returns an empty Manager with the given base (idle-ish)
// poll cadence in milliseconds.
func NewManager(basePollMs int64) *Manager {
	return &Manager{
		basePollMs: basePollMs,
		byID:       make(map[string]*entry),
		byAddr:     make(map[gkltypes.Addr]*entry),
		byProto:    make(map[adapter.Protocol][]*entry),
		sched:      NewScheduler(),
	}
}

// Register adds a pump to the registry, scheduling its first status
// poll at the base cadence. proto may already be registered under a
// different id, in which case the two ids share one adapter/Link and
// both receive every event it produces.
func (m *Manager) Register(id string, addr gkltypes.Addr, price gkltypes.Price, proto adapter.Protocol, nowMs int64) {
	addr = clampAddr(addr)
	price = clampPrice(price)
	d := &Device{ID: id, Addr: addr, Price: price}
	e := &entry{device: d, protocol: proto}
	m.byID[id] = e
	m.byAddr[addr] = e
	m.byProto[proto] = append(m.byProto[proto], e)
	m.sched.Upsert(id, nowMs, m.basePollMs)
}

// Unregister removes a pump from the registry and its schedule. If its
// adapter is still shared with another id, that id keeps receiving
// events from it.
func (m *Manager) Unregister(id string) {
	e, ok := m.byID[id]
	if !ok {
		return
	}
	delete(m.byID, id)
	delete(m.byAddr, e.device.Addr)
	m.sched.Remove(id)

	entries := m.byProto[e.protocol]
	for i, other := range entries {
		if other == e {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(m.byProto, e.protocol)
	} else {
		m.byProto[e.protocol] = entries
	}
}

// Device returns the cached device state by id, or nil if unknown.
func (m *Manager) Device(id string) *Device {
	if e, ok := m.byID[id]; ok {
		return e.device
	}
	return nil
}

// DeviceByAddr returns the cached device state by controller/slave
// address, or nil if unknown.
func (m *Manager) DeviceByAddr(addr gkltypes.Addr) *Device {
	if e, ok := m.byAddr[addr]; ok {
		return e.device
	}
	return nil
}

// Protocol returns the adapter bound to a registered pump id, or nil.
func (m *Manager) Protocol(id string) adapter.Protocol {
	if e, ok := m.byID[id]; ok {
		return e.protocol
	}
	return nil
}

// SetPrice updates a pump's configured price per liter, clamped to
// gkltypes.MaxPrice.
func (m *Manager) SetPrice(id string, price gkltypes.Price) errcode.Code {
	e, ok := m.byID[id]
	if !ok {
		return errcode.PumpNotFound
	}
	e.device.Price = clampPrice(price)
	return errcode.OK
}

// SetAddr re-keys a pump under a new controller/slave address, e.g.
// after a rewiring of the serial bus. addr is clamped before use.
func (m *Manager) SetAddr(id string, addr gkltypes.Addr) errcode.Code {
	e, ok := m.byID[id]
	if !ok {
		return errcode.PumpNotFound
	}
	addr = clampAddr(addr)
	delete(m.byAddr, e.device.Addr)
	e.device.Addr = addr
	m.byAddr[addr] = e
	return errcode.OK
}

// ClearFail resets a pump's failure counter and last error, e.g. after
// an operator acknowledges a no-connect condition on the field.
func (m *Manager) ClearFail(id string) errcode.Code {
	e, ok := m.byID[id]
	if !ok {
		return errcode.PumpNotFound
	}
	e.device.FailCount = 0
	e.device.LastError = errcode.OK
	return errcode.OK
}

// RequestPollNow pulls a single pump's next status poll to the current
// tick, regardless of cadence.
func (m *Manager) RequestPollNow(id string, nowMs int64) errcode.Code {
	if _, ok := m.byID[id]; !ok {
		return errcode.PumpNotFound
	}
	m.sched.RequestNow(id, nowMs)
	return errcode.OK
}

// RequestPollAllNow pulls every registered pump's next status poll to
// the current tick.
func (m *Manager) RequestPollAllNow(nowMs int64) {
	m.sched.RequestAllNow(nowMs)
}

// Tick advances event routing and polling for one loop iteration:
//  1. Drain every distinct adapter's queued events exactly once (even
//     when several pump ids share it) and fan each event out to every
//     device registered against that adapter, retuning each one's poll
//     cadence if its status family changed.
//  2. Issue an S poll for every pump whose scheduled time has arrived
//     and whose adapter is idle; a pump whose adapter is busy (or
//     refuses the poll) stays due: the re-arm Due gave it is pulled back
//     to nowMs, so it is retried on the following tick.
func (m *Manager) Tick(nowMs int64, dueScratch []string) {
	for proto, entries := range m.byProto {
		for {
			ev, ok := proto.PopEvent()
			if !ok {
				break
			}
			for _, e := range entries {
				e.device.ApplyEvent(ev, nowMs)
				if ev.Kind == gkltypes.EventStatus {
					m.retuneCadence(e, nowMs)
				}
			}
		}
	}

	due := m.sched.Due(nowMs, dueScratch[:0])
	for _, id := range due {
		e, ok := m.byID[id]
		if !ok {
			continue
		}
		if !e.protocol.IsIdle() || e.protocol.PollStatus() != nil {
			m.sched.RequestNow(id, nowMs)
		}
	}
}

func (m *Manager) retuneCadence(e *entry, nowMs int64) {
	if IsActiveFamily(e.device.Status) {
		m.sched.Upsert(e.device.ID, nowMs, ActivePollMs)
	} else {
		m.sched.Upsert(e.device.ID, nowMs, m.basePollMs)
	}
}

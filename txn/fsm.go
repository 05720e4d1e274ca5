package txn

import (
	"github.com/censtar0502/gkl-pump-controller/adapter"
	"github.com/censtar0502/gkl-pump-controller/errcode"
	"github.com/censtar0502/gkl-pump-controller/gkltypes"
	"github.com/censtar0502/gkl-pump-controller/pump"
)

// Transaction is one pump's transaction state machine. It reads a
// *pump.Device for cached status and sequence counters and drives an
// adapter.Protocol to issue commands, but owns none of that state
// itself — Tick is idempotent to call on every loop iteration even when
// nothing has changed.
type Transaction struct {
	device *pump.Device
	proto  adapter.Protocol

	state  State
	nozzle gkltypes.Nozzle

	finalRequested bool
	waitTrxSeq     uint32

	rtStep            realtimeStep
	cycleStatusTimeMs int64
	waitVolSeq        uint32
	waitMoneySeq      uint32
	stepEnteredMs     int64
}

// New returns an Idle Transaction bound to one pump's cached device
// state and protocol adapter.
func New(device *pump.Device, proto adapter.Protocol) *Transaction {
	return &Transaction{device: device, proto: proto}
}

// State returns the Transaction's current lifecycle state.
func (t *Transaction) State() State { return t.state }

// StartVolume issues a volume preset, valid only from Idle with an idle
// adapter; repeated calls with the FSM already past Idle are ignored
// rather than erroring, matching preset_volume's idempotence on cache.
func (t *Transaction) StartVolume(nozzle gkltypes.Nozzle, volumeDL gkltypes.Deciliters, price gkltypes.Price) errcode.Code {
	if t.state != Idle {
		return errcode.OK
	}
	if !t.proto.IsIdle() {
		return errcode.Busy
	}
	if err := t.proto.PresetVolume(nozzle, volumeDL, price); err != nil {
		return errcode.Of(err)
	}
	t.nozzle = nozzle
	t.state = PresetSent
	return errcode.OK
}

// StartMoney issues a money preset, valid only from Idle.
func (t *Transaction) StartMoney(nozzle gkltypes.Nozzle, money gkltypes.Money, price gkltypes.Price) errcode.Code {
	if t.state != Idle {
		return errcode.OK
	}
	if !t.proto.IsIdle() {
		return errcode.Busy
	}
	if err := t.proto.PresetMoney(nozzle, money, price); err != nil {
		return errcode.Of(err)
	}
	t.nozzle = nozzle
	t.state = PresetSent
	return errcode.OK
}

// Pause sends B, valid only from Dispensing.
func (t *Transaction) Pause() errcode.Code {
	if t.state != Dispensing {
		return errcode.IllegalState
	}
	if !t.proto.IsIdle() {
		return errcode.Busy
	}
	if err := t.proto.Stop(); err != nil {
		return errcode.Of(err)
	}
	t.state = Paused
	return errcode.OK
}

// Resume sends G, valid only from Paused.
func (t *Transaction) Resume() errcode.Code {
	if t.state != Paused {
		return errcode.IllegalState
	}
	if !t.proto.IsIdle() {
		return errcode.Busy
	}
	if err := t.proto.Resume(); err != nil {
		return errcode.Of(err)
	}
	t.state = Dispensing
	return errcode.OK
}

// Cancel aborts a transaction: a silent local reset from PresetSent or
// Armed (the wire has not committed to anything yet), or an N command
// from any other non-idle state.
func (t *Transaction) Cancel() errcode.Code {
	switch t.state {
	case Idle:
		return errcode.OK
	case PresetSent, Armed:
		t.state = Idle
		return errcode.OK
	default:
		if !t.proto.IsIdle() {
			return errcode.Busy
		}
		if err := t.proto.End(); err != nil {
			return errcode.Of(err)
		}
		t.state = Closing
		return errcode.OK
	}
}

// Tick advances the Transaction by one loop iteration against the
// pump's current cached status.
func (t *Transaction) Tick(nowMs int64) {
	s := t.device.Status
	switch t.state {
	case Idle:
		if s == 9 && t.proto.IsIdle() {
			if t.proto.End() == nil {
				t.state = Closing
			}
		}

	case PresetSent:
		switch {
		case s == 3 || s == 4 || s == 6:
			t.state = Armed
		case s == 1:
			t.state = Idle
		}

	case Armed:
		switch {
		case s == 4 || s == 6:
			t.state = Dispensing
			t.startRealtimeCycle()
		case s == 1:
			t.state = Idle
		}

	case Dispensing:
		switch {
		case s == 8:
			t.state = Complete
			t.finalRequested = false
		case s == 1:
			t.state = Idle
		case (s == 3 || s == 4 || s == 6) && t.proto.IsIdle():
			t.runRealtimeCycle(nowMs)
		}

	case Paused:
		switch s {
		case 6:
			t.state = Dispensing
		case 8:
			t.state = Complete
			t.finalRequested = false
		case 1:
			t.state = Idle
		}

	case Complete:
		switch {
		case s == 8 && !t.finalRequested && t.proto.IsIdle():
			if t.proto.ReadTransaction() == nil {
				t.finalRequested = true
				t.waitTrxSeq = t.device.TrxFinalSeq
			}
		case s == 9 && t.proto.IsIdle():
			if t.proto.End() == nil {
				t.state = Closing
			}
		}

	case Closing:
		if s == 1 {
			t.clearRealtimeCaches()
			t.state = Idle
		}
	}
}

func (t *Transaction) startRealtimeCycle() {
	t.rtStep = waitSR
	t.cycleStatusTimeMs = t.device.LastStatusMs
}

// runRealtimeCycle drives the S -> L -> R interleave described for
// Dispensing: it is only ever called while the adapter is idle, so
// waitL/waitR only need to notice a sequence counter bump (the response
// already landed) or time out and restart the cycle at waitSR.
func (t *Transaction) runRealtimeCycle(nowMs int64) {
	switch t.rtStep {
	case waitSR:
		if t.device.LastStatusMs == t.cycleStatusTimeMs {
			return
		}
		t.cycleStatusTimeMs = t.device.LastStatusMs
		t.waitVolSeq = t.device.VolSeq
		if t.proto.PollRealtimeVolume(t.nozzle) == nil {
			t.rtStep = waitL
			t.stepEnteredMs = nowMs
		}

	case waitL:
		if t.device.VolSeq != t.waitVolSeq {
			t.waitMoneySeq = t.device.MoneySeq
			if t.proto.PollRealtimeMoney(t.nozzle) == nil {
				t.rtStep = waitR
				t.stepEnteredMs = nowMs
			}
			return
		}
		if nowMs-t.stepEnteredMs >= realtimeStepTimeoutMs {
			t.rtStep = waitSR
		}

	case waitR:
		if t.device.MoneySeq != t.waitMoneySeq {
			t.rtStep = waitSR
			return
		}
		if nowMs-t.stepEnteredMs >= realtimeStepTimeoutMs {
			t.rtStep = waitSR
		}
	}
}

func (t *Transaction) clearRealtimeCaches() {
	t.device.RTVolumeDL = 0
	t.device.RTMoney = 0
}

package pump

import (
	"github.com/censtar0502/gkl-pump-controller/errcode"
	"github.com/censtar0502/gkl-pump-controller/gkltypes"
)

// TotalizerCount is the number of independently addressable totalizer
// counters a pump exposes (indices 0..7), a supplement over a single
// cached totalizer value: a real forecourt pump answers C0..C7 for
// distinct nozzle/grade combinations, and caching only the last index
// queried would let stale entries silently present as current.
const TotalizerCount = 8

// TotalizerEntry is one cached totalizer counter and its freshness
// sequence.
type TotalizerEntry struct {
	VolumeDL gkltypes.Deciliters
	Seq      uint32
}

// Device is the Pump Manager's registry entry: identity, configuration,
// and every cached field the manager updates in response to an Event. It
// is mutated only by the Manager's event-routing path; nothing else
// holds a writable reference to one.
type Device struct {
	ID    string
	Addr  gkltypes.Addr
	Price gkltypes.Price

	Status       gkltypes.Status
	Nozzle       gkltypes.Nozzle
	LastStatusMs int64

	RTVolumeDL gkltypes.Deciliters
	RTMoney    gkltypes.Money
	VolSeq     uint32
	MoneySeq   uint32

	Totalizers [TotalizerCount]TotalizerEntry

	TrxVolumeDL gkltypes.Deciliters
	TrxMoney    gkltypes.Money
	TrxPrice    gkltypes.Price
	TrxNozzle   gkltypes.Nozzle
	TrxFinalSeq uint32

	LastError errcode.Code
	FailCount uint8
}

// ApplyEvent folds one Event into the device's cached state, the
// manager's only place of mutation. nowMs is the caller's loop
// timestamp, not re-derived here, so every device updated on the same
// tick shares one timestamp.
func (d *Device) ApplyEvent(ev gkltypes.Event, nowMs int64) {
	switch ev.Kind {
	case gkltypes.EventStatus:
		d.Status = ev.Status
		d.Nozzle = ev.Nozzle
		d.LastStatusMs = nowMs
		d.FailCount = 0
	case gkltypes.EventError:
		d.LastError = errcode.Code(ev.ErrCode)
		d.FailCount = ev.FailCount
	case gkltypes.EventRealtimeVolume:
		d.RTVolumeDL = ev.VolumeDL
		d.VolSeq++
		d.FailCount = 0
	case gkltypes.EventRealtimeMoney:
		d.RTMoney = ev.Money
		d.MoneySeq++
		d.FailCount = 0
	case gkltypes.EventTotalizer:
		if int(ev.TotalizerIndex) < TotalizerCount {
			e := &d.Totalizers[ev.TotalizerIndex]
			e.VolumeDL = ev.TotalizerDL
			e.Seq++
		}
		d.FailCount = 0
	case gkltypes.EventTransactionFinal:
		d.TrxVolumeDL = ev.VolumeDL
		d.TrxMoney = ev.Money
		d.TrxPrice = ev.TrxPrice
		d.TrxNozzle = ev.Nozzle
		d.TrxFinalSeq++
		d.FailCount = 0
	}
}

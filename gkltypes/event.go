package gkltypes

// EventKind tags the variant carried by an Event.
type EventKind uint8

const (
	EventStatus EventKind = iota
	EventError
	EventRealtimeVolume
	EventRealtimeMoney
	EventTotalizer
	EventTransactionFinal
)

func (k EventKind) String() string {
	switch k {
	case EventStatus:
		return "status"
	case EventError:
		return "error"
	case EventRealtimeVolume:
		return "realtime_volume"
	case EventRealtimeMoney:
		return "realtime_money"
	case EventTotalizer:
		return "totalizer"
	case EventTransactionFinal:
		return "transaction_final"
	default:
		return "unknown"
	}
}

// Addr identifies a pump's channel/slave address pair.
type Addr struct {
	CtrlAddr  byte
	SlaveAddr byte
}

// Event is the tagged variant produced by the protocol adapter and
// consumed by the pump manager. Only the payload fields labelled with
// the event's Kind are meaningful (EventTransactionFinal uses several
// groups); this keeps the type a plain
// value (no interface, no allocation) the way the rest of this module's
// hot path avoids allocating per-event.
type Event struct {
	Addr Addr
	Kind EventKind

	// EventStatus
	Status Status
	Nozzle Nozzle

	// EventError
	ErrCode   string
	FailCount uint8

	// EventRealtimeVolume / EventTransactionFinal
	VolumeDL Deciliters

	// EventRealtimeMoney / EventTransactionFinal
	Money Money

	// EventTotalizer
	TotalizerIndex TotalizerIndex
	TotalizerDL    Deciliters

	// EventTransactionFinal
	TrxPrice Price
}

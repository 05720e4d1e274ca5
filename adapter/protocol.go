// Package adapter exposes a pump's wire protocol as a small capability
// interface, the way halcore.Adaptor abstracts a concrete sensor driver
// behind Trigger/Collect/Control: the pump manager drives a Protocol
// without knowing it is GasKitLink underneath, leaving room for a second
// protocol family later without touching manager or txn code.
package adapter

import "github.com/censtar0502/gkl-pump-controller/gkltypes"

// Protocol is the capability surface the pump manager and transaction
// FSM drive. Every method is non-blocking: a command method starts an
// exchange (or reports Busy) and the eventual result arrives later as an
// Event from PopEvent, read during the same cooperative Task() tick.
type Protocol interface {
	// Task advances the adapter's own housekeeping (and the Link
	// beneath it). Must be called every loop tick.
	Task()

	// IsIdle reports whether a new command can be issued right now.
	IsIdle() bool

	PollStatus() error

	PresetVolume(nozzle gkltypes.Nozzle, volumeDL gkltypes.Deciliters, price gkltypes.Price) error
	PresetMoney(nozzle gkltypes.Nozzle, money gkltypes.Money, price gkltypes.Price) error
	Stop() error
	Resume() error
	End() error

	PollRealtimeVolume(nozzle gkltypes.Nozzle) error
	PollRealtimeMoney(nozzle gkltypes.Nozzle) error
	ReadTotalizer(index gkltypes.TotalizerIndex) error
	ReadTransaction() error

	// PopEvent returns the next queued Event and true, or the zero
	// Event and false if none is pending.
	PopEvent() (gkltypes.Event, bool)
}

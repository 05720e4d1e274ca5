// Package host wires the protocol-agnostic core (link, gklproto, adapter,
// pump, txn) onto the bus: publishing cached pump state, exposing the
// transaction API as request/reply, applying Settings documents, and
// driving the single cooperative main loop. Nothing under the core
// packages imports bus or host; the dependency runs one way.
package host

import "github.com/censtar0502/gkl-pump-controller/gkltypes"

// Config is supplied on the "config/pump" bus topic and describes every
// GKL pump the controller should manage plus the shared base polling
// cadence.
type Config struct {
	BasePollMs int64        `json:"base_poll_ms"`
	Pumps      []PumpConfig `json:"pumps"`
}

// PumpConfig describes one physical pump's bus address and configured
// price per liter.
type PumpConfig struct {
	ID        string         `json:"id"`
	CtrlAddr  byte           `json:"ctrl_addr"`
	SlaveAddr byte           `json:"slave_addr"`
	Price     gkltypes.Price `json:"price"`
}

func (p PumpConfig) addr() gkltypes.Addr {
	return gkltypes.Addr{CtrlAddr: p.CtrlAddr, SlaveAddr: p.SlaveAddr}
}

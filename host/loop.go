package host

import (
	"github.com/censtar0502/gkl-pump-controller/adapter"
	"github.com/censtar0502/gkl-pump-controller/link"
	"github.com/censtar0502/gkl-pump-controller/pump"
	"github.com/censtar0502/gkl-pump-controller/transport"
	"github.com/censtar0502/gkl-pump-controller/txn"
)

// Controller owns every registered pump's Link, protocol adapter, cached
// device state, and Transaction, and drives all of them from one
// cooperative loop iteration. There is no per-pump goroutine: the whole
// core stack is built around a single owner of Link state per tick.
//
// Multiple pump ids may share one Link and adapter (two dispensing
// points wired to the same controller address). protoRefs counts how
// many pump ids currently reference each adapter, so Tick drives each
// distinct adapter's Task exactly once per tick no matter how many ids
// share it, and RemovePump only drops the adapter from that rotation
// once its last id is gone.
type Controller struct {
	manager *pump.Manager
	logger  *Logger

	links        map[string]*link.Link
	transactions map[string]*txn.Transaction
	order        []string

	protocols []adapter.Protocol
	protoRefs map[adapter.Protocol]int

	lastTickMs int64
}

// NewController returns an empty Controller. logger may be nil to skip
// raw-trace publishing entirely.
func NewController(basePollMs int64, logger *Logger) *Controller {
	return &Controller{
		manager:      pump.NewManager(basePollMs),
		logger:       logger,
		links:        make(map[string]*link.Link),
		transactions: make(map[string]*txn.Transaction),
		protoRefs:    make(map[adapter.Protocol]int),
	}
}

// Manager returns the underlying device registry and poll scheduler.
func (c *Controller) Manager() *pump.Manager { return c.manager }

// Transaction returns the registered Transaction for id, or nil.
func (c *Controller) Transaction(id string) *txn.Transaction { return c.transactions[id] }

// AddPump registers one pump behind a freshly constructed Link and GKL
// adapter bound to port. The caller owns port's lifetime and wiring
// (platform-specific UART or the host simulated transport); Controller
// only drives it.
func (c *Controller) AddPump(cfg PumpConfig, port transport.Port, nowMs int64) *link.Link {
	l := link.New()
	l.Init(port, link.NoopCache{})
	proto := adapter.NewGKL(l, cfg.CtrlAddr, cfg.SlaveAddr)
	c.register(cfg, proto, nowMs)
	c.links[cfg.ID] = l
	c.protocols = append(c.protocols, proto)
	c.protoRefs[proto] = 1
	return l
}

// AddSharedPump registers a second (or further) pump id against the Link
// and adapter already driving sharedWithID, for two dispensing points
// wired to the same controller/slave pair. It returns false if
// sharedWithID is not a registered pump.
func (c *Controller) AddSharedPump(cfg PumpConfig, sharedWithID string, nowMs int64) bool {
	l, ok := c.links[sharedWithID]
	if !ok {
		return false
	}
	proto := c.manager.Protocol(sharedWithID)
	if proto == nil {
		return false
	}
	c.register(cfg, proto, nowMs)
	c.links[cfg.ID] = l
	c.protoRefs[proto]++
	return true
}

func (c *Controller) register(cfg PumpConfig, proto adapter.Protocol, nowMs int64) {
	c.manager.Register(cfg.ID, cfg.addr(), cfg.Price, proto, nowMs)
	c.transactions[cfg.ID] = txn.New(c.manager.Device(cfg.ID), proto)
	c.order = append(c.order, cfg.ID)
}

// RemovePump drops a pump from the registry, its schedule, and its
// Transaction. The underlying Link and adapter are only dropped from
// Tick's rotation once every id sharing them has been removed.
func (c *Controller) RemovePump(id string) {
	proto := c.manager.Protocol(id)
	c.manager.Unregister(id)
	delete(c.links, id)
	delete(c.transactions, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if proto == nil {
		return
	}
	c.protoRefs[proto]--
	if c.protoRefs[proto] > 0 {
		return
	}
	delete(c.protoRefs, proto)
	for i, p := range c.protocols {
		if p == proto {
			c.protocols = append(c.protocols[:i], c.protocols[i+1:]...)
			break
		}
	}
}

// ApplySettings reconfigures already-registered pumps (price, address)
// from a Settings document. It never adds or removes a pump: that
// requires a concrete transport.Port, which only the platform-specific
// startup wiring has, not a bus-delivered config document.
func (c *Controller) ApplySettings(cfg Config, nowMs int64) {
	for _, p := range cfg.Pumps {
		if c.manager.Device(p.ID) == nil {
			continue
		}
		c.manager.SetPrice(p.ID, p.Price)
		c.manager.SetAddr(p.ID, p.addr())
	}
}

// Tick drives one cooperative iteration: every distinct adapter's Task
// (which in turn drives its Link) exactly once even if several pump ids
// share it, the manager's event routing and poll scheduling, every
// transaction against the freshly updated cache, and finally one
// raw-trace drain per link if a logger is attached.
func (c *Controller) Tick(nowMs int64, dueScratch []string) {
	c.lastTickMs = nowMs

	for _, proto := range c.protocols {
		proto.Task()
	}

	c.manager.Tick(nowMs, dueScratch)

	for _, id := range c.order {
		if t := c.transactions[id]; t != nil {
			t.Tick(nowMs)
		}
	}

	if c.logger != nil {
		for _, id := range c.order {
			c.logger.Trace(id, c.links[id])
		}
	}
}

package host

import (
	"github.com/censtar0502/gkl-pump-controller/bus"
	"github.com/censtar0502/gkl-pump-controller/errcode"
	"github.com/censtar0502/gkl-pump-controller/gkltypes"
)

// StateSnapshot is the retained payload published to
// "hal/pump/<id>/state" by PublishState and PublishAllStates. It is
// published only when one of those is called; a change to a pump's
// cached state does not publish it by itself.
type StateSnapshot struct {
	Status      gkltypes.Status     `json:"status"`
	Nozzle      gkltypes.Nozzle     `json:"nozzle"`
	TrxState    string              `json:"trx_state"`
	RTVolumeDL  gkltypes.Deciliters `json:"rt_volume_dl"`
	RTMoney     gkltypes.Money      `json:"rt_money"`
	TrxVolumeDL gkltypes.Deciliters `json:"trx_volume_dl"`
	TrxMoney    gkltypes.Money      `json:"trx_money"`
	TrxPrice    gkltypes.Price      `json:"trx_price"`
	LastError   errcode.Code        `json:"last_error"`
	FailCount   uint8               `json:"fail_count"`
}

// ControlRequest is the payload on "hal/pump/<id>/control/<verb>"; a
// verb only reads the fields it needs.
type ControlRequest struct {
	Nozzle   gkltypes.Nozzle     `json:"nozzle"`
	VolumeDL gkltypes.Deciliters `json:"volume_dl"`
	Money    gkltypes.Money      `json:"money"`
	Price    gkltypes.Price      `json:"price"`
	Addr     gkltypes.Addr       `json:"addr"`
}

// ControlReply is published back on a control request's ReplyTo topic.
type ControlReply struct {
	Code errcode.Code `json:"code"`
}

// wildcardSingle matches the Bus default single-token wildcard (see
// bus.NewBus); a Bus built with a different Options.SingleWildcard needs
// a matching Service built with its own subscription topic.
const wildcardSingle = "+"

// Service wires a Controller onto the bus: retained state snapshots,
// request/reply control verbs on "hal/pump/<id>/control/<verb>", and
// Settings documents on "config/pump". It never blocks: Poll drains
// whatever is pending on each subscription's channel and returns.
type Service struct {
	ctl  *Controller
	conn *bus.Connection

	control *bus.Subscription
	config  *bus.Subscription
}

// NewService subscribes conn to this controller's control and config
// topics.
func NewService(ctl *Controller, conn *bus.Connection) *Service {
	return &Service{
		ctl:     ctl,
		conn:    conn,
		control: conn.Subscribe(bus.T("hal", "pump", wildcardSingle, "control", wildcardSingle)),
		config:  conn.Subscribe(bus.T("config", "pump")),
	}
}

// Poll drains every pending control and config message without
// blocking, applying each against the Controller. Call once per loop
// iteration.
func (s *Service) Poll() {
	for {
		select {
		case msg := <-s.control.Channel():
			s.handleControl(msg)
		default:
			goto drainedControl
		}
	}
drainedControl:
	for {
		select {
		case msg := <-s.config.Channel():
			s.handleConfig(msg)
		default:
			return
		}
	}
}

func (s *Service) handleControl(msg *bus.Message) {
	if msg == nil || len(msg.Topic) != 5 {
		return
	}
	id, _ := msg.Topic[2].(string)
	verb, _ := msg.Topic[4].(string)
	req, _ := msg.Payload.(ControlRequest)

	code := s.applyControl(id, verb, req)
	s.conn.Reply(msg, ControlReply{Code: code}, false)
}

func (s *Service) applyControl(id, verb string, req ControlRequest) errcode.Code {
	t := s.ctl.Transaction(id)
	if t == nil {
		return errcode.PumpNotFound
	}
	switch verb {
	case "preset_volume":
		return t.StartVolume(req.Nozzle, req.VolumeDL, req.Price)
	case "preset_money":
		return t.StartMoney(req.Nozzle, req.Money, req.Price)
	case "pause":
		return t.Pause()
	case "resume":
		return t.Resume()
	case "cancel":
		return t.Cancel()
	case "poll_now":
		return s.ctl.Manager().RequestPollNow(id, s.ctl.lastTickMs)
	case "set_price":
		return s.ctl.Manager().SetPrice(id, req.Price)
	case "set_addr":
		return s.ctl.Manager().SetAddr(id, req.Addr)
	case "clear_fail":
		return s.ctl.Manager().ClearFail(id)
	default:
		return errcode.Param
	}
}

func (s *Service) handleConfig(msg *bus.Message) {
	cfg, ok := msg.Payload.(*Config)
	if !ok {
		return
	}
	s.ctl.ApplySettings(*cfg, s.ctl.lastTickMs)
}

// PublishState publishes a retained StateSnapshot for one registered
// pump, the way a change to the underlying Device is surfaced to the
// rest of the bus.
func (s *Service) PublishState(id string) {
	d := s.ctl.Manager().Device(id)
	if d == nil {
		return
	}
	t := s.ctl.Transaction(id)
	trxState := "unknown"
	if t != nil {
		trxState = t.State().String()
	}
	snap := StateSnapshot{
		Status:      d.Status,
		Nozzle:      d.Nozzle,
		TrxState:    trxState,
		RTVolumeDL:  d.RTVolumeDL,
		RTMoney:     d.RTMoney,
		TrxVolumeDL: d.TrxVolumeDL,
		TrxMoney:    d.TrxMoney,
		TrxPrice:    d.TrxPrice,
		LastError:   d.LastError,
		FailCount:   d.FailCount,
	}
	s.conn.Publish(s.conn.NewMessage(bus.T("hal", "pump", id, "state"), snap, true))
}

// PublishAllStates publishes every registered pump's retained snapshot,
// e.g. once after a config change has been applied.
func (s *Service) PublishAllStates() {
	for _, id := range s.ctl.order {
		s.PublishState(id)
	}
}

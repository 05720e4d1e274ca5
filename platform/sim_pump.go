//go:build !tinygo

// Package platform supplies the concrete transport.Port implementations
// the core engine is built against: a simulated pump for host
// development (cmd/pumpctl) and, on a tinygo
// rp2040/rp2350 build, the real UART wiring.
package platform

import (
	"github.com/censtar0502/gkl-pump-controller/gkltypes"
)

// simPump is a tiny stand-in for a real GasKitLink pump, just enough to
// exercise the full preset -> armed -> dispensing -> complete -> closed
// lifecycle and the S -> L -> R realtime interleave without hardware.
// It advances strictly on each S poll it receives rather than on a wall
// clock, so a host test can drive it deterministically.
type simPump struct {
	status gkltypes.Status
	nozzle gkltypes.Nozzle

	presetVolumeCL uint32
	presetMoneyM   uint32
	price          uint16

	dispensedCL uint32
	statusPolls int

	totalizersCL [8]uint32
}

func newSimPump() *simPump {
	return &simPump{status: 1, totalizersCL: [8]uint32{100000, 250000}}
}

// ackPayload is the fixed 2-byte body of a 'D' Ack response, the reply
// a real pump gives to V/M/B/G/N: framing confirmation only, carrying
// no status of its own (the next S poll carries the actual effect).
var ackPayload = []byte("00")

// handle decodes one inbound command frame and returns the encoded
// response frame, or ok=false for a malformed frame the real pump would
// simply never answer (mirroring a dropped/garbled request on the
// wire).
func (p *simPump) handle(frame []byte) (resp []byte, ok bool) {
	f, err := gkltypes.Decode(frame, 0)
	if err != nil {
		return nil, false
	}
	data := f.Payload()

	switch f.Cmd {
	case 'S':
		p.statusPolls++
		p.advance()
		return gkltypes.Encode(nil, f.Ctrl, f.Slave, 'S', statusPayload(p.status, p.nozzle)), true

	case 'V':
		nozzle, volCL, price, ok := parsePreset(data)
		if !ok {
			return nil, false
		}
		p.nozzle = nozzle
		p.presetVolumeCL = volCL
		p.presetMoneyM = 0
		p.price = price
		p.status = 3
		p.dispensedCL = 0
		p.statusPolls = 0
		return gkltypes.Encode(nil, f.Ctrl, f.Slave, 'D', ackPayload), true

	case 'M':
		nozzle, moneyM, price, ok := parsePreset(data)
		if !ok {
			return nil, false
		}
		p.nozzle = nozzle
		p.presetMoneyM = moneyM
		p.presetVolumeCL = 0
		p.price = price
		p.status = 3
		p.dispensedCL = 0
		p.statusPolls = 0
		return gkltypes.Encode(nil, f.Ctrl, f.Slave, 'D', ackPayload), true

	case 'B':
		p.status = 4
		return gkltypes.Encode(nil, f.Ctrl, f.Slave, 'D', ackPayload), true

	case 'G':
		p.status = 6
		return gkltypes.Encode(nil, f.Ctrl, f.Slave, 'D', ackPayload), true

	case 'N':
		p.status = 1
		return gkltypes.Encode(nil, f.Ctrl, f.Slave, 'D', ackPayload), true

	case 'L':
		out := append([]byte{byte('0' + p.nozzle), ';'}, asciiWidth(p.dispensedCL, 8)...)
		return gkltypes.Encode(nil, f.Ctrl, f.Slave, 'L', out), true

	case 'R':
		money := dispensedMoney(p.dispensedCL, p.price)
		out := append([]byte{byte('0' + p.nozzle), ';'}, asciiWidth(money, 8)...)
		return gkltypes.Encode(nil, f.Ctrl, f.Slave, 'R', out), true

	case 'C':
		idx := 0
		if len(data) > 0 {
			idx = int(data[0] - '0')
		}
		var v uint32
		if idx >= 0 && idx < len(p.totalizersCL) {
			v = p.totalizersCL[idx]
		}
		out := append([]byte{byte('0' + idx), ';'}, asciiWidth(v, 9)...)
		return gkltypes.Encode(nil, f.Ctrl, f.Slave, 'C', out), true

	case 'T':
		money := dispensedMoney(p.dispensedCL, p.price)
		out := make([]byte, 0, 22)
		out = append(out, byte('0'+p.nozzle), 'p', '8', ';')
		out = append(out, ascii6(money)...)
		out = append(out, ';')
		out = append(out, ascii6(p.dispensedCL)...)
		out = append(out, ';')
		out = append(out, ascii4(uint32(p.price))...)
		return gkltypes.Encode(nil, f.Ctrl, f.Slave, 'T', out), true

	default:
		return nil, false
	}
}

// advance walks the status forward a step or two per S poll once a
// transaction is underway, driving the whole Armed -> Dispensing ->
// Complete progression purely off poll count.
func (p *simPump) advance() {
	switch p.status {
	case 3:
		if p.statusPolls >= 2 {
			p.status = 6
		}
	case 6:
		step := uint32(50) // 0.5 L per poll, centiliters
		p.dispensedCL += step
		target := p.presetVolumeCL
		if target == 0 && p.presetMoneyM > 0 && p.price > 0 {
			target = p.presetMoneyM * 100 / uint32(p.price) * 10
		}
		if target > 0 && p.dispensedCL >= target {
			p.dispensedCL = target
			p.status = 8
		}
	}
}

func statusPayload(status gkltypes.Status, nozzle gkltypes.Nozzle) []byte {
	return []byte{byte('0' + status), byte('0' + nozzle)}
}

func parsePreset(data []byte) (nozzle gkltypes.Nozzle, amount uint32, price uint16, ok bool) {
	// "<nozzle>;<amount:6>;<price:4>"
	if len(data) < 1 {
		return 0, 0, 0, false
	}
	nozzle = gkltypes.Nozzle(data[0] - '0')
	rest := data[1:]
	if len(rest) > 0 && rest[0] == ';' {
		rest = rest[1:]
	}
	i := indexByte(rest, ';')
	if i < 0 {
		return 0, 0, 0, false
	}
	a, ok1 := parseDigits(rest[:i])
	p, ok2 := parseDigits(rest[i+1:])
	if !ok1 || !ok2 {
		return 0, 0, 0, false
	}
	return nozzle, a, uint16(p), true
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

func parseDigits(b []byte) (uint32, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var v uint32
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + uint32(c-'0')
	}
	return v, true
}

func dispensedMoney(volumeCL uint32, price uint16) uint32 {
	return volumeCL * uint32(price) / 100
}

func ascii4(v uint32) []byte { return asciiWidth(v, 4) }
func ascii6(v uint32) []byte { return asciiWidth(v, 6) }

func asciiWidth(v uint32, width int) []byte {
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte('0' + v%10)
		v /= 10
	}
	return out
}

// Package gklproto turns decoded GasKitLink frames into gkltypes.Event
// values and renders outbound command frames, staying entirely on ASCII
// digit arithmetic so neither direction allocates or pulls in fmt/strconv.
package gklproto

import "github.com/censtar0502/gkl-pump-controller/gkltypes"

// ParseResponse decodes a response Frame's payload into an Event. It
// returns false for a frame whose command byte carries no defined
// response semantics (the frame is still well-formed; there is simply
// nothing to report), and never panics or corrupts ev on malformed
// digit data, stopping the partial parse at the first bad byte instead.
func ParseResponse(f *gkltypes.Frame, ev *gkltypes.Event) bool {
	*ev = gkltypes.Event{}
	ev.Addr = gkltypes.Addr{CtrlAddr: f.Ctrl, SlaveAddr: f.Slave}
	data := f.Payload()

	switch f.Cmd {
	case 'S':
		if len(data) < 2 || data[0] < '0' || data[0] > '9' || data[1] < '0' || data[1] > '9' {
			return false
		}
		ev.Kind = gkltypes.EventStatus
		ev.Status = gkltypes.Status(digit(data[0]))
		ev.Nozzle = gkltypes.Nozzle(digit(data[1]))
		return true

	case 'L':
		nozzle, rest, ok := leadDigitSemicolon(data)
		if !ok {
			return false
		}
		cl, ok := parseUint(rest)
		if !ok {
			return false
		}
		ev.Kind = gkltypes.EventRealtimeVolume
		ev.Nozzle = gkltypes.Nozzle(nozzle)
		ev.VolumeDL = gkltypes.Deciliters(cl / 10)
		return true

	case 'R':
		nozzle, rest, ok := leadDigitSemicolon(data)
		if !ok {
			return false
		}
		m, ok := parseUint(rest)
		if !ok {
			return false
		}
		ev.Kind = gkltypes.EventRealtimeMoney
		ev.Nozzle = gkltypes.Nozzle(nozzle)
		ev.Money = gkltypes.Money(m)
		return true

	case 'C':
		idx, rest, ok := leadDigitSemicolon(data)
		if !ok {
			return false
		}
		cl, ok := parseUint(rest)
		if !ok {
			return false
		}
		ev.Kind = gkltypes.EventTotalizer
		ev.TotalizerIndex = gkltypes.TotalizerIndex(idx)
		ev.TotalizerDL = gkltypes.Deciliters(cl / 10)
		return true

	case 'T':
		nozzle, money, volCL, price, ok := parseTransaction(data)
		if !ok {
			return false
		}
		ev.Kind = gkltypes.EventTransactionFinal
		ev.Nozzle = gkltypes.Nozzle(nozzle)
		ev.VolumeDL = gkltypes.Deciliters(volCL / 10)
		ev.Money = gkltypes.Money(money)
		ev.TrxPrice = gkltypes.Price(price)
		return true

	default:
		return false
	}
}

// leadDigitSemicolon splits a "d;rest" payload into its single leading
// digit and the bytes after the semicolon.
func leadDigitSemicolon(data []byte) (lead byte, rest []byte, ok bool) {
	if len(data) < 3 || data[1] != ';' {
		return 0, nil, false
	}
	if data[0] < '0' || data[0] > '9' {
		return 0, nil, false
	}
	return digit(data[0]), data[2:], true
}

// parseTransaction splits "<nozzle><...>;<money>;<volume_cL>;<price>"
// into its four fields. The first field's leading byte is the nozzle
// digit; whatever follows it up to the semicolon is a status echo the
// pump appends and that callers have no use for, so it is skipped
// rather than validated.
func parseTransaction(data []byte) (nozzle uint8, money, volCL uint32, price uint16, ok bool) {
	first := indexByte(data, ';')
	if first < 1 {
		return 0, 0, 0, 0, false
	}
	if data[0] < '0' || data[0] > '9' {
		return 0, 0, 0, 0, false
	}
	nozzle = digit(data[0])

	rest := data[first+1:]
	second := indexByte(rest, ';')
	if second < 0 {
		return 0, 0, 0, 0, false
	}
	m, ok := parseUint(rest[:second])
	if !ok {
		return 0, 0, 0, 0, false
	}

	rest2 := rest[second+1:]
	third := indexByte(rest2, ';')
	if third < 0 {
		return 0, 0, 0, 0, false
	}
	v, ok := parseUint(rest2[:third])
	if !ok {
		return 0, 0, 0, 0, false
	}
	p, ok := parseUint(rest2[third+1:])
	if !ok || p > 0xFFFF {
		return 0, 0, 0, 0, false
	}
	return nozzle, m, v, uint16(p), true
}

func digit(b byte) uint8 { return b - '0' }

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// parseUint parses an unsigned decimal ASCII run; an empty input or a
// non-digit byte anywhere is a parse failure, matching the original
// firmware's behaviour of abandoning rather than guessing on bad data.
func parseUint(b []byte) (uint32, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var n uint32
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint32(c-'0')
	}
	return n, true
}

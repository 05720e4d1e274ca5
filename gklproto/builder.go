package gklproto

import "github.com/censtar0502/gkl-pump-controller/x/conv"

// PresetVolume renders "V" payload "{nozzle};{volume_cL:06};{price:04}"
// onto dst, matching the original firmware's snprintf format but without
// pulling in fmt.
func PresetVolume(dst []byte, nozzle uint8, volumeCL uint32, price uint16) []byte {
	return presetPayload(dst, nozzle, volumeCL, price)
}

// PresetMoney renders "M" payload "{nozzle};{money:06};{price:04}".
func PresetMoney(dst []byte, nozzle uint8, money uint32, price uint16) []byte {
	return presetPayload(dst, nozzle, money, price)
}

func presetPayload(dst []byte, nozzle uint8, amount uint32, price uint16) []byte {
	dst = append(dst, '0'+nozzle, ';')
	dst = appendZeroPadded(dst, uint64(amount), 6)
	dst = append(dst, ';')
	dst = appendZeroPadded(dst, uint64(price), 4)
	return dst
}

// SingleDigit renders the one-byte payload used by L/R/C: the nozzle or
// totalizer index as a single ASCII digit.
func SingleDigit(dst []byte, v uint8) []byte {
	return append(dst, '0'+v)
}

// appendZeroPadded appends n as decimal, zero-padded to at least width
// digits, using x/conv's allocation-free Utoa rather than fmt.Sprintf.
func appendZeroPadded(dst []byte, n uint64, width int) []byte {
	var tmp [20]byte
	digits := conv.Utoa(tmp[:], n)
	for pad := width - len(digits); pad > 0; pad-- {
		dst = append(dst, '0')
	}
	return append(dst, digits...)
}

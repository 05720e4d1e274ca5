package gklproto

import (
	"testing"

	"github.com/censtar0502/gkl-pump-controller/gkltypes"
)

func frameWith(cmd byte, data string) gkltypes.Frame {
	var f gkltypes.Frame
	f.Ctrl = 0x01
	f.Slave = 0x02
	f.Cmd = cmd
	f.DataLen = uint8(copy(f.Data[:], data))
	return f
}

func TestParseStatus(t *testing.T) {
	f := frameWith('S', "13")
	var ev gkltypes.Event
	if !ParseResponse(&f, &ev) {
		t.Fatal("expected parse success")
	}
	if ev.Kind != gkltypes.EventStatus || ev.Status != 1 || ev.Nozzle != 3 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseRealtimeVolumeConvertsCLToDL(t *testing.T) {
	f := frameWith('L', "1;000123")
	var ev gkltypes.Event
	if !ParseResponse(&f, &ev) {
		t.Fatal("expected parse success")
	}
	if ev.Kind != gkltypes.EventRealtimeVolume || ev.Nozzle != 1 || ev.VolumeDL != 12 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseRealtimeMoney(t *testing.T) {
	f := frameWith('R', "1;005000")
	var ev gkltypes.Event
	if !ParseResponse(&f, &ev) {
		t.Fatal("expected parse success")
	}
	if ev.Kind != gkltypes.EventRealtimeMoney || ev.Nozzle != 1 || ev.Money != 5000 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseTotalizerConvertsCLToDL(t *testing.T) {
	f := frameWith('C', "0;000396003")
	var ev gkltypes.Event
	if !ParseResponse(&f, &ev) {
		t.Fatal("expected parse success")
	}
	if ev.Kind != gkltypes.EventTotalizer || ev.TotalizerIndex != 0 || ev.TotalizerDL != 39600 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseTransaction(t *testing.T) {
	// literal wire example: nozzle 1, status echo 'p8', money 5610,
	// volume 500 cL (50 dL), price 1122.
	f := frameWith('T', "1p8;005610;000500;1122")
	var ev gkltypes.Event
	if !ParseResponse(&f, &ev) {
		t.Fatal("expected parse success")
	}
	if ev.Kind != gkltypes.EventTransactionFinal {
		t.Fatalf("unexpected kind: %v", ev.Kind)
	}
	if ev.Nozzle != 1 || ev.VolumeDL != 50 || ev.Money != 5610 || ev.TrxPrice != 1122 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseUnknownCommandReturnsFalse(t *testing.T) {
	f := frameWith('Z', "abcdef")
	var ev gkltypes.Event
	if ParseResponse(&f, &ev) {
		t.Fatal("expected parse to report no event for an unhandled command")
	}
}

func TestParseMalformedDigitsDoesNotPanic(t *testing.T) {
	cases := []gkltypes.Frame{
		frameWith('S', ""),
		frameWith('L', "x;abc"),
		frameWith('C', "0;"),
		frameWith('T', "1p8;abc;000500;1122"),
	}
	for _, f := range cases {
		var ev gkltypes.Event
		if ParseResponse(&f, &ev) {
			t.Fatalf("expected malformed payload to fail parse: %+v", f)
		}
	}
}

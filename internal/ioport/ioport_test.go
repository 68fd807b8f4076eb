package ioport

import "testing"

func TestRecording_recordsInOrder(t *testing.T) {
	t.Parallel()

	bus := NewRecording()
	bus.Out8(0x20, 0x11)
	bus.Out8(0x21, 0x20)

	want := []Write{{0x20, 0x11}, {0x21, 0x20}}

	if len(bus.Writes) != len(want) {
		t.Fatalf("got %d writes, want %d", len(bus.Writes), len(want))
	}

	for i, w := range want {
		if bus.Writes[i] != w {
			t.Errorf("write %d = %+v, want %+v", i, bus.Writes[i], w)
		}
	}

	if bus.In8(0x21) != 0x20 {
		t.Errorf("In8(0x21) = %#x, want 0x20", bus.In8(0x21))
	}
}

func TestNullBus(t *testing.T) {
	t.Parallel()

	Null.Out8(0x20, 0xff) // must not panic
	if v := Null.In8(0x20); v != 0 {
		t.Errorf("Null.In8 = %#x, want 0", v)
	}
}

package boot

import (
	"reflect"
	"testing"
)

func TestHeaderChecksum(t *testing.T) {
	t.Parallel()

	sum := Magic + HeaderFlags
	sum += HeaderChecksum

	if sum != 0 {
		t.Errorf("magic + flags + checksum = %#x, want 0", sum)
	}
}

func TestParseCommandLine(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want CommandLine
	}{
		{"empty", "", CommandLine{}},
		{"earlycon", "earlycon", CommandLine{EarlyConsole: true}},
		{
			"all recognized tokens",
			"earlycon boottest testpanic testpagefault",
			CommandLine{EarlyConsole: true, BootTest: true, TestPanic: true, TestPageFault: true},
		},
		{
			"unknown tokens preserved, recognized ones still set",
			"earlycon foo=bar quiet",
			CommandLine{EarlyConsole: true, raw: []string{"foo=bar", "quiet"}},
		},
		{
			"repeated whitespace",
			"  earlycon   boottest  ",
			CommandLine{EarlyConsole: true, BootTest: true},
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			got := ParseCommandLine(c.in)
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("ParseCommandLine(%q) = %+v, want %+v", c.in, got, c.want)
			}
		})
	}
}

func TestParseCommandLine_returnsFreshValueEachCall(t *testing.T) {
	t.Parallel()

	a := ParseCommandLine("earlycon")
	b := ParseCommandLine("boottest")

	if a.EarlyConsole != true || a.BootTest != false {
		t.Fatalf("a was mutated by second parse: %+v", a)
	}

	if b.EarlyConsole != false || b.BootTest != true {
		t.Fatalf("b = %+v, want only BootTest set", b)
	}
}

func TestInfo_flagHelpers(t *testing.T) {
	t.Parallel()

	i := &Info{Flags: FlagMmap}
	if !i.HasMemoryMap() {
		t.Error("HasMemoryMap() = false, want true")
	}

	if i.HasCommandLine() {
		t.Error("HasCommandLine() = true, want false")
	}
}

package kernel

import "testing"

func TestRunDemo_roundRobinsThreeTasks(t *testing.T) {
	t.Parallel()

	k, _, _ := newTestKernel(t)
	k.Enable()

	k.SpawnDemoTask("P1", 2, 0x00100000)
	k.SpawnDemoTask("P2", 2, 0x00100010)
	k.SpawnDemoTask("P3", 2, 0x00100020)

	trace := k.RunDemo(100)

	want := []string{
		"[P1:0]", "[P2:0]", "[P3:0]",
		"[P1:1]", "[P2:1]", "[P3:1]",
	}

	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}

	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace[%d] = %q, want %q (full trace %v)", i, trace[i], want[i], trace)
		}
	}
}

func TestRunDemo_stopsAtMaxTicksIfTasksNeverFinish(t *testing.T) {
	t.Parallel()

	k, _, _ := newTestKernel(t)
	k.Enable()

	k.SpawnDemoTask("Spinner", 1000, 0x00200000)

	// With only one demo task plus the idle task sharing the ready queue,
	// round robin alternates Spinner/idle/Spinner/idle/...; ten ticks give
	// Spinner exactly five turns.
	trace := k.RunDemo(10)

	if len(trace) != 5 {
		t.Fatalf("len(trace) = %d, want 5 (trace=%v)", len(trace), trace)
	}
}

func TestDemoTask_tagFormatting(t *testing.T) {
	t.Parallel()

	d := &DemoTask{Name: "P1"}
	if got := d.Tag(3); got != "[P1:3]" {
		t.Fatalf("Tag(3) = %q, want %q", got, "[P1:3]")
	}
}

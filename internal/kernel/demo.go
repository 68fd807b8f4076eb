package kernel

import (
	"fmt"

	"github.com/itisrazza/ClankerOS/internal/sched"
)

// DemoTask is a kernel task spawned for the round-robin demonstration: a
// loop of a fixed number of iterations, each producing a tag, with a "busy
// wait" in between that this hosted stand-in models as simply yielding the
// rest of its timeslice back to Kernel.Tick.
//
// A real kernel jumps to the task's entry point and lets it run until the
// next timer interrupt preempts it; a hosted Go process has no machine code
// at the synthetic EIP internal/sched.Spawn records, so instead
// Kernel.RunDemo looks up which DemoTask owns the scheduler's current
// Running task and calls its body directly - the same swap every other
// hardware seam in this module makes between "real control transfer" and
// "an in-memory fake with identical externally-observable behavior".
type DemoTask struct {
	Name       string
	Task       *sched.Task
	Iterations int

	done int
}

// Tag returns this task's "[P1:i]"-shaped trace tag for iteration i.
func (d *DemoTask) Tag(i int) string { return fmt.Sprintf("[%s:%d]", d.Name, i) }

// SpawnDemoTask creates a kernel task via internal/sched and registers it as
// a demo task driven by Kernel.RunDemo. entry is a synthetic, unique
// trampoline address: here it only ever serves as a lookup key, never an
// address the hosted process jumps to.
func (k *Kernel) SpawnDemoTask(name string, iterations int, entry uint32) *DemoTask {
	if k.demoTasks == nil {
		k.demoTasks = make(map[uint32]*DemoTask)
	}

	d := &DemoTask{Name: name, Iterations: iterations}
	d.Task = k.Sched.Spawn(name, entry)
	k.demoTasks[entry] = d

	return d
}

// RunDemo drives the scheduler with simulated timer ticks until every demo
// task spawned via SpawnDemoTask has exited or maxTicks is exhausted,
// appending each executed iteration's tag to the returned trace. It is the
// hosted equivalent of "enable the scheduler and let the timer ISR run the
// system".
func (k *Kernel) RunDemo(maxTicks int) []string {
	trace := make([]string, 0, maxTicks)

	for i := 0; i < maxTicks && !k.allDemoTasksDone(); i++ {
		k.Tick()

		running := k.Sched.Running()
		if running == nil {
			continue
		}

		d := k.demoTaskFor(running)
		if d == nil || d.done >= d.Iterations {
			continue
		}

		trace = append(trace, d.Tag(d.done))
		d.done++

		if d.done >= d.Iterations {
			k.Sched.Exit()
		}
	}

	return trace
}

func (k *Kernel) demoTaskFor(t *sched.Task) *DemoTask {
	for _, d := range k.demoTasks {
		if d.Task == t {
			return d
		}
	}

	return nil
}

func (k *Kernel) allDemoTasksDone() bool {
	for _, d := range k.demoTasks {
		if d.done < d.Iterations {
			return false
		}
	}

	return len(k.demoTasks) > 0
}

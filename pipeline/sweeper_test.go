package pipeline

import "testing"

func TestRunSweepIsolatesPanics(t *testing.T) {
	ran := false
	runSweep("bad", func() { panic("boom") })
	runSweep("good", func() { ran = true })
	if !ran {
		t.Error("a panicking pass must not stop later passes")
	}
}

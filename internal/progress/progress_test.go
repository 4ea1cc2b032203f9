package progress

import "testing"

func TestTrackerPercentIsMonotonic(t *testing.T) {
	var events []Event
	tr := NewTracker(func(ev Event) { events = append(events, ev) })

	tr.BeginPhase(PhaseDownloading)
	tr.Report(50, 100)
	tr.Report(30, 100) // regression must be ignored
	tr.Report(80, 100)

	last := 0.0
	for _, ev := range events {
		if ev.Percent < last {
			t.Fatalf("percent regressed: %v -> %v", last, ev.Percent)
		}
		last = ev.Percent
	}
	if got := tr.Current().Percent; got != 80 {
		t.Fatalf("final percent = %v, want 80", got)
	}
}

func TestTrackerClampsAboveHundred(t *testing.T) {
	tr := NewTracker(nil)
	tr.BeginPhase(PhaseDownloading)
	tr.Report(150, 100)
	if got := tr.Current().Percent; got != 100 {
		t.Fatalf("percent = %v, want 100", got)
	}
}

func TestBeginPhaseResetsValue(t *testing.T) {
	tr := NewTracker(nil)
	tr.BeginPhase(PhaseDownloading)
	tr.Report(100, 100)

	tr.BeginPhase(PhasePatching)
	cur := tr.Current()
	if cur.Percent != 0 {
		t.Fatalf("percent after phase change = %v, want 0", cur.Percent)
	}
	if cur.Phase != PhasePatching {
		t.Fatalf("phase = %q, want %q", cur.Phase, PhasePatching)
	}
}

func TestEndPhaseClearsLabel(t *testing.T) {
	tr := NewTracker(nil)
	tr.BeginPhase(PhaseUnpacking)
	tr.Report(10, 100)
	tr.EndPhase()

	cur := tr.Current()
	if cur.Phase != "" || cur.Percent != 0 {
		t.Fatalf("EndPhase should reset state, got %+v", cur)
	}
}

func TestTrackerWithoutTotalKeepsPercent(t *testing.T) {
	tr := NewTracker(nil)
	tr.BeginPhase(PhaseDownloading)
	tr.Report(50, 100)
	tr.Report(60, 0) // unknown total must not reset the percentage
	if got := tr.Current().Percent; got != 50 {
		t.Fatalf("percent = %v, want 50", got)
	}
}

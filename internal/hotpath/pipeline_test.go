package hotpath

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apex-data/coach.report/internal/telemetry"
	"github.com/apex-data/coach.report/internal/testutil"
	"github.com/apex-data/coach.report/internal/track"
)

func rawFromSample(s telemetry.TelemetrySample) telemetry.RawFrame {
	return telemetry.RawFrame{
		TimestampUS: s.TimestampUS,
		SpeedMPS:    s.SpeedMPS,
		Throttle:    s.Throttle,
		Brake:       s.Brake,
		SteeringRad: s.SteeringRad,
		Slip:        s.Slip,
		GLat:        s.GLat,
		GLong:       s.GLong,
		RPM:         s.RPM,
		Gear:        s.Gear,
		LapNumber:   s.LapNumber,
		LapDistPct:  s.LapDistPct,
		WorldX:      s.WorldX,
		WorldY:      s.WorldY,
	}
}

func rawLap(samples []telemetry.TelemetrySample) []telemetry.RawFrame {
	out := make([]telemetry.RawFrame, len(samples))
	for i, s := range samples {
		out[i] = rawFromSample(s)
	}
	return out
}

// positionCueRule fires a cue on every position update. Test double for
// exercising the sink path without rule logic in the way.
type positionCueRule struct{}

func (positionCueRule) Evaluate(ev Event) (Cue, bool) {
	if ev.Kind != PositionUpdated {
		return Cue{}, false
	}
	return Cue{Kind: LockAlertCue, S: ev.S, TimestampUS: ev.TimestampUS, LapNumber: ev.LapNumber}, true
}

func newTestPipeline(t *testing.T, rules []Rule, sink Sink, p PipelineParams) *Pipeline {
	t.Helper()
	m := buildTestModel(t)
	tr := NewTracker(m, track.NewIndex(m), testTrackerParams())
	e := NewEngine(tr, m, testEngineParams())
	src := telemetry.NewReplaySource(nil)
	return NewPipeline(src, e, rules, sink, p)
}

func TestPush_DropsOldestWhenFull(t *testing.T) {
	p := newTestPipeline(t, nil, nil, PipelineParams{QueueCapacity: 2, PollHz: 60})

	for i := int64(1); i <= 3; i++ {
		p.push(telemetry.RawFrame{TimestampUS: i})
	}

	if drops := p.StatsSnapshot().QueueDrops; drops != 1 {
		t.Fatalf("queue drops = %d, want 1", drops)
	}
	// The survivors are the two newest frames, still in order.
	f1, f2 := <-p.queue, <-p.queue
	if f1.TimestampUS != 2 || f2.TimestampUS != 3 {
		t.Errorf("queue holds frames %d, %d; want 2, 3", f1.TimestampUS, f2.TimestampUS)
	}
}

func TestProcessFrame_StaleFrameDoesNotAdvance(t *testing.T) {
	sink := NewRecordingSink()
	p := newTestPipeline(t, []Rule{positionCueRule{}}, sink, PipelineParams{QueueCapacity: 8, PollHz: 60})
	ctx := context.Background()

	samples := testutil.SyntheticLap(0.5, nil)
	f0 := rawFromSample(samples[0])
	f1 := rawFromSample(samples[1])

	p.ProcessFrame(ctx, &f0)
	p.ProcessFrame(ctx, &f1)
	before := p.StatsSnapshot()

	// Same frame again: timestamp not strictly greater, dropped.
	p.ProcessFrame(ctx, &f1)
	after := p.StatsSnapshot()

	if after.EventsProduced != before.EventsProduced {
		t.Errorf("stale frame produced events: %d -> %d", before.EventsProduced, after.EventsProduced)
	}
	if after.NormalizerDrops["stale_timestamp"] != 1 {
		t.Errorf("stale drop not counted: %v", after.NormalizerDrops)
	}
	if got := len(sink.Cues()); got != 2 {
		t.Errorf("got %d cues, want 2 (one per accepted frame)", got)
	}
}

func TestProcessFrame_NoCueAfterCancellation(t *testing.T) {
	sink := NewRecordingSink()
	p := newTestPipeline(t, []Rule{positionCueRule{}}, sink, PipelineParams{QueueCapacity: 8, PollHz: 60})

	samples := testutil.SyntheticLap(0.5, nil)
	ctx, cancel := context.WithCancel(context.Background())

	f0 := rawFromSample(samples[0])
	p.ProcessFrame(ctx, &f0)
	if got := len(sink.Cues()); got != 1 {
		t.Fatalf("got %d cues before cancel, want 1", got)
	}

	cancel()
	f1 := rawFromSample(samples[1])
	p.ProcessFrame(ctx, &f1)
	if got := len(sink.Cues()); got != 1 {
		t.Fatalf("cue emitted after cancellation: %d cues", got)
	}
}

func TestProcessFrame_SinkFailureDegradesSilently(t *testing.T) {
	sink := NewRecordingSink()
	sink.FailWith(errors.New("audio device gone"))
	p := newTestPipeline(t, []Rule{positionCueRule{}}, sink, PipelineParams{QueueCapacity: 8, PollHz: 60})
	ctx := context.Background()

	samples := testutil.SyntheticLap(0.5, nil)
	for i := 0; i < 3; i++ {
		f := rawFromSample(samples[i])
		p.ProcessFrame(ctx, &f)
	}

	st := p.StatsSnapshot()
	if st.SinkErrors != 3 {
		t.Errorf("sink errors = %d, want 3", st.SinkErrors)
	}
	if st.CuesEmitted != 0 {
		t.Errorf("cues emitted = %d, want 0 with a failing sink", st.CuesEmitted)
	}
	// The pipeline kept processing despite the sink failing.
	if st.EventsProduced == 0 {
		t.Error("no events produced after sink failure")
	}
}

func TestRun_ReplayToExhaustion(t *testing.T) {
	m := buildTestModel(t)
	tr := NewTracker(m, track.NewIndex(m), testTrackerParams())
	e := NewEngine(tr, m, testEngineParams())

	samples := testutil.SyntheticLap(2, func(s float64, smp *telemetry.TelemetrySample) {
		if s >= 150 && s < 165 {
			smp.Slip[telemetry.RearLeft] = 0.8
			smp.Brake = 0.5
		}
	})
	src := telemetry.NewReplaySource(rawLap(samples))
	sink := NewRecordingSink()
	rule := NewLockAlertRule(LockRuleParams{CooldownMs: 1000})

	p := NewPipeline(src, e, []Rule{rule}, sink, PipelineParams{QueueCapacity: 64, PollHz: 5000})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("pipeline did not stop after replay exhaustion")
	}

	st := p.StatsSnapshot()
	if st.FramesIn != uint64(len(samples)) {
		t.Errorf("frames in = %d, want %d", st.FramesIn, len(samples))
	}
	cues := sink.Cues()
	if len(cues) != 1 {
		t.Fatalf("got %d cues, want 1 lock alert", len(cues))
	}
	if cues[0].Kind != LockAlertCue || cues[0].Wheel != telemetry.RearLeft {
		t.Errorf("cue = %+v, want rear-left lock alert", cues[0])
	}
}

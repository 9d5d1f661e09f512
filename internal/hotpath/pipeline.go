package hotpath

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex-data/coach.report/internal/config"
	"github.com/apex-data/coach.report/internal/telemetry"
)

// PipelineParams holds the queue and polling configuration.
type PipelineParams struct {
	QueueCapacity int
	PollHz        float64
}

// PipelineParamsFromTuning pulls the pipeline knobs out of a tuning config.
func PipelineParamsFromTuning(cfg *config.TuningConfig) PipelineParams {
	return PipelineParams{
		QueueCapacity: cfg.GetQueueCapacity(),
		PollHz:        cfg.GetPollHz(),
	}
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	FramesIn        uint64
	QueueDrops      uint64
	NormalizerDrops map[string]uint64
	EventsProduced  uint64
	CuesEmitted     uint64
	SinkErrors      uint64
}

// Pipeline wires a telemetry source through the normalizer, engine, and
// rules to a cue sink. One producer goroutine polls the source; one
// consumer runs the whole per-frame chain synchronously. The queue between
// them is bounded: when it fills, the oldest frame is dropped and counted,
// and the producer never blocks.
type Pipeline struct {
	source telemetry.SourceAdapter
	norm   *telemetry.Normalizer
	engine *Engine
	rules  []Rule
	sink   Sink

	queue        chan telemetry.RawFrame
	pollInterval time.Duration

	framesIn    atomic.Uint64
	queueDrops  atomic.Uint64
	eventsOut   atomic.Uint64
	cuesEmitted atomic.Uint64
	sinkErrors  atomic.Uint64
}

// NewPipeline assembles a session pipeline. The sink may be nil, which
// disables cue delivery but leaves the rest of the chain running.
func NewPipeline(source telemetry.SourceAdapter, engine *Engine, rules []Rule, sink Sink, p PipelineParams) *Pipeline {
	if p.QueueCapacity < 1 {
		p.QueueCapacity = 1
	}
	if p.PollHz <= 0 {
		p.PollHz = 60
	}
	return &Pipeline{
		source:       source,
		norm:         telemetry.NewNormalizer(),
		engine:       engine,
		rules:        rules,
		sink:         sink,
		queue:        make(chan telemetry.RawFrame, p.QueueCapacity),
		pollInterval: time.Duration(float64(time.Second) / p.PollHz),
	}
}

// Run executes the session until ctx is cancelled or a replay source runs
// out of frames. Shutdown is cooperative: the frame in flight finishes its
// pipeline pass, but no cue is emitted once cancellation is observed.
func (p *Pipeline) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(p.queue)
		p.produce(ctx)
	}()

	p.consume(ctx)
	wg.Wait()

	st := p.StatsSnapshot()
	diagf("session done: frames=%d queue_drops=%d norm_drops=%d events=%d cues=%d sink_errors=%d",
		st.FramesIn, st.QueueDrops, p.norm.TotalDrops(), st.EventsProduced, st.CuesEmitted, st.SinkErrors)
}

func (p *Pipeline) produce(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	type exhaustible interface{ Exhausted() bool }

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := p.source.Poll()
		if err != nil {
			opsf("source poll: %v", err)
			continue
		}
		if frame == nil {
			if ex, ok := p.source.(exhaustible); ok && ex.Exhausted() {
				return
			}
			continue
		}
		p.framesIn.Add(1)
		p.push(*frame)
	}
}

// push enqueues a frame, evicting the oldest queued frame when full.
// Never blocks.
func (p *Pipeline) push(f telemetry.RawFrame) {
	select {
	case p.queue <- f:
		return
	default:
	}
	select {
	case <-p.queue:
		p.queueDrops.Add(1)
		tracef("queue full, dropped oldest frame")
	default:
	}
	select {
	case p.queue <- f:
	default:
		p.queueDrops.Add(1)
	}
}

func (p *Pipeline) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-p.queue:
			if !ok {
				return
			}
			p.ProcessFrame(ctx, &f)
		}
	}
}

// ProcessFrame runs one raw frame through the full normalize, track, rule
// chain. Exposed so replay tools and tests can drive the pipeline without
// the polling loop.
func (p *Pipeline) ProcessFrame(ctx context.Context, raw *telemetry.RawFrame) {
	smp, ok := p.norm.Normalize(raw)
	if !ok {
		return
	}

	events := p.engine.Process(&smp)
	p.eventsOut.Add(uint64(len(events)))

	for _, ev := range events {
		for _, rule := range p.rules {
			cue, fired := rule.Evaluate(ev)
			if !fired {
				continue
			}
			if ctx.Err() != nil || p.sink == nil {
				continue
			}
			if err := p.sink.Emit(cue); err != nil {
				p.sinkErrors.Add(1)
				opsf("cue sink: %v (continuing silent)", err)
				continue
			}
			p.cuesEmitted.Add(1)
		}
	}
}

// StatsSnapshot returns the current counter values.
func (p *Pipeline) StatsSnapshot() Stats {
	return Stats{
		FramesIn:        p.framesIn.Load(),
		QueueDrops:      p.queueDrops.Load(),
		NormalizerDrops: p.norm.Drops(),
		EventsProduced:  p.eventsOut.Load(),
		CuesEmitted:     p.cuesEmitted.Load(),
		SinkErrors:      p.sinkErrors.Load(),
	}
}

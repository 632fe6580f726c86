package worker

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"event-aggregator/internal/application"
	"event-aggregator/internal/domain"
	"event-aggregator/internal/infrastructure/logx"
	"event-aggregator/internal/infrastructure/provider"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var _ application.Worker = (*Generator)(nil)

// Generator sends fresh events and, with probability ReplayProbability,
// resends a remembered (topic, event_id) to simulate at-least-once delivery.
type Generator struct {
	Source            application.EventSource
	Sender            Sender
	Limiter           *rate.Limiter
	ReplayProbability float64
	// Memory bounds how many sent keys are remembered for replay.
	Memory int
	// Count stops the generator after that many sends; zero runs until canceled.
	Count      int
	StartDelay time.Duration
	Log        *zap.Logger
	Rand       *rand.Rand
	Now        func() time.Time

	sent       atomic.Int64
	replayed   atomic.Int64
	processed  atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64

	ring []domain.Key
	next int
}

// GeneratorStats is a snapshot of what a generator has done so far.
type GeneratorStats struct {
	Sent       int64
	Replayed   int64
	Processed  int64
	Duplicates int64
	Failed     int64
}

func (g *Generator) Stats() GeneratorStats {
	return GeneratorStats{
		Sent:       g.sent.Load(),
		Replayed:   g.replayed.Load(),
		Processed:  g.processed.Load(),
		Duplicates: g.duplicates.Load(),
		Failed:     g.failed.Load(),
	}
}

func (g *Generator) Start(ctx context.Context) {
	g.defaults()
	log := g.Log.With(zap.String("worker", "generator"))

	if g.StartDelay > 0 {
		log.Info("generator.waiting", zap.Duration("delay", g.StartDelay))
		t := time.NewTimer(g.StartDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
	log.Info("generator.start",
		zap.Float64("replay_probability", g.ReplayProbability),
		zap.Int("count", g.Count),
	)

	for g.Count == 0 || g.sent.Load() < int64(g.Count) {
		if err := g.Limiter.Wait(ctx); err != nil {
			break
		}
		ev, replay, err := g.pick(ctx)
		if err != nil {
			log.Error("generator.source_failed", zap.Error(err))
			continue
		}
		g.send(ctx, log, ev, replay)
	}

	st := g.Stats()
	log.Info("generator.stop",
		zap.Int64("sent", st.Sent),
		zap.Int64("replayed", st.Replayed),
		zap.Int64("processed", st.Processed),
		zap.Int64("duplicates", st.Duplicates),
		zap.Int64("failed", st.Failed),
	)
}

func (g *Generator) defaults() {
	if g.Log == nil {
		g.Log = logx.L()
	}
	if g.Limiter == nil {
		g.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if g.Rand == nil {
		g.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if g.Now == nil {
		g.Now = time.Now
	}
	if g.Memory <= 0 {
		g.Memory = 1000
	}
}

func (g *Generator) pick(ctx context.Context) (domain.Event, bool, error) {
	if len(g.ring) > 0 && g.Rand.Float64() < g.ReplayProbability {
		k := g.ring[g.Rand.IntN(len(g.ring))]
		return provider.Replay(k, g.Now()), true, nil
	}
	ev, err := g.Source.Next(ctx)
	if err != nil {
		return domain.Event{}, false, err
	}
	g.remember(ev.Key())
	return ev, false, nil
}

// remember keeps the last g.Memory keys in a ring.
func (g *Generator) remember(k domain.Key) {
	if len(g.ring) < g.Memory {
		g.ring = append(g.ring, k)
		return
	}
	g.ring[g.next] = k
	g.next = (g.next + 1) % g.Memory
}

func (g *Generator) send(ctx context.Context, log *zap.Logger, ev domain.Event, replay bool) {
	g.sent.Add(1)
	if replay {
		g.replayed.Add(1)
	}
	status, err := g.Sender.Send(ctx, ev)
	fields := []zap.Field{
		zap.String("topic", ev.Topic),
		zap.String("event_id", ev.EventID),
		zap.Bool("replay", replay),
	}
	if err != nil {
		g.failed.Add(1)
		log.Warn("generator.send_failed", append(fields, zap.Error(err))...)
		return
	}
	switch status {
	case "processed":
		g.processed.Add(1)
	case "ignored_duplicate":
		g.duplicates.Add(1)
	}
	log.Info("generator.sent", append(fields, zap.String("status", status))...)
}

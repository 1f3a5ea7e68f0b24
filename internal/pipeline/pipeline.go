// Package pipeline decides which incoming messages become notifications and
// advances the per-source watermarks.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tg_monitor/internal/bot"
	"tg_monitor/internal/filter"
	"tg_monitor/internal/metrics"
	"tg_monitor/internal/model"
	"tg_monitor/internal/source"
	"tg_monitor/internal/storage"
)

// WatermarkStore is the part of the storage the pipeline uses.
type WatermarkStore interface {
	GetLast(ctx context.Context, sourceURL string) (*model.Watermark, error)
	SaveLast(ctx context.Context, src model.Source, messageTime time.Time, messageID int64) error
	Fallback(minutesAgo int) time.Time
}

// SenderResolver looks up the author of an event.
type SenderResolver interface {
	ResolveSender(ctx context.Context, ev model.MatchEvent) (*model.Identity, error)
}

// Dispatcher delivers a rendered notification to the target chat.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string) error
}

// Pacer spaces out outbound calls.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Outcome is the result of handling one event.
type Outcome int

const (
	OutcomeEmpty Outcome = iota
	OutcomeUnknownSource
	OutcomeStale
	OutcomeNoMatch
	OutcomeDispatched
	OutcomeDispatchFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeUnknownSource:
		return "unknown_source"
	case OutcomeStale:
		return "stale"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeDispatchFailed:
		return "dispatch_failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Pipeline processes events one at a time, in arrival order.
type Pipeline struct {
	store      WatermarkStore
	registry   *source.Registry
	senders    SenderResolver
	dispatcher Dispatcher
	keywords   []string
	log        *slog.Logger

	pacer           Pacer
	metrics         *metrics.Metrics
	fallbackMinutes int
	startedAt       time.Time

	mu sync.Mutex
	// cold-start floor per source, fixed when the source is first seen
	// without a watermark.
	cold map[string]time.Time
	// last accepted event per source; keeps the floor monotonic when a
	// watermark write fails.
	accepted map[string]time.Time
}

// New creates a Pipeline. The process-start floor is taken from the current time.
func New(store WatermarkStore, registry *source.Registry, senders SenderResolver, dispatcher Dispatcher, keywords []string, log *slog.Logger) *Pipeline {
	return &Pipeline{
		store:           store,
		registry:        registry,
		senders:         senders,
		dispatcher:      dispatcher,
		keywords:        filter.Normalize(keywords),
		log:             log,
		fallbackMinutes: storage.DefaultFallbackMinutes,
		startedAt:       time.Now().UTC(),
		cold:            make(map[string]time.Time),
		accepted:        make(map[string]time.Time),
	}
}

// SetFallbackMinutes overrides the cold-start window. Zero puts the cold
// floor at the moment a source is first seen; negative values are ignored.
func (p *Pipeline) SetFallbackMinutes(n int) {
	if n >= 0 {
		p.fallbackMinutes = n
	}
}

// SetPacer makes the pipeline wait on pacer before every dispatch.
func (p *Pipeline) SetPacer(pacer Pacer) {
	p.pacer = pacer
}

// SetMetrics attaches event counters.
func (p *Pipeline) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// StartedAt returns the process-start floor.
func (p *Pipeline) StartedAt() time.Time {
	return p.startedAt
}

// Run consumes events until ctx is cancelled or events is closed.
func (p *Pipeline) Run(ctx context.Context, events <-chan model.MatchEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.Handle(ctx, ev)
		}
	}
}

// Handle runs the full decision sequence for one event.
func (p *Pipeline) Handle(ctx context.Context, ev model.MatchEvent) Outcome {
	start := time.Now()
	outcome := p.handle(ctx, ev)
	p.metrics.ObserveEvent(outcome.String(), time.Since(start))
	return outcome
}

func (p *Pipeline) handle(ctx context.Context, ev model.MatchEvent) Outcome {
	if ev.Text == "" {
		return OutcomeEmpty
	}

	src, ok := p.registry.Lookup(ev.Source.PlatformID)
	if !ok {
		p.log.Debug("event from unmonitored chat", "chat_id", ev.Source.PlatformID, "chat", ev.Source.DisplayName)
		return OutcomeUnknownSource
	}
	ev.Source = src
	ev.Timestamp = ev.Timestamp.UTC()

	floor := p.Floor(ctx, src)
	if !ev.Timestamp.After(floor) {
		return OutcomeStale
	}

	matched := filter.FindKeywords(ev.Text, p.keywords)
	if len(matched) == 0 {
		return OutcomeNoMatch
	}

	log := p.log.With("source", src.URL, "message_id", ev.MessageID)
	log.Info("keywords found", "group", src.DisplayName, "keywords", matched)

	var sender *model.Identity
	if ev.Sender != nil || ev.SenderID != 0 {
		s, err := p.senders.ResolveSender(ctx, ev)
		if err != nil {
			log.Warn("resolve sender", "sender_id", ev.SenderID, "error", err)
		} else {
			sender = s
		}
	}

	n := bot.BuildNotification(ev, sender, matched)
	text := bot.RenderNotification(n)

	if p.pacer != nil {
		if err := p.pacer.Wait(ctx); err != nil {
			log.Info("event abandoned", "error", err)
			return OutcomeCancelled
		}
	}

	outcome := OutcomeDispatched
	if err := p.dispatcher.Dispatch(ctx, text); err != nil {
		outcome = OutcomeDispatchFailed
		p.metrics.DispatchError()
		log.Error("dispatch notification", "error", err)
	} else {
		log.Info("notification sent", "author", n.AuthorDisplay, "group", src.DisplayName)
	}

	p.advance(ctx, src, ev)
	return outcome
}

// Floor returns the time an event from src must be strictly newer than:
// the later of the process start and the source's watermark, or its
// cold-start fallback when no watermark is available.
func (p *Pipeline) Floor(ctx context.Context, src model.Source) time.Time {
	floor := p.startedAt

	var sourceFloor time.Time
	wm, err := p.store.GetLast(ctx, src.URL)
	if err != nil {
		p.metrics.StoreError()
		p.log.Warn("read watermark", "source", src.URL, "error", err)
	}
	if err == nil && wm != nil {
		sourceFloor = wm.LastMessageTime.UTC()
	} else {
		sourceFloor = p.coldFloor(src.URL)
	}
	if sourceFloor.After(floor) {
		floor = sourceFloor
	}

	p.mu.Lock()
	last := p.accepted[src.URL]
	p.mu.Unlock()
	if last.After(floor) {
		floor = last
	}
	return floor
}

func (p *Pipeline) coldFloor(url string) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.cold[url]; ok {
		return t
	}
	t := p.store.Fallback(p.fallbackMinutes).UTC()
	p.cold[url] = t
	return t
}

// advance records ev as the newest processed event of src. The write
// ignores cancellation of ctx.
func (p *Pipeline) advance(ctx context.Context, src model.Source, ev model.MatchEvent) {
	p.mu.Lock()
	if ev.Timestamp.After(p.accepted[src.URL]) {
		p.accepted[src.URL] = ev.Timestamp
	}
	p.mu.Unlock()

	if err := p.store.SaveLast(context.WithoutCancel(ctx), src, ev.Timestamp, ev.MessageID); err != nil {
		p.metrics.StoreError()
		p.log.Error("save watermark", "source", src.URL, "error", err)
	}
}

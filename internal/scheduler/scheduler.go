// Package scheduler runs the periodic jobs: polling public channels through
// a feed bridge and sweeping stale watermarks.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tg_monitor/internal/fetcher"
	"tg_monitor/internal/model"
	"tg_monitor/internal/source"
)

// Pacer spaces out outbound requests.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Scheduler periodically fetches the bridge feed of every public source and
// pushes its posts into the event stream.
type Scheduler struct {
	registry  *source.Registry
	fetcher   *fetcher.Fetcher
	bridgeURL string
	events    chan<- model.MatchEvent
	pacer     Pacer
	log       *slog.Logger
	tick      time.Duration

	// newest post already emitted per source; only touched by Run.
	lastSeen map[int64]time.Time
}

// New creates a Scheduler with the default HTTP client. bridgeURL is a
// template with a single %s for the channel handle.
func New(registry *source.Registry, bridgeURL string, events chan<- model.MatchEvent, log *slog.Logger) *Scheduler {
	return NewWithFetcher(registry, fetcher.New(http.DefaultClient), bridgeURL, events, log)
}

// NewWithFetcher creates a Scheduler with a custom fetcher (useful for testing).
func NewWithFetcher(registry *source.Registry, f *fetcher.Fetcher, bridgeURL string, events chan<- model.MatchEvent, log *slog.Logger) *Scheduler {
	return &Scheduler{
		registry:  registry,
		fetcher:   f,
		bridgeURL: bridgeURL,
		events:    events,
		log:       log,
		tick:      5 * time.Minute,
		lastSeen:  make(map[int64]time.Time),
	}
}

// SetTickInterval overrides the default 5-minute poll interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	if d > 0 {
		s.tick = d
	}
}

// SetPacer makes the scheduler wait on p before every fetch.
func (s *Scheduler) SetPacer(p Pacer) {
	s.pacer = p
}

// Run starts the polling loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	for _, src := range s.registry.All() {
		if ctx.Err() != nil {
			return
		}
		if src.Handle == "" {
			continue
		}
		if s.pacer != nil {
			if err := s.pacer.Wait(ctx); err != nil {
				return
			}
		}
		s.processSource(ctx, src)
	}
}

func (s *Scheduler) processSource(ctx context.Context, src model.Source) {
	feedURL := fmt.Sprintf(s.bridgeURL, src.Handle)
	s.log.Debug("checking channel feed", "source", src.URL, "url", feedURL)

	feed, err := s.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		s.log.Error("fetch channel feed", "source", src.URL, "url", feedURL, "error", err)
		return
	}

	last := s.lastSeen[src.PlatformID]
	emitted := 0
	for _, ev := range fetcher.ItemsToEvents(src, feed) {
		if !ev.Timestamp.After(last) {
			continue
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}
		s.lastSeen[src.PlatformID] = ev.Timestamp
		last = ev.Timestamp
		emitted++
	}

	if emitted > 0 {
		s.log.Debug("queued feed posts", "source", src.URL, "count", emitted)
	}
}

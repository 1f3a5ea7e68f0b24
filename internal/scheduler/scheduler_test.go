package scheduler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tg_monitor/internal/fetcher"
	"tg_monitor/internal/model"
	"tg_monitor/internal/source"
)

type mockHTTP struct {
	mu   sync.Mutex
	body string
	urls []string
}

func (m *mockHTTP) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.urls = append(m.urls, req.URL.String())
	body := m.body
	m.mu.Unlock()
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}, nil
}

func (m *mockHTTP) requested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.urls...)
}

type countingPacer struct {
	calls int
	err   error
}

func (p *countingPacer) Wait(_ context.Context) error {
	p.calls++
	return p.err
}

const bridge = "https://bridge.example/telegram/channel/%s"

var (
	musicJobs = model.Source{
		URL:         "https://t.me/musicjobs",
		PlatformID:  -1009876543210,
		DisplayName: "Music Jobs",
		Handle:      "musicjobs",
	}
	privateGigs = model.Source{
		URL:         "https://t.me/c/1234567890",
		PlatformID:  -1001234567890,
		DisplayName: "Private Gigs",
	}
)

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/channel.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

func newTestScheduler(t *testing.T, body string, events chan model.MatchEvent) (*Scheduler, *mockHTTP) {
	t.Helper()
	reg := source.NewRegistry()
	reg.Register(musicJobs)
	reg.Register(privateGigs)

	httpClient := &mockHTTP{body: body}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWithFetcher(reg, fetcher.New(httpClient), bridge, events, log), httpClient
}

func drain(events chan model.MatchEvent) []int64 {
	var ids []int64
	for {
		select {
		case ev := <-events:
			ids = append(ids, ev.MessageID)
		default:
			return ids
		}
	}
}

func TestSchedulerQueuesPublicChannelPosts(t *testing.T) {
	events := make(chan model.MatchEvent, 10)
	sched, httpClient := newTestScheduler(t, loadFixture(t), events)

	sched.checkAll(context.Background())

	if diff := cmp.Diff([]string{"https://bridge.example/telegram/channel/musicjobs"}, httpClient.requested()); diff != "" {
		t.Errorf("only public sources should be polled (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{11, 12}, drain(events)); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedulerSkipsAlreadyQueuedPosts(t *testing.T) {
	events := make(chan model.MatchEvent, 10)
	sched, _ := newTestScheduler(t, loadFixture(t), events)
	ctx := context.Background()

	sched.checkAll(ctx)
	drain(events)

	sched.checkAll(ctx)
	if got := drain(events); len(got) != 0 {
		t.Errorf("expected no repeated posts, got %v", got)
	}
}

func TestSchedulerFetchError(t *testing.T) {
	events := make(chan model.MatchEvent, 10)
	sched, _ := newTestScheduler(t, "not xml", events)

	sched.checkAll(context.Background())

	if got := drain(events); len(got) != 0 {
		t.Errorf("expected no events on fetch error, got %v", got)
	}
}

func TestSchedulerUsesPacer(t *testing.T) {
	events := make(chan model.MatchEvent, 10)
	sched, httpClient := newTestScheduler(t, loadFixture(t), events)

	p := &countingPacer{}
	sched.SetPacer(p)
	sched.checkAll(context.Background())
	if p.calls != 1 {
		t.Errorf("expected one pacer wait, got %d", p.calls)
	}

	p.err = context.Canceled
	sched.checkAll(context.Background())
	if got := len(httpClient.requested()); got != 1 {
		t.Errorf("pacer error must stop polling, got %d requests", got)
	}
}

func TestSchedulerCancelledContext(t *testing.T) {
	events := make(chan model.MatchEvent, 10)
	sched, httpClient := newTestScheduler(t, loadFixture(t), events)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sched.checkAll(ctx)

	if got := httpClient.requested(); len(got) != 0 {
		t.Errorf("expected no requests when context cancelled, got %v", got)
	}
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	events := make(chan model.MatchEvent, 10)
	sched, _ := newTestScheduler(t, "<rss><channel></channel></rss>", events)
	sched.SetTickInterval(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

// --- retention ---

type mockPurger struct {
	mu    sync.Mutex
	days  []int
	n     int64
	err   error
	calls chan struct{}
}

func (m *mockPurger) PurgeOlderThan(_ context.Context, days int) (int64, error) {
	m.mu.Lock()
	m.days = append(m.days, days)
	m.mu.Unlock()
	if m.calls != nil {
		select {
		case m.calls <- struct{}{}:
		default:
		}
	}
	return m.n, m.err
}

func TestNewRetentionRejectsBadSchedule(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, schedule := range []string{"", "every day", "* * *", "0 0 0 * * *"} {
		if _, err := NewRetention(&mockPurger{}, 30, schedule, log); err == nil {
			t.Errorf("expected error for schedule %q", schedule)
		}
	}
	for _, schedule := range []string{"@daily", "@every 1h", "30 3 * * *"} {
		if _, err := NewRetention(&mockPurger{}, 30, schedule, log); err != nil {
			t.Errorf("schedule %q: unexpected error %v", schedule, err)
		}
	}
}

func TestRetentionSweep(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := &mockPurger{n: 3}
	r, err := NewRetention(p, 30, "@daily", log)
	if err != nil {
		t.Fatalf("new retention: %v", err)
	}

	n, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 3 {
		t.Errorf("purged = %d, want 3", n)
	}
	if diff := cmp.Diff([]int{30}, p.days); diff != "" {
		t.Errorf("days mismatch (-want +got):\n%s", diff)
	}

	p.err = errors.New("database is locked")
	if _, err := r.Sweep(context.Background()); err == nil {
		t.Error("expected sweep error")
	}
}

func TestRetentionStartRunsOnSchedule(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := &mockPurger{calls: make(chan struct{}, 1)}
	r, err := NewRetention(p, 7, "@every 1s", log)
	if err != nil {
		t.Fatalf("new retention: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-p.calls:
	case <-time.After(3 * time.Second):
		t.Fatal("retention sweep did not run")
	}
}

func TestRetentionDisabled(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := &mockPurger{}
	r, err := NewRetention(p, 0, "@every 1s", log)
	if err != nil {
		t.Fatalf("new retention: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(1500 * time.Millisecond)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.days) != 0 {
		t.Errorf("disabled retention must not purge, got %v", p.days)
	}
}

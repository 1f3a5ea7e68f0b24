// Package fetcher downloads channel feeds from an RSS bridge and turns their
// items into match events.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"tg_monitor/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses channel feeds.
type Fetcher struct {
	client  HTTPClient
	timeout time.Duration
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:  client,
		timeout: 30 * time.Second,
	}
}

// Fetch downloads and parses a feed from the given URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "TgMonitor/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// ItemsToEvents converts feed items of a channel into events, oldest first.
// Items without a publication time are skipped because they cannot be
// compared against a watermark.
func ItemsToEvents(src model.Source, feed *gofeed.Feed) []model.MatchEvent {
	if feed == nil {
		return nil
	}

	events := make([]model.MatchEvent, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published == nil {
			continue
		}

		text := ItemText(item.Content)
		if text == "" {
			text = ItemText(item.Description)
		}
		if text == "" {
			text = strings.TrimSpace(item.Title)
		}

		events = append(events, model.MatchEvent{
			Text:      text,
			Timestamp: published.UTC(),
			MessageID: MessageID(item.Link),
			Source:    src,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].MessageID < events[j].MessageID
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

// ItemText extracts plain text from an item's HTML body. Line breaks are kept.
func ItemText(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	doc.Find("br").ReplaceWithNodes(newline())
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		s.AppendNodes(newline())
	})
	return strings.TrimSpace(doc.Text())
}

func newline() *html.Node {
	return &html.Node{Type: html.TextNode, Data: "\n"}
}

// MessageID parses the message number from a post link such as
// https://t.me/channel/123. It returns 0 when the link carries none.
func MessageID(link string) int64 {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Path == "" {
		return 0
	}
	id, err := strconv.ParseInt(path.Base(u.Path), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

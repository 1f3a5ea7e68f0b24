package bot

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"tg_monitor/internal/model"
)

const statusTimeLayout = "2006-01-02 15:04 UTC"

// FormatStatus formats store statistics and the stored watermarks.
func FormatStatus(stats model.Stats, snapshot map[string]model.WatermarkSnapshot, monitored int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Monitoring %d source(s)</b>\n", monitored)
	fmt.Fprintf(&b, "Stored watermarks: %d, active in the last day: %d\n", stats.TotalSources, stats.ActiveToday)

	if len(snapshot) == 0 {
		b.WriteString("\nNo messages processed yet.")
		return b.String()
	}

	urls := make([]string, 0, len(snapshot))
	for url := range snapshot {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	b.WriteString("\n")
	for _, url := range urls {
		s := snapshot[url]
		name := s.DisplayName
		if name == "" {
			name = url
		}
		last := "never"
		if !s.MessageTime.IsZero() {
			last = s.MessageTime.UTC().Format(statusTimeLayout)
		}
		fmt.Fprintf(&b, "• %s: %s\n", html.EscapeString(name), last)
	}
	return b.String()
}

// FormatSources lists the monitored sources with links where available.
func FormatSources(sources []model.Source) string {
	if len(sources) == 0 {
		return "No sources are being monitored."
	}
	var b strings.Builder
	b.WriteString("<b>Monitored sources:</b>\n")
	for i, src := range sources {
		fmt.Fprintf(&b, "\n%d. %s", i+1, renderLink(GroupLink(src)))
		if src.Handle == "" {
			fmt.Fprintf(&b, " (id %d)", src.PlatformID)
		}
	}
	b.WriteString("\n\nUse /watermark &lt;n&gt; for details.")
	return b.String()
}

// FormatKeywords lists the configured keywords.
func FormatKeywords(keywords []string) string {
	if len(keywords) == 0 {
		return "No keywords configured."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Keywords (%d):</b>\n", len(keywords))
	for _, kw := range keywords {
		fmt.Fprintf(&b, "• %s\n", html.EscapeString(kw))
	}
	return b.String()
}

// FormatWatermark formats the progress of a single source.
func FormatWatermark(src model.Source, wm *model.Watermark) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(src.DisplayName))
	fmt.Fprintf(&b, "URL: %s\n", html.EscapeString(src.URL))
	fmt.Fprintf(&b, "Chat ID: %d\n", src.PlatformID)
	if wm == nil {
		b.WriteString("\nNo watermark yet: only messages newer than the startup window are considered.")
		return b.String()
	}
	fmt.Fprintf(&b, "\nLast message: %s (%s)\n", wm.LastMessageTime.UTC().Format(statusTimeLayout), renderLink(MessageLink(src, wm.LastMessageID)))
	if !wm.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "Updated: %s\n", wm.UpdatedAt.UTC().Format(statusTimeLayout))
	}
	return b.String()
}

package bot

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"tg_monitor/internal/model"
)

const (
	maxShownKeywords = 5
	// Telegram rejects messages over 4096 characters; leave room for the
	// labels and links around the body.
	maxBodyRunes = 3000
	timeLayout   = "02.01.2006 15:04"
)

// BuildNotification assembles the alert for an accepted event. sender may be
// nil when the author could not be resolved; every field falls back on its own.
func BuildNotification(ev model.MatchEvent, sender *model.Identity, keywords []string) model.Notification {
	if sender == nil {
		sender = ev.Sender
	}
	shown := keywords
	if len(shown) > maxShownKeywords {
		shown = shown[:maxShownKeywords]
	}
	return model.Notification{
		AuthorDisplay:   AuthorDisplay(sender),
		GroupLink:       GroupLink(ev.Source),
		MatchedKeywords: append([]string(nil), shown...),
		Timestamp:       ev.Timestamp.UTC(),
		MessageText:     ev.Text,
		MessageLink:     MessageLink(ev.Source, ev.MessageID),
		ContactLink:     ContactLink(ev.Text, sender, ev.SenderID),
	}
}

// RenderNotification formats a notification as Telegram HTML.
func RenderNotification(n model.Notification) string {
	var b strings.Builder
	b.WriteString("🎵 <b>New match found!</b>\n\n")
	fmt.Fprintf(&b, "👤 <b>Author:</b> %s\n", html.EscapeString(n.AuthorDisplay))
	fmt.Fprintf(&b, "💬 <b>Group:</b> %s\n", renderLink(n.GroupLink))
	fmt.Fprintf(&b, "🔍 <b>Keywords:</b> %s\n", html.EscapeString(strings.Join(n.MatchedKeywords, ", ")))
	fmt.Fprintf(&b, "📅 <b>Time:</b> %s\n\n", n.Timestamp.UTC().Format(timeLayout))
	b.WriteString("<b>Message:</b>\n")
	b.WriteString(html.EscapeString(truncateRunes(n.MessageText, maxBodyRunes)))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "🔗 %s\n", renderLink(n.MessageLink))
	fmt.Fprintf(&b, "👆 %s", renderLink(n.ContactLink))
	return b.String()
}

func renderLink(l model.Link) string {
	if l.URL == "" {
		return html.EscapeString(l.Text)
	}
	return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(l.URL), html.EscapeString(l.Text))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}

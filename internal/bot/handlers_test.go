package bot

import (
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"tg_monitor/internal/model"
)

var (
	publicSource = model.Source{
		URL:         "https://t.me/musicjobs",
		PlatformID:  -1009876543210,
		DisplayName: "Music Jobs",
		Handle:      "musicjobs",
	}
	privateSource = model.Source{
		URL:         "https://t.me/c/1234567890",
		PlatformID:  -1001234567890,
		DisplayName: "Private Gigs",
	}
	basicGroup = model.Source{
		URL:         "legacy-group",
		PlatformID:  -4455667,
		DisplayName: "Old <Group>",
	}
)

func TestParseIndexArg(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		count   int
		want    int
		wantErr bool
	}{
		{name: "valid", args: "2", count: 3, want: 2},
		{name: "with whitespace", args: "  1  ", count: 1, want: 1},
		{name: "empty", args: "", count: 3, wantErr: true},
		{name: "not a number", args: "abc", count: 3, wantErr: true},
		{name: "zero", args: "0", count: 3, wantErr: true},
		{name: "out of range", args: "4", count: 3, wantErr: true},
		{name: "no sources", args: "1", count: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIndexArg(tt.args, tt.count)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		data       string
		wantAction string
		wantArg    string
		wantOK     bool
	}{
		{data: "status:0", wantAction: "status", wantArg: "0", wantOK: true},
		{data: "watermark:3", wantAction: "watermark", wantArg: "3", wantOK: true},
		{data: "garbage", wantOK: false},
		{data: ":1", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			action, arg, ok := ParseCallbackData(tt.data)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if action != tt.wantAction || arg != tt.wantArg {
				t.Errorf("got (%q, %q), want (%q, %q)", action, arg, tt.wantAction, tt.wantArg)
			}
		})
	}
}

func TestAuthorDisplay(t *testing.T) {
	tests := []struct {
		name   string
		sender *model.Identity
		want   string
	}{
		{name: "nil sender", sender: nil, want: "unknown author"},
		{name: "username wins", sender: &model.Identity{Username: "bob", FirstName: "Bob"}, want: "@bob"},
		{name: "first and last", sender: &model.Identity{FirstName: "Bob", LastName: "Marley"}, want: "Bob Marley"},
		{name: "first only", sender: &model.Identity{FirstName: "Bob"}, want: "Bob"},
		{name: "nothing usable", sender: &model.Identity{ID: 5}, want: "unknown author"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, AuthorDisplay(tt.sender)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestContactLink(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		sender   *model.Identity
		senderID int64
		want     model.Link
	}{
		{
			name:     "mention in text beats sender username",
			text:     "call @alice or @carol",
			sender:   &model.Identity{ID: 7, Username: "bob"},
			senderID: 7,
			want:     model.Link{Text: "Write @alice", URL: "https://t.me/alice"},
		},
		{
			name:     "sender username",
			text:     "no mentions here",
			sender:   &model.Identity{ID: 7, Username: "bob"},
			senderID: 7,
			want:     model.Link{Text: "Write @bob", URL: "https://t.me/bob"},
		},
		{
			name:     "numeric id",
			text:     "no mentions here",
			sender:   &model.Identity{ID: 7, FirstName: "Bob"},
			senderID: 7,
			want:     model.Link{Text: "Write to the author", URL: "tg://user?id=7"},
		},
		{
			name:     "numeric id without resolved sender",
			text:     "",
			sender:   nil,
			senderID: 99,
			want:     model.Link{Text: "Write to the author", URL: "tg://user?id=99"},
		},
		{
			name: "nothing known",
			text: "plain",
			want: model.Link{Text: "contact unavailable"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContactLink(tt.text, tt.sender, tt.senderID)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGroupLink(t *testing.T) {
	tests := []struct {
		name string
		src  model.Source
		want model.Link
	}{
		{name: "public", src: publicSource, want: model.Link{Text: "Music Jobs", URL: "https://t.me/musicjobs"}},
		{name: "private supergroup", src: privateSource, want: model.Link{Text: "Private Gigs", URL: "https://t.me/c/1234567890"}},
		{name: "basic group", src: basicGroup, want: model.Link{Text: "Old <Group>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, GroupLink(tt.src)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMessageLink(t *testing.T) {
	tests := []struct {
		name string
		src  model.Source
		id   int64
		want model.Link
	}{
		{name: "public", src: publicSource, id: 42, want: model.Link{Text: "Open message", URL: "https://t.me/musicjobs/42"}},
		{name: "private supergroup", src: privateSource, id: 7, want: model.Link{Text: "Open message", URL: "https://t.me/c/1234567890/7"}},
		{name: "basic group placeholder", src: basicGroup, id: 7, want: model.Link{Text: "link unavailable"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, MessageLink(tt.src, tt.id)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildNotification(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 5, 0, 0, time.UTC)
	ev := model.MatchEvent{
		Text:      "need a saxophonist for a wedding, саксофон обязателен",
		Timestamp: ts,
		MessageID: 42,
		SenderID:  7,
		Sender:    &model.Identity{ID: 7, FirstName: "Ivan", LastName: "Petrov"},
		Source:    publicSource,
	}
	keywords := []string{"саксофон", "a", "b", "c", "d", "e"}

	got := BuildNotification(ev, nil, keywords)
	want := model.Notification{
		AuthorDisplay:   "Ivan Petrov",
		GroupLink:       model.Link{Text: "Music Jobs", URL: "https://t.me/musicjobs"},
		MatchedKeywords: []string{"саксофон", "a", "b", "c", "d"},
		Timestamp:       ts,
		MessageText:     ev.Text,
		MessageLink:     model.Link{Text: "Open message", URL: "https://t.me/musicjobs/42"},
		ContactLink:     model.Link{Text: "Write to the author", URL: "tg://user?id=7"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if len(keywords) != 6 {
		t.Error("BuildNotification modified the keyword slice")
	}
}

func TestBuildNotificationPrefersResolvedSender(t *testing.T) {
	ev := model.MatchEvent{
		Text:     "gig",
		SenderID: 7,
		Sender:   &model.Identity{ID: 7, FirstName: "Stale"},
		Source:   privateSource,
	}
	got := BuildNotification(ev, &model.Identity{ID: 7, Username: "fresh"}, []string{"gig"})
	if diff := cmp.Diff("@fresh", got.AuthorDisplay); diff != "" {
		t.Errorf("author mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderNotification(t *testing.T) {
	n := model.Notification{
		AuthorDisplay:   "@bob",
		GroupLink:       model.Link{Text: "Music Jobs", URL: "https://t.me/musicjobs"},
		MatchedKeywords: []string{"sax", "drums"},
		Timestamp:       time.Date(2025, 3, 14, 9, 5, 0, 0, time.UTC),
		MessageText:     "Need sax & drums <asap>",
		MessageLink:     model.Link{Text: "link unavailable"},
		ContactLink:     model.Link{Text: "Write @bob", URL: "https://t.me/bob"},
	}

	want := "🎵 <b>New match found!</b>\n\n" +
		"👤 <b>Author:</b> @bob\n" +
		"💬 <b>Group:</b> <a href=\"https://t.me/musicjobs\">Music Jobs</a>\n" +
		"🔍 <b>Keywords:</b> sax, drums\n" +
		"📅 <b>Time:</b> 14.03.2025 09:05\n\n" +
		"<b>Message:</b>\n" +
		"Need sax &amp; drums &lt;asap&gt;\n\n" +
		"🔗 link unavailable\n" +
		"👆 <a href=\"https://t.me/bob\">Write @bob</a>"

	if diff := cmp.Diff(want, RenderNotification(n)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderNotificationTruncatesLongBody(t *testing.T) {
	n := model.Notification{MessageText: strings.Repeat("я", maxBodyRunes+100)}
	got := RenderNotification(n)
	if strings.Count(got, "я") != maxBodyRunes {
		t.Errorf("expected body truncated to %d runes", maxBodyRunes)
	}
	if !strings.Contains(got, "…") {
		t.Error("expected ellipsis after truncated body")
	}
}

func TestFormatStatus(t *testing.T) {
	snapshot := map[string]model.WatermarkSnapshot{
		"https://t.me/b": {MessageTime: time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC), DisplayName: "B & co"},
		"https://t.me/a": {DisplayName: "A"},
	}
	got := FormatStatus(model.Stats{TotalSources: 2, ActiveToday: 1}, snapshot, 3)

	for _, want := range []string{
		"Monitoring 3 source(s)",
		"Stored watermarks: 2, active in the last day: 1",
		"• A: never",
		"• B &amp; co: 2025-01-02 03:04 UTC",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in:\n%s", want, got)
		}
	}
	if strings.Index(got, "• A") > strings.Index(got, "• B") {
		t.Error("expected sources sorted by URL")
	}

	empty := FormatStatus(model.Stats{}, nil, 0)
	if !strings.Contains(empty, "No messages processed yet.") {
		t.Errorf("unexpected empty status: %s", empty)
	}
}

func TestFormatSourcesAndKeywords(t *testing.T) {
	got := FormatSources([]model.Source{publicSource, basicGroup})
	for _, want := range []string{
		`1. <a href="https://t.me/musicjobs">Music Jobs</a>`,
		"2. Old &lt;Group&gt; (id -4455667)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in:\n%s", want, got)
		}
	}
	if diff := cmp.Diff("No sources are being monitored.", FormatSources(nil)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	kw := FormatKeywords([]string{"sax", "<b>"})
	if !strings.Contains(kw, "Keywords (2)") || !strings.Contains(kw, "• &lt;b&gt;") {
		t.Errorf("unexpected keywords output:\n%s", kw)
	}
}

func TestEventFromMessage(t *testing.T) {
	date := time.Date(2025, 3, 14, 9, 5, 0, 0, time.UTC)
	tests := []struct {
		name   string
		msg    *tgbotapi.Message
		want   model.MatchEvent
		wantOK bool
	}{
		{
			name: "group text message",
			msg: &tgbotapi.Message{
				MessageID: 42,
				Date:      int(date.Unix()),
				Text:      "need a sax",
				Chat:      &tgbotapi.Chat{ID: -1009876543210, Type: "supergroup", Title: "Music Jobs", UserName: "musicjobs"},
				From:      &tgbotapi.User{ID: 7, UserName: "bob", FirstName: "Bob"},
			},
			want: model.MatchEvent{
				Text:      "need a sax",
				Timestamp: date,
				MessageID: 42,
				SenderID:  7,
				Sender:    &model.Identity{ID: 7, Username: "bob", FirstName: "Bob"},
				Source:    model.Source{PlatformID: -1009876543210, DisplayName: "Music Jobs", Handle: "musicjobs"},
			},
			wantOK: true,
		},
		{
			name: "channel post uses caption",
			msg: &tgbotapi.Message{
				MessageID: 5,
				Date:      int(date.Unix()),
				Caption:   "photo of a sax",
				Chat:      &tgbotapi.Chat{ID: -1001234567890, Type: "channel", Title: "Private Gigs"},
			},
			want: model.MatchEvent{
				Text:      "photo of a sax",
				Timestamp: date,
				MessageID: 5,
				Source:    model.Source{PlatformID: -1001234567890, DisplayName: "Private Gigs"},
			},
			wantOK: true,
		},
		{
			name:   "no chat",
			msg:    &tgbotapi.Message{Text: "x"},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EventFromMessage(tt.msg)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

package bot

import (
	"fmt"
	"regexp"
	"strings"

	"tg_monitor/internal/model"
	"tg_monitor/internal/source"
)

const (
	unknownAuthor      = "unknown author"
	linkUnavailable    = "link unavailable"
	contactUnavailable = "contact unavailable"
)

var mentionRe = regexp.MustCompile(`@([A-Za-z0-9_]+)`)

// AuthorDisplay names the sender: @username, then first and last name,
// then a fixed marker.
func AuthorDisplay(sender *model.Identity) string {
	if sender == nil {
		return unknownAuthor
	}
	if sender.Username != "" {
		return "@" + sender.Username
	}
	name := strings.TrimSpace(strings.TrimSpace(sender.FirstName) + " " + strings.TrimSpace(sender.LastName))
	if name == "" {
		return unknownAuthor
	}
	return name
}

// ContactLink picks how to reach the author. A @mention inside the message
// wins over the sender's own username, which wins over a link by user ID.
func ContactLink(text string, sender *model.Identity, senderID int64) model.Link {
	if m := mentionRe.FindStringSubmatch(text); m != nil {
		return userLink(m[1])
	}
	if sender != nil && sender.Username != "" {
		return userLink(sender.Username)
	}
	if senderID == 0 && sender != nil {
		senderID = sender.ID
	}
	if senderID > 0 {
		return model.Link{Text: "Write to the author", URL: fmt.Sprintf("tg://user?id=%d", senderID)}
	}
	return model.Link{Text: contactUnavailable}
}

func userLink(username string) model.Link {
	return model.Link{Text: "Write @" + username, URL: "https://t.me/" + username}
}

// GroupLink links to a public group by handle or to a private supergroup by
// its short ID. Other chats get their name without a link.
func GroupLink(src model.Source) model.Link {
	name := src.DisplayName
	if name == "" {
		name = "group"
	}
	if base, ok := chatBaseURL(src); ok {
		return model.Link{Text: name, URL: base}
	}
	return model.Link{Text: name}
}

// MessageLink links to a single message. Chats without a public handle and
// outside the supergroup convention get a placeholder instead of a URL.
func MessageLink(src model.Source, messageID int64) model.Link {
	base, ok := chatBaseURL(src)
	if !ok || messageID <= 0 {
		return model.Link{Text: linkUnavailable}
	}
	return model.Link{Text: "Open message", URL: fmt.Sprintf("%s/%d", base, messageID)}
}

func chatBaseURL(src model.Source) (string, bool) {
	if src.Handle != "" {
		return "https://t.me/" + src.Handle, true
	}
	if short, ok := source.ShortID(src.PlatformID); ok {
		return "https://t.me/c/" + short, true
	}
	return "", false
}

package source

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInviteLink is returned for invite links, which a bot cannot resolve.
var ErrInviteLink = errors.New("invite links cannot be resolved")

// supergroupPrefix is the prefix Telegram puts in front of supergroup and
// channel IDs in the Bot API.
const supergroupPrefix = "-100"

// Ref identifies a chat parsed from a configured URL: either a public handle
// or a numeric chat ID.
type Ref struct {
	Handle string
	ChatID int64
}

// ParseURL converts a configured group reference into a Ref.
// Accepted forms: "t.me/name", "https://t.me/name[/123]", "@name", "name",
// "t.me/c/<id>[/123]" and a bare numeric chat ID.
func ParseURL(raw string) (Ref, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Ref{}, fmt.Errorf("empty group reference")
	}

	for _, prefix := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	for _, host := range []string{"t.me/", "telegram.me/", "www.t.me/"} {
		if strings.HasPrefix(s, host) {
			s = s[len(host):]
			break
		}
	}
	s = strings.TrimPrefix(s, "s/")

	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "joinchat/") {
		return Ref{}, fmt.Errorf("%q: %w", raw, ErrInviteLink)
	}

	if rest, ok := strings.CutPrefix(s, "c/"); ok {
		idPart, _, _ := strings.Cut(rest, "/")
		id, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil || id <= 0 {
			return Ref{}, fmt.Errorf("invalid private chat id in %q", raw)
		}
		return Ref{ChatID: SupergroupID(id)}, nil
	}

	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Ref{ChatID: id}, nil
	}

	handle, _, _ := strings.Cut(strings.TrimPrefix(s, "@"), "/")
	handle, _, _ = strings.Cut(handle, "?")
	if !validHandle(handle) {
		return Ref{}, fmt.Errorf("invalid group reference %q", raw)
	}
	return Ref{Handle: handle}, nil
}

// SupergroupID turns the short ID used in t.me/c/ links into a Bot API chat ID.
func SupergroupID(short int64) int64 {
	id, _ := strconv.ParseInt(supergroupPrefix+strconv.FormatInt(short, 10), 10, 64)
	return id
}

// ShortID strips the supergroup prefix from a chat ID.
// ok is false for chats that do not follow the supergroup convention.
func ShortID(chatID int64) (string, bool) {
	s := strconv.FormatInt(chatID, 10)
	short, ok := strings.CutPrefix(s, supergroupPrefix)
	if !ok || short == "" || short[0] == '0' {
		return "", false
	}
	return short, true
}

func validHandle(h string) bool {
	if h == "" {
		return false
	}
	for _, r := range h {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

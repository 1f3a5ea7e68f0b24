// Package model defines the domain types used across the application.
package model

import "time"

// Source is a monitored Telegram group or channel.
type Source struct {
	URL         string
	PlatformID  int64
	DisplayName string
	// Handle is the public username without "@", empty for private chats.
	Handle string
}

// Watermark is the last processed message of a source.
type Watermark struct {
	SourceURL       string
	PlatformID      int64
	DisplayName     string
	LastMessageTime time.Time
	LastMessageID   int64
	UpdatedAt       time.Time
}

// WatermarkSnapshot is a single entry of a full watermark listing.
type WatermarkSnapshot struct {
	MessageTime time.Time
	PlatformID  int64
	DisplayName string
}

// Stats summarizes the watermark table.
type Stats struct {
	TotalSources int
	ActiveToday  int
}

// Identity is the resolved author of a message.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// MatchEvent is an inbound message being evaluated against the keywords.
type MatchEvent struct {
	Text      string
	Timestamp time.Time
	MessageID int64
	SenderID  int64
	// Sender is nil when the platform did not attach an author.
	Sender *Identity
	Source Source
}

// Link is a labeled deep link. An empty URL means the label is shown as plain text.
type Link struct {
	Text string
	URL  string
}

// Notification is the alert sent to the target chat for a matched event.
type Notification struct {
	AuthorDisplay   string
	GroupLink       Link
	MatchedKeywords []string
	Timestamp       time.Time
	MessageText     string
	MessageLink     Link
	ContactLink     Link
}

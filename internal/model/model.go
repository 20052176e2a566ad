package model

import "time"

type MessageSource string

const (
	MessageSourceUser      = MessageSource("user")
	MessageSourceAssistant = MessageSource("assistant")
)

type Message struct {
	Source MessageSource
	Body   string
	SentAt time.Time
}

type Chat struct {
	ChatID   string
	UserID   string
	Title    string
	Created  time.Time
	Messages []Message
}

// ChatSummary is what the directory view needs: no message bodies beyond
// a short preview of the opening message.
type ChatSummary struct {
	ChatID  string
	Title   string
	Preview string
	Created time.Time
}

package database

import "time"

// SentMessage records a message dispatched through the gateway, for the
// send-history endpoint. Media fields are empty for text-only sends.
type SentMessage struct {
	ID        uint      `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	ChatID    string `db:"chat_id" json:"chat_id"`
	ChatName  string `db:"chat_name" json:"chat_name"`
	Body      string `db:"body" json:"body"`
	MediaMIME string `db:"media_mime" json:"media_mime,omitempty"`
	MediaName string `db:"media_name" json:"media_name,omitempty"`
}

package models

import (
	"time"
)

// Message is one mirrored message. Rows are write-once: an insert for an
// already-known ID is a no-op, and content observed later is never reflected.
// The snowflake ID orders messages by creation time, which is what the sync
// cursor relies on.
type Message struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
	Type          int       `json:"type"`
	ContentLength int       `json:"content_length"`
	// Content is only populated when the deployment opts into storing
	// message text verbatim (SYNC_STORE_CONTENT).
	Content   string `json:"content,omitempty"`
	AuthorID  int64  `json:"author_id" gorm:"index"`
	ChannelID int64  `json:"channel_id" gorm:"index"`
	GuildID   int64  `json:"guild_id" gorm:"index"`
}

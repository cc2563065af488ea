package models

// Channel is a text channel or thread inside a guild. Rows are created on
// first observation and renamed in place; removals on the Discord side are
// never reflected, so stale channels persist.
type Channel struct {
	ID      int64  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name    string `json:"name"`
	GuildID int64  `json:"guild_id" gorm:"index"`
}

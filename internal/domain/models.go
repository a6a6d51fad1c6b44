// Package domain defines the persistence models for users, shops, and search
// phrases. These types are mapped with GORM and form the core data layer of
// the bot.
package domain

import "time"

// User represents a Telegram chat that has talked to the bot at least once.
// A row is created on first contact and never updated or deleted.
//
// Fields:
//   - ID: numeric surrogate key.
//   - ChatID: Telegram chat identifier, unique per user.
//   - Username: optional display name taken from the first message.
type User struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	ChatID    string    `json:"chat_id"    gorm:"type:varchar(50);uniqueIndex;not null"`
	Username  string    `json:"username"   gorm:"type:varchar(100)"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Shop represents a registered marketplace shop bound to a chat. Shop IDs are
// assigned externally and are not auto-generated; rows are created by an
// external registration flow, this service only checks for their existence.
type Shop struct {
	ShopID int64  `json:"shop_id" gorm:"primaryKey;autoIncrement:false"`
	API    string `json:"-"       gorm:"type:text;not null"`
	ChatID string `json:"chat_id" gorm:"type:varchar(50);not null;index"`
}

// TableName returns the database table name for Shop.
func (Shop) TableName() string { return "shops" }

// Phrase is a search phrase imported from a spreadsheet report, owned by a
// single chat. Identity is the composite (chat_id, phrase) key: one shared
// table partitioned by chat rather than one physical table per chat.
//
// QntyPerDay and Subject are set at import time. The remaining fields are
// enrichment data written later by the ad-metrics task; they stay at their
// zero/null defaults until that task runs, and a re-import resets them.
type Phrase struct {
	ChatID     string    `json:"chat_id"      gorm:"type:varchar(50);primaryKey"`
	Text       string    `json:"phrase"       gorm:"column:phrase;type:varchar(255);primaryKey"`
	QntyPerDay int       `json:"qnty_per_day" gorm:"not null;default:0"`
	Subject    string    `json:"subject"      gorm:"type:varchar(255)"`
	Preset     int       `json:"preset"       gorm:"not null;default:0"`
	NormQuery  *string   `json:"norm_query"   gorm:"type:varchar(255)"`
	Auto       int       `json:"auto"         gorm:"not null;default:0"`
	Auction    int       `json:"auction"      gorm:"not null;default:0"`
	Total      int       `json:"total"        gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Phrase.
func (Phrase) TableName() string { return "phrases" }

package models

import "time"

// MaxTweetLength is the maximum number of characters in a tweet body.
const MaxTweetLength = 280

// Tweet is a short text post owned by a single user.
type Tweet struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Content   string    `gorm:"size:280;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// Like records that a user liked a tweet. The composite key allows one like per pair.
type Like struct {
	UserID    uint  `gorm:"primaryKey;autoIncrement:false"`
	TweetID   uint  `gorm:"primaryKey;autoIncrement:false;index"`
	User      User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Tweet     Tweet `gorm:"foreignKey:TweetID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
}

package models

import "time"

// DefaultProfileImage is the stored image path for accounts that never uploaded one.
const DefaultProfileImage = "profile_images/default.png"

// User represents a user account in the system.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"` // Never expose this to the client
	Bio          string    `gorm:"size:300;not null;default:''" json:"bio"`
	ProfileImage string    `gorm:"size:255;not null;default:'profile_images/default.png'" json:"profile_image"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

// Follow is a directed edge: Follower follows Following.
type Follow struct {
	FollowerID  uint      `gorm:"primaryKey;autoIncrement:false"`
	FollowingID uint      `gorm:"primaryKey;autoIncrement:false;index"`
	Follower    User      `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE"`
	Following   User      `gorm:"foreignKey:FollowingID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
}

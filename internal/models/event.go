package models

import "time"

// Event represents a recorded social action, e.g. a follow or a like.
type Event struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Type      string    `gorm:"size:64;not null;index" json:"type"` // e.g., "tweet.created", "user.followed"
	ActorID   *uint     `gorm:"index" json:"actor_id,omitempty"`    // Nullable for system events
	TargetID  *uint     `json:"target_id,omitempty"`                // tweet or user acted upon
	Message   string    `json:"message"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// RevokedToken is a blacklisted JWT, identified by its jti claim.
type RevokedToken struct {
	JTI       string    `gorm:"primaryKey;size:36"`
	UserID    uint      `gorm:"index"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}

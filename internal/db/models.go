package db

import (
	"time"

	"gorm.io/datatypes"
)

// Category is a titled list of candidate words. The table keeps the name the
// web client has always used for it.
type Category struct {
	ID        uint                        `gorm:"primaryKey" json:"id"`
	Title     string                      `gorm:"size:64;not null;uniqueIndex" json:"title"`
	Words     datatypes.JSONSlice[string] `gorm:"column:type;type:jsonb;not null" json:"type"`
	CreatedAt time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time                   `gorm:"not null" json:"updated_at"`
}

func (Category) TableName() string {
	return "types"
}

type Room struct {
	ID        string    `gorm:"primaryKey;size:8" json:"id"`
	TypeID    *uint     `gorm:"index" json:"type_id"`
	OwnerID   *string   `gorm:"type:uuid;index" json:"owner_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

type User struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string    `gorm:"size:64;not null;uniqueIndex:idx_users_room_username,expression:LOWER(username),priority:2" json:"username"`
	RoomID    *string   `gorm:"column:rooms_id;size:8;index;uniqueIndex:idx_users_room_username,priority:1" json:"rooms_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// Game records which user was the spy for which common word.
type Game struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SpyID     string    `gorm:"type:uuid;not null;index" json:"spy_id"`
	Keyword   string    `gorm:"size:64;not null" json:"keyword"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

package model

import "time"

type Item struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"size:120;not null" json:"title"`
	Category    string    `gorm:"size:64;index" json:"category"`
	Location    string    `gorm:"size:160" json:"location"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	PhotoURL    *string   `gorm:"size:512" json:"photoUrl,omitempty"`
	OwnerEmail  string    `gorm:"column:owner_email;size:254;not null;index" json:"ownerEmail"`
	Sample      bool      `gorm:"not null;default:false" json:"sample"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Item) TableName() string {
	return "items"
}

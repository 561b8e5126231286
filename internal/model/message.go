package model

import "time"

// MaxMessageLen caps message content length; enforced before any insert.
const MaxMessageLen = 500

type Message struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemID        uint64    `gorm:"column:item_id;index" json:"itemId"`
	SenderEmail   string    `gorm:"column:sender_email;size:254;not null;index" json:"senderEmail"`
	ReceiverEmail string    `gorm:"column:receiver_email;size:254;not null;index" json:"receiverEmail"`
	Content       string    `gorm:"size:500;not null" json:"content"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

package model

import (
	"time"
)

// Conversation is an unordered set of participants. It carries no state
// of its own beyond its creation time.
type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"participants,omitempty"`
	Messages     []Message                 `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

// ConversationParticipant is unique per (conversation, user)
type ConversationParticipant struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joined_at"`
	ConversationID uint      `gorm:"uniqueIndex:idx_conversation_user;not null" json:"conversation_id"`
	UserID         uint      `gorm:"uniqueIndex:idx_conversation_user;not null" json:"user_id"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
	User         User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// Message belongs to one conversation and one sender. Deleting the
// sending user discards the sender identity, not the message.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SentAt         time.Time `gorm:"autoCreateTime;index" json:"sent_at"`
	ConversationID uint      `gorm:"index;not null" json:"conversation_id"`
	SenderID       *uint     `json:"sender_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
	Sender       *User        `gorm:"foreignKey:SenderID;constraint:OnDelete:SET NULL" json:"sender,omitempty"`
}

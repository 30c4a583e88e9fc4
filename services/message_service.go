package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/elearnhq/elearn-api/model"
	"github.com/elearnhq/elearn-api/realtime"
	"gorm.io/gorm"
)

// sentAtLayout is the human-readable timestamp carried on chat frames
const sentAtLayout = "Jan. 2, 3:04 PM"

// ChatGroup names the realtime group of one conversation
func ChatGroup(conversationID uint) string {
	return fmt.Sprintf("chat_%d", conversationID)
}

// CallGroup names the signaling group of one conversation
func CallGroup(conversationID uint) string {
	return fmt.Sprintf("call_%d", conversationID)
}

// ChatFrame is the payload broadcast to a conversation's chat group
// after a message is persisted
type ChatFrame struct {
	Message  string `json:"message"`
	SentAt   string `json:"sent_at"`
	SenderID uint   `json:"sender_id"`
}

// CallInvite is the one-shot frame pushed to the callee when a call is
// placed. It mirrors the notification payload shape so clients render
// it like any other push; nothing is persisted for it.
type CallInvite struct {
	Type           string `json:"type"`
	Content        string `json:"content"`
	RedirectURL    string `json:"redirect_url"`
	ConversationID uint   `json:"conversation_id"`
	CallerID       uint   `json:"caller_id"`
	CallerName     string `json:"caller_name"`
}

// MessageService manages direct conversations and their messages
type MessageService struct {
	db     *gorm.DB
	broker realtime.Broker
}

// NewMessageService creates a new message service
func NewMessageService(db *gorm.DB, broker realtime.Broker) *MessageService {
	return &MessageService{db: db, broker: broker}
}

// GetOrCreateConversation returns the existing two-party conversation
// between the users or creates one. Both users must exist.
func (s *MessageService) GetOrCreateConversation(ctx context.Context, userID, peerID uint) (*model.Conversation, error) {
	if userID == peerID {
		return nil, Invalid("peer_id", "cannot start a conversation with yourself")
	}
	var peer model.User
	err := s.db.WithContext(ctx).First(&peer, peerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", peerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	var conversation model.Conversation
	err = s.db.WithContext(ctx).
		Joins("JOIN conversation_participants mine ON mine.conversation_id = conversations.id AND mine.user_id = ?", userID).
		Joins("JOIN conversation_participants theirs ON theirs.conversation_id = conversations.id AND theirs.user_id = ?", peerID).
		Preload("Participants").Preload("Participants.User").Preload("Participants.User.Profile").
		First(&conversation).Error
	if err == nil {
		return &conversation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("looking up conversation: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conversation = model.Conversation{}
		if err := tx.Create(&conversation).Error; err != nil {
			return err
		}
		participants := []model.ConversationParticipant{
			{ConversationID: conversation.ID, UserID: userID},
			{ConversationID: conversation.ID, UserID: peerID},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	err = s.db.WithContext(ctx).
		Preload("Participants").Preload("Participants.User").Preload("Participants.User.Profile").
		First(&conversation, conversation.ID).Error
	if err != nil {
		return nil, fmt.Errorf("reloading conversation: %w", err)
	}
	return &conversation, nil
}

// IsParticipant reports whether the user belongs to the conversation
func (s *MessageService) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking participant: %w", err)
	}
	return count > 0, nil
}

// ListThreads returns the user's conversations, most recently active
// first, with participants preloaded
func (s *MessageService) ListThreads(ctx context.Context, userID uint) ([]model.Conversation, error) {
	var conversations []model.Conversation
	err := s.db.WithContext(ctx).
		Joins("JOIN conversation_participants mine ON mine.conversation_id = conversations.id AND mine.user_id = ?", userID).
		Preload("Participants").Preload("Participants.User").Preload("Participants.User.Profile").
		Order("conversations.created_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	return conversations, nil
}

// History returns the conversation's messages, oldest first. The caller
// must be a participant.
func (s *MessageService) History(ctx context.Context, conversationID, userID uint, limit, offset int) ([]model.Message, error) {
	ok, err := s.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Forbidden(ReasonNotOwner)
	}

	if limit <= 0 {
		limit = 100
	}
	var messages []model.Message
	err = s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Preload("Sender").Preload("Sender.Profile").
		Order("sent_at ASC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	return messages, nil
}

// SaveMessage persists a message and then broadcasts it to the whole
// chat group, sender's own connections included. A failed broadcast
// never loses the row.
func (s *MessageService) SaveMessage(ctx context.Context, conversationID, senderID uint, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, Invalid("message", "must not be empty")
	}

	ok, err := s.IsParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Forbidden(ReasonNotOwner)
	}

	message := model.Message{
		ConversationID: conversationID,
		SenderID:       &senderID,
		Content:        text,
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, fmt.Errorf("saving message: %w", err)
	}

	frame := ChatFrame{
		Message:  message.Content,
		SentAt:   message.SentAt.Format(sentAtLayout),
		SenderID: senderID,
	}
	if err := s.broker.Send(ctx, ChatGroup(conversationID), frame); err != nil {
		log.Printf("chat broadcast for conversation %d failed: %v", conversationID, err)
	}
	return &message, nil
}

// PlaceCall pushes a one-shot call invite to every other participant's
// notification group. Calls leave no database trace.
func (s *MessageService) PlaceCall(ctx context.Context, conversationID, callerID uint) error {
	ok, err := s.IsParticipant(ctx, conversationID, callerID)
	if err != nil {
		return err
	}
	if !ok {
		return Forbidden(ReasonNotOwner)
	}

	var caller model.User
	if err := s.db.WithContext(ctx).Preload("Profile").First(&caller, callerID).Error; err != nil {
		return fmt.Errorf("loading caller: %w", err)
	}

	var participants []model.ConversationParticipant
	err = s.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id <> ?", conversationID, callerID).
		Find(&participants).Error
	if err != nil {
		return fmt.Errorf("loading participants: %w", err)
	}

	invite := CallInvite{
		Type:           "call",
		Content:        fmt.Sprintf("%s is calling you", caller.DisplayName()),
		RedirectURL:    fmt.Sprintf("/call/%d", conversationID),
		ConversationID: conversationID,
		CallerID:       callerID,
		CallerName:     caller.DisplayName(),
	}
	for _, participant := range participants {
		if err := s.broker.Send(ctx, NotificationGroup(participant.UserID), invite); err != nil {
			log.Printf("call invite to user %d failed: %v", participant.UserID, err)
		}
	}
	return nil
}

// RelaySignal forwards a call signaling frame to everyone else in the
// call group. The sender's own connection is excluded so offers never
// echo back.
func (s *MessageService) RelaySignal(ctx context.Context, conversationID uint, connID string, frame []byte) error {
	return s.broker.SendExcept(ctx, CallGroup(conversationID), frame, connID)
}

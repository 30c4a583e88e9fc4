package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/elearnhq/elearn-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateConversationIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewMessageService(db, &captureBroker{})

	alice := newStudent(t, db, "alice@example.com", "Alice")
	bob := newStudent(t, db, "bob@example.com", "Bob")

	first, err := svc.GetOrCreateConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, first.Participants, 2)

	// either side asking again lands in the same thread
	again, err := svc.GetOrCreateConversation(context.Background(), bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&model.Conversation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrCreateConversationRejectsSelfAndUnknownPeer(t *testing.T) {
	db := newTestDB(t)
	svc := NewMessageService(db, &captureBroker{})

	alice := newStudent(t, db, "alice@example.com", "Alice")

	_, err := svc.GetOrCreateConversation(context.Background(), alice.ID, alice.ID)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "peer_id", verr.Field)

	_, err = svc.GetOrCreateConversation(context.Background(), alice.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryRequiresParticipant(t *testing.T) {
	db := newTestDB(t)
	svc := NewMessageService(db, &captureBroker{})

	alice := newStudent(t, db, "alice@example.com", "Alice")
	bob := newStudent(t, db, "bob@example.com", "Bob")
	eve := newStudent(t, db, "eve@example.com", "Eve")

	conversation, err := svc.GetOrCreateConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = svc.SaveMessage(context.Background(), conversation.ID, alice.ID, "hi bob")
	require.NoError(t, err)
	_, err = svc.SaveMessage(context.Background(), conversation.ID, bob.ID, "hi alice")
	require.NoError(t, err)

	messages, err := svc.History(context.Background(), conversation.ID, alice.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hi bob", messages[0].Content)
	assert.Equal(t, "hi alice", messages[1].Content)

	_, err = svc.History(context.Background(), conversation.ID, eve.ID, 0, 0)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSaveMessageBroadcastsFrame(t *testing.T) {
	db := newTestDB(t)
	broker := &captureBroker{}
	svc := NewMessageService(db, broker)

	alice := newStudent(t, db, "alice@example.com", "Alice")
	bob := newStudent(t, db, "bob@example.com", "Bob")
	conversation, err := svc.GetOrCreateConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	message, err := svc.SaveMessage(context.Background(), conversation.ID, alice.ID, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", message.Content)

	sends := broker.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, ChatGroup(conversation.ID), sends[0].Group)

	frame, ok := sends[0].Payload.(ChatFrame)
	require.True(t, ok)
	assert.Equal(t, "hello", frame.Message)
	assert.Equal(t, alice.ID, frame.SenderID)
	assert.Equal(t, message.SentAt.Format(sentAtLayout), frame.SentAt)
}

func TestSaveMessageGates(t *testing.T) {
	db := newTestDB(t)
	svc := NewMessageService(db, &captureBroker{})

	alice := newStudent(t, db, "alice@example.com", "Alice")
	bob := newStudent(t, db, "bob@example.com", "Bob")
	eve := newStudent(t, db, "eve@example.com", "Eve")
	conversation, err := svc.GetOrCreateConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = svc.SaveMessage(context.Background(), conversation.ID, alice.ID, "   ")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.SaveMessage(context.Background(), conversation.ID, eve.ID, "sneaky")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSaveMessageSurvivesBrokerFailure(t *testing.T) {
	db := newTestDB(t)
	broker := &captureBroker{fail: true}
	svc := NewMessageService(db, broker)

	alice := newStudent(t, db, "alice@example.com", "Alice")
	bob := newStudent(t, db, "bob@example.com", "Bob")
	conversation, err := svc.GetOrCreateConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	message, err := svc.SaveMessage(context.Background(), conversation.ID, alice.ID, "hello")
	require.NoError(t, err)

	var stored model.Message
	require.NoError(t, db.First(&stored, message.ID).Error)
	assert.Equal(t, "hello", stored.Content)
}

func TestPlaceCallInvitesOtherParticipantsOnly(t *testing.T) {
	db := newTestDB(t)
	broker := &captureBroker{}
	svc := NewMessageService(db, broker)

	alice := newStudent(t, db, "alice@example.com", "Alice")
	bob := newStudent(t, db, "bob@example.com", "Bob")
	eve := newStudent(t, db, "eve@example.com", "Eve")
	conversation, err := svc.GetOrCreateConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	require.NoError(t, svc.PlaceCall(context.Background(), conversation.ID, alice.ID))

	sends := broker.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, NotificationGroup(bob.ID), sends[0].Group)

	invite, ok := sends[0].Payload.(CallInvite)
	require.True(t, ok)
	assert.Equal(t, "call", invite.Type)
	assert.Equal(t, "Alice is calling you", invite.Content)
	assert.Equal(t, fmt.Sprintf("/call/%d", conversation.ID), invite.RedirectURL)
	assert.Equal(t, conversation.ID, invite.ConversationID)
	assert.Equal(t, alice.ID, invite.CallerID)
	assert.Equal(t, "Alice", invite.CallerName)

	// calls leave no rows behind
	var count int64
	require.NoError(t, db.Model(&model.Notification{}).Count(&count).Error)
	assert.Zero(t, count)

	err = svc.PlaceCall(context.Background(), conversation.ID, eve.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRelaySignalExcludesSenderConn(t *testing.T) {
	db := newTestDB(t)
	broker := &captureBroker{}
	svc := NewMessageService(db, broker)

	require.NoError(t, svc.RelaySignal(context.Background(), 7, "conn-1", []byte(`{"type":"offer"}`)))

	sends := broker.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, CallGroup(7), sends[0].Group)
	assert.Equal(t, "conn-1", sends[0].Except)
}

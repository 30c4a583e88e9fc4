package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/elearnhq/elearn-api/database"
	"github.com/elearnhq/elearn-api/model"
	"github.com/elearnhq/elearn-api/realtime"
	"github.com/elearnhq/elearn-api/services"
	"github.com/elearnhq/elearn-api/utils/auth"
	"github.com/elearnhq/elearn-api/utils/middleware"
	gws "github.com/fasthttp/websocket"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// wsTestServer is a listening app with just the websocket routes wired
type wsTestServer struct {
	addr     string
	db       *gorm.DB
	jwt      *auth.JWTManager
	messages *services.MessageService
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	hub := realtime.NewHub()
	messages := services.NewMessageService(db, hub)
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: "ws-test-secret",
		Expiry: time.Hour,
		Issuer: "elearn-test",
	})
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)
	handler := NewWSHandler(hub, messages)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	wsGroup := app.Group("/ws", UpgradeRequired, authMiddleware.Optional())
	wsGroup.Get("/chat/:id", websocket.New(handler.Chat))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)

	t.Cleanup(func() {
		app.ShutdownWithTimeout(time.Second)
		sqlDB.Close()
	})
	return &wsTestServer{
		addr:     ln.Addr().String(),
		db:       db,
		jwt:      jwtManager,
		messages: messages,
	}
}

func (s *wsTestServer) user(t *testing.T, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, PasswordHash: "x", Role: model.RoleStudent}
	require.NoError(t, s.db.Create(user).Error)
	return user
}

func (s *wsTestServer) token(t *testing.T, user *model.User) string {
	t.Helper()
	token, err := s.jwt.GenerateAccessToken(user.ID, user.Email, string(user.Role))
	require.NoError(t, err)
	return token
}

func (s *wsTestServer) dialChat(t *testing.T, conversationID uint, token string) (*gws.Conn, error) {
	t.Helper()
	url := fmt.Sprintf("ws://%s/ws/chat/%d", s.addr, conversationID)
	if token != "" {
		url += "?token=" + token
	}
	conn, resp, err := gws.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// expectSilentClose asserts the upgraded socket is dropped without any
// frame arriving first. A deadline timeout means the socket stayed
// open, which is the failure being guarded against.
func expectSilentClose(t *testing.T, conn *gws.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.Error(t, err, "expected the server to drop the socket, got frame %q", frame)
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		t.Fatalf("socket stayed open instead of closing: %v", err)
	}
}

func TestChatSocketClosesForAnonymous(t *testing.T) {
	srv := newWSTestServer(t)
	alice := srv.user(t, "alice@example.com")
	bob := srv.user(t, "bob@example.com")
	conversation, err := srv.messages.GetOrCreateConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	conn, err := srv.dialChat(t, conversation.ID, "")
	require.NoError(t, err, "upgrade itself must succeed")
	defer conn.Close()

	expectSilentClose(t, conn)
}

func TestChatSocketClosesForNonParticipant(t *testing.T) {
	srv := newWSTestServer(t)
	alice := srv.user(t, "alice@example.com")
	bob := srv.user(t, "bob@example.com")
	eve := srv.user(t, "eve@example.com")
	conversation, err := srv.messages.GetOrCreateConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	conn, err := srv.dialChat(t, conversation.ID, srv.token(t, eve))
	require.NoError(t, err)
	defer conn.Close()

	expectSilentClose(t, conn)
}

func TestChatSocketClosesForUnknownConversation(t *testing.T) {
	srv := newWSTestServer(t)
	alice := srv.user(t, "alice@example.com")

	conn, err := srv.dialChat(t, 9999, srv.token(t, alice))
	require.NoError(t, err)
	defer conn.Close()

	expectSilentClose(t, conn)
}

func TestChatSocketEchoesParticipantMessages(t *testing.T) {
	srv := newWSTestServer(t)
	alice := srv.user(t, "alice@example.com")
	bob := srv.user(t, "bob@example.com")
	conversation, err := srv.messages.GetOrCreateConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	conn, err := srv.dialChat(t, conversation.ID, srv.token(t, alice))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(`{"message":"hello"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame struct {
		Message  string `json:"message"`
		SentAt   string `json:"sent_at"`
		SenderID uint   `json:"sender_id"`
	}
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, "hello", frame.Message)
	assert.Equal(t, alice.ID, frame.SenderID)
	assert.NotEmpty(t, frame.SentAt)

	var count int64
	require.NoError(t, srv.db.Model(&model.Message{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

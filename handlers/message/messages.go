package message

import (
	"strconv"

	"github.com/elearnhq/elearn-api/services"
	"github.com/elearnhq/elearn-api/utils/middleware"
	"github.com/elearnhq/elearn-api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// MessageHandler serves conversation threads, history and calls
type MessageHandler struct {
	messages *services.MessageService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// StartConversationRequest names the peer to talk to
type StartConversationRequest struct {
	PeerID uint `json:"peer_id" validate:"required,min=1"`
}

// StartConversation handles POST /api/v1/conversations
func (h *MessageHandler) StartConversation(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	var req StartConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.PeerID == 0 {
		return response.UnprocessableEntity(c, "peer_id", "is required")
	}

	conversation, err := h.messages.GetOrCreateConversation(c.Context(), user.ID, req.PeerID)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, conversation)
}

// ListThreads handles GET /api/v1/conversations
func (h *MessageHandler) ListThreads(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	threads, err := h.messages.ListThreads(c.Context(), user.ID)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, threads)
}

// History handles GET /api/v1/conversations/:id/messages
func (h *MessageHandler) History(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	conversationID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	messages, err := h.messages.History(c.Context(), conversationID, user.ID, limit, offset)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, messages)
}

// PlaceCall handles POST /api/v1/conversations/:id/call
func (h *MessageHandler) PlaceCall(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	conversationID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}

	if err := h.messages.PlaceCall(c.Context(), conversationID, user.ID); err != nil {
		return response.FromServiceError(c, err)
	}
	return response.SuccessWithMessage(c, "Call placed", nil)
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil {
		return 0, err
	}
	if parsed == 0 {
		return 0, strconv.ErrRange
	}
	return uint(parsed), nil
}

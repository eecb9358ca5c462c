package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
	"messenger-service/internal/storage"
	"messenger-service/internal/telemetry"
)

const (
	messagesPerPage    = 50
	maxMessageFileSize = 10 << 20
)

// ChatHandler manages chats, membership and messages.
type ChatHandler struct {
	Deps
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(deps Deps) *ChatHandler {
	return &ChatHandler{Deps: deps}
}

// ListChats returns the caller's chats with members and the latest message.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.Chats.ListChatsForUser(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		h.respondError(c, err, "failed to load chats")
		return
	}

	for i := range chats {
		if msg := chats[i].LatestMessage; msg != nil {
			msg.FileURL = h.mediaURL(msg.FileURL)
		}
	}
	c.JSON(http.StatusOK, chats)
}

type createChatRequest struct {
	Type  string `json:"type" binding:"required,oneof=private group"`
	Name  string `json:"name" binding:"max=255"`
	Users []int  `json:"users" binding:"required,min=1,dive,gt=0"`
}

// CreateChat creates a chat with the caller and the listed users as members.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if !bind(c, &req) {
		return
	}

	chat, err := models.NewChat(models.ChatType(req.Type), strings.TrimSpace(req.Name))
	if err != nil {
		h.respondError(c, err, "could not create chat")
		return
	}
	if err := h.checkUsersExist(c, "users", req.Users); err != nil {
		h.respondError(c, err, "could not create chat")
		return
	}

	chat.CreatedAt = h.Clock.Now()
	created, err := h.Chats.CreateChat(c.Request.Context(), chat, c.GetInt("userID"), req.Users)
	if err != nil {
		h.respondError(c, err, "could not create chat")
		return
	}

	h.audit(c, telemetry.LevelInfo, "chat "+strconv.Itoa(created.ID)+" created")
	c.JSON(http.StatusCreated, created)
}

// memberOf loads the addressed chat and the caller's membership. It answers
// the request itself when the chat is missing or the caller is not a member.
func (h *ChatHandler) memberOf(c *gin.Context, action string) (models.Chat, models.Membership, bool) {
	chatID, ok := idParam(c, "chat_id", "chat")
	if !ok {
		return models.Chat{}, models.Membership{}, false
	}

	chat, err := h.Chats.GetChat(c.Request.Context(), chatID)
	if err != nil {
		h.respondError(c, err, "failed to load chat")
		return models.Chat{}, models.Membership{}, false
	}

	membership, err := h.Chats.GetMembership(c.Request.Context(), chatID, c.GetInt("userID"))
	if errors.Is(err, repositories.ErrNotMember) {
		h.forbid(c, action)
		return models.Chat{}, models.Membership{}, false
	}
	if err != nil {
		h.respondError(c, err, "failed to verify membership")
		return models.Chat{}, models.Membership{}, false
	}
	return chat, membership, true
}

// adminOf is memberOf restricted to admins of group chats.
func (h *ChatHandler) adminOf(c *gin.Context, action string) (models.Chat, bool) {
	chat, membership, ok := h.memberOf(c, action)
	if !ok {
		return models.Chat{}, false
	}
	if !chat.IsGroup() || !membership.IsAdmin {
		h.forbid(c, action)
		return models.Chat{}, false
	}
	return chat, true
}

// GetChat returns the chat with its members.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chat, _, ok := h.memberOf(c, "view chat")
	if !ok {
		return
	}

	withMembers, err := h.Chats.GetChatWithMembers(c.Request.Context(), chat.ID)
	if err != nil {
		h.respondError(c, err, "failed to load chat")
		return
	}
	c.JSON(http.StatusOK, withMembers)
}

// ListMessages returns one page of the chat's messages, newest first.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	chat, _, ok := h.memberOf(c, "list messages")
	if !ok {
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	msgs, total, err := h.Messages.ListMessages(c.Request.Context(), chat.ID, page, messagesPerPage)
	if err != nil {
		h.respondError(c, err, "failed to load messages")
		return
	}
	for i := range msgs {
		msgs[i].FileURL = h.mediaURL(msgs[i].FileURL)
	}

	c.JSON(http.StatusOK, models.NewPage(msgs, page, messagesPerPage, total))
}

type sendMessageRequest struct {
	Content string `json:"content" form:"content" binding:"max=1000"`
	Type    string `json:"type" form:"type" binding:"required,oneof=text image video audio document"`
}

// SendMessage stores a message, with an optional file, and broadcasts it.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	chat, _, ok := h.memberOf(c, "send message")
	if !ok {
		return
	}

	var req sendMessageRequest
	if !bind(c, &req) {
		return
	}
	file, err := formFile(c, "file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed upload"})
		return
	}
	if file != nil && file.Size > maxMessageFileSize {
		respondValidation(c, models.NewValidationError("file", "must not be greater than 10240 kilobytes"))
		return
	}

	body, err := models.NewMessageBody(models.MessageType(req.Type), req.Content, file != nil)
	if err != nil {
		h.respondError(c, err, "could not send message")
		return
	}

	var key *string
	if file != nil {
		stored, err := h.storeUpload(c, storage.ChatFilesDir, file)
		if err != nil {
			h.respondError(c, err, "could not store file")
			return
		}
		key = &stored
	}

	userID := c.GetInt("userID")
	msg, err := h.Messages.CreateMessage(c.Request.Context(), models.Message{
		ChatID:    chat.ID,
		UserID:    userID,
		Content:   body.Content,
		Type:      body.Type,
		FileURL:   key,
		CreatedAt: h.Clock.Now(),
	})
	if err != nil {
		if key != nil {
			h.deleteMediaBestEffort(c, *key)
		}
		if errors.Is(err, repositories.ErrNotMember) {
			h.forbid(c, "send message")
			return
		}
		h.respondError(c, err, "failed to store message")
		return
	}
	msg.FileURL = h.mediaURL(msg.FileURL)

	observability.IncMessageSent(string(msg.Type))
	h.broadcast(chat.ID, models.ChatEvent{Type: "message", Message: &msg})
	h.publish(c, "chat", "message.sent", gin.H{
		"chat_id":    chat.ID,
		"message_id": msg.ID,
		"user_id":    userID,
		"type":       msg.Type,
	})
	h.audit(c, telemetry.LevelInfo, "message sent to chat "+strconv.Itoa(chat.ID))
	c.JSON(http.StatusCreated, msg)
}

type membersRequest struct {
	Users []int `json:"users" binding:"required,min=1,dive,gt=0"`
}

// AddMembers attaches users that are not members yet. Group admins only.
func (h *ChatHandler) AddMembers(c *gin.Context) {
	chat, ok := h.adminOf(c, "add members")
	if !ok {
		return
	}

	var req membersRequest
	if !bind(c, &req) {
		return
	}
	if err := h.checkUsersExist(c, "users", req.Users); err != nil {
		h.respondError(c, err, "could not add members")
		return
	}

	added, err := h.Chats.AddMembers(c.Request.Context(), chat.ID, req.Users, h.Clock.Now())
	if err != nil {
		h.respondError(c, err, "could not add members")
		return
	}
	h.membersChanged(c, chat.ID, added, "added")
}

// RemoveMembers detaches users from the chat. Group admins only.
func (h *ChatHandler) RemoveMembers(c *gin.Context) {
	chat, ok := h.adminOf(c, "remove members")
	if !ok {
		return
	}

	var req membersRequest
	if !bind(c, &req) {
		return
	}
	if err := h.checkUsersExist(c, "users", req.Users); err != nil {
		h.respondError(c, err, "could not remove members")
		return
	}

	removed, err := h.Chats.RemoveMembers(c.Request.Context(), chat.ID, req.Users)
	if err != nil {
		h.respondError(c, err, "could not remove members")
		return
	}
	if h.Hub != nil && len(removed) > 0 {
		h.Hub.DisconnectUsers(chat.ID, removed)
	}
	h.membersChanged(c, chat.ID, removed, "removed")
}

func (h *ChatHandler) membersChanged(c *gin.Context, chatID int, userIDs []int, verb string) {
	withMembers, err := h.Chats.GetChatWithMembers(c.Request.Context(), chatID)
	if err != nil {
		h.respondError(c, err, "failed to load chat")
		return
	}

	if len(userIDs) > 0 {
		h.broadcast(chatID, models.ChatEvent{Type: "members_changed", UserIDs: userIDs})
		h.audit(c, telemetry.LevelInfo, "members "+verb+" in chat "+strconv.Itoa(chatID))
	}
	c.JSON(http.StatusOK, withMembers)
}

// MarkRead advances the caller's read pointer to now.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	chat, _, ok := h.memberOf(c, "mark read")
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	now := h.Clock.Now()
	if err := h.Chats.MarkRead(c.Request.Context(), chat.ID, userID, now); err != nil {
		if errors.Is(err, repositories.ErrNotMember) {
			h.forbid(c, "mark read")
			return
		}
		h.respondError(c, err, "could not mark chat as read")
		return
	}

	h.broadcast(chat.ID, models.ChatEvent{Type: "read", UserID: userID, At: &now})
	h.publish(c, "chat", "chat.read", gin.H{"chat_id": chat.ID, "user_id": userID, "read_at": now})
	c.JSON(http.StatusOK, gin.H{"message": "Messages marked as read"})
}

// DeleteChat removes the chat with its memberships and messages. Group chats
// require an admin; private chats any member.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chat, membership, ok := h.memberOf(c, "delete chat")
	if !ok {
		return
	}
	if chat.IsGroup() && !membership.IsAdmin {
		h.forbid(c, "delete chat")
		return
	}

	keys, err := h.Chats.DeleteChat(c.Request.Context(), chat.ID)
	if err != nil {
		h.respondError(c, err, "could not delete chat")
		return
	}
	h.deleteMediaBestEffort(c, keys...)
	if h.Hub != nil {
		h.Hub.CloseRoom(chat.ID)
	}

	h.audit(c, telemetry.LevelInfo, "chat "+strconv.Itoa(chat.ID)+" deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Chat deleted successfully"})
}

package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/storage"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var created models.User
	if val := args.Get(0); val != nil {
		created = val.(models.User)
	}
	return created, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) MissingUserIDs(ctx context.Context, ids []int) ([]int, error) {
	args := m.Called(ctx, ids)
	var missing []int
	if val := args.Get(0); val != nil {
		missing = val.([]int)
	}
	return missing, args.Error(1)
}

func (m *UserRepositoryMock) SetPresence(ctx context.Context, userID int, status string, at time.Time) error {
	args := m.Called(ctx, userID, status, at)
	return args.Error(0)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateChat(ctx context.Context, chat models.Chat, creatorID int, memberIDs []int) (models.ChatWithMembers, error) {
	args := m.Called(ctx, chat, creatorID, memberIDs)
	var created models.ChatWithMembers
	if val := args.Get(0); val != nil {
		created = val.(models.ChatWithMembers)
	}
	return created, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChatWithMembers(ctx context.Context, chatID int) (models.ChatWithMembers, error) {
	args := m.Called(ctx, chatID)
	var chat models.ChatWithMembers
	if val := args.Get(0); val != nil {
		chat = val.(models.ChatWithMembers)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChatsForUser(ctx context.Context, userID int) ([]models.ChatOverview, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatOverview
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatOverview)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) GetMembership(ctx context.Context, chatID int, userID int) (models.Membership, error) {
	args := m.Called(ctx, chatID, userID)
	var membership models.Membership
	if val := args.Get(0); val != nil {
		membership = val.(models.Membership)
	}
	return membership, args.Error(1)
}

func (m *ChatRepositoryMock) IsMember(ctx context.Context, chatID int, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) AddMembers(ctx context.Context, chatID int, userIDs []int, at time.Time) ([]int, error) {
	args := m.Called(ctx, chatID, userIDs, at)
	var added []int
	if val := args.Get(0); val != nil {
		added = val.([]int)
	}
	return added, args.Error(1)
}

func (m *ChatRepositoryMock) RemoveMembers(ctx context.Context, chatID int, userIDs []int) ([]int, error) {
	args := m.Called(ctx, chatID, userIDs)
	var removed []int
	if val := args.Get(0); val != nil {
		removed = val.([]int)
	}
	return removed, args.Error(1)
}

func (m *ChatRepositoryMock) MarkRead(ctx context.Context, chatID int, userID int, at time.Time) error {
	args := m.Called(ctx, chatID, userID, at)
	return args.Error(0)
}

func (m *ChatRepositoryMock) DeleteChat(ctx context.Context, chatID int) ([]string, error) {
	args := m.Called(ctx, chatID)
	var keys []string
	if val := args.Get(0); val != nil {
		keys = val.([]string)
	}
	return keys, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.MessageWithAuthor, error) {
	args := m.Called(ctx, msg)
	var created models.MessageWithAuthor
	if val := args.Get(0); val != nil {
		created = val.(models.MessageWithAuthor)
	}
	return created, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.MessageWithAuthor, error) {
	args := m.Called(ctx, messageID)
	var msg models.MessageWithAuthor
	if val := args.Get(0); val != nil {
		msg = val.(models.MessageWithAuthor)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID int, page int, perPage int) ([]models.MessageWithAuthor, int, error) {
	args := m.Called(ctx, chatID, page, perPage)
	var msgs []models.MessageWithAuthor
	if val := args.Get(0); val != nil {
		msgs = val.([]models.MessageWithAuthor)
	}
	return msgs, args.Int(1), args.Error(2)
}

type StatusRepositoryMock struct {
	mock.Mock
}

func (m *StatusRepositoryMock) CreateStatus(ctx context.Context, status models.Status, privacy models.StatusPrivacy) (models.StatusWithAuthor, error) {
	args := m.Called(ctx, status, privacy)
	var created models.StatusWithAuthor
	if val := args.Get(0); val != nil {
		created = val.(models.StatusWithAuthor)
	}
	return created, args.Error(1)
}

func (m *StatusRepositoryMock) GetStatus(ctx context.Context, statusID int) (models.StatusWithAuthor, error) {
	args := m.Called(ctx, statusID)
	var status models.StatusWithAuthor
	if val := args.Get(0); val != nil {
		status = val.(models.StatusWithAuthor)
	}
	return status, args.Error(1)
}

func (m *StatusRepositoryMock) DeleteStatus(ctx context.Context, statusID int) error {
	args := m.Called(ctx, statusID)
	return args.Error(0)
}

func (m *StatusRepositoryMock) ListVisible(ctx context.Context, viewerID int, now time.Time) ([]models.StatusWithAuthor, error) {
	args := m.Called(ctx, viewerID, now)
	var list []models.StatusWithAuthor
	if val := args.Get(0); val != nil {
		list = val.([]models.StatusWithAuthor)
	}
	return list, args.Error(1)
}

func (m *StatusRepositoryMock) ListByUser(ctx context.Context, userID int) ([]models.StatusDetail, error) {
	args := m.Called(ctx, userID)
	var list []models.StatusDetail
	if val := args.Get(0); val != nil {
		list = val.([]models.StatusDetail)
	}
	return list, args.Error(1)
}

func (m *StatusRepositoryMock) GetPrivacy(ctx context.Context, userID int) (models.StatusPrivacy, error) {
	args := m.Called(ctx, userID)
	var privacy models.StatusPrivacy
	if val := args.Get(0); val != nil {
		privacy = val.(models.StatusPrivacy)
	}
	return privacy, args.Error(1)
}

func (m *StatusRepositoryMock) UpsertPrivacy(ctx context.Context, privacy models.StatusPrivacy) error {
	args := m.Called(ctx, privacy)
	return args.Error(0)
}

func (m *StatusRepositoryMock) RecordView(ctx context.Context, statusID int, viewerID int, at time.Time) (bool, error) {
	args := m.Called(ctx, statusID, viewerID, at)
	return args.Bool(0), args.Error(1)
}

func (m *StatusRepositoryMock) ListViewers(ctx context.Context, statusID int) ([]models.StatusViewer, error) {
	args := m.Called(ctx, statusID)
	var viewers []models.StatusViewer
	if val := args.Get(0); val != nil {
		viewers = val.([]models.StatusViewer)
	}
	return viewers, args.Error(1)
}

type MediaStoreMock struct {
	mock.Mock
}

func (m *MediaStoreMock) Put(ctx context.Context, dir string, filename string, r io.Reader) (string, error) {
	args := m.Called(ctx, dir, filename, r)
	return args.String(0), args.Error(1)
}

func (m *MediaStoreMock) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MediaStoreMock) URL(key string) string {
	return "/media/" + key
}

var (
	_ repositories.UserRepository    = (*UserRepositoryMock)(nil)
	_ repositories.ChatRepository    = (*ChatRepositoryMock)(nil)
	_ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
	_ repositories.StatusRepository  = (*StatusRepositoryMock)(nil)
	_ storage.MediaStore             = (*MediaStoreMock)(nil)
)

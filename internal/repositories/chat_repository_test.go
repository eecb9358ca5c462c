package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"messenger-service/internal/models"
)

type ChatRepoTestSuite struct {
	PostgresTestSuite
}

func TestChatRepoTestSuite(t *testing.T) {
	suite.Run(t, &ChatRepoTestSuite{})
}

func (s *ChatRepoTestSuite) newGroup(name string, creatorID int, memberIDs ...int) models.ChatWithMembers {
	chat, err := models.NewChat(models.ChatTypeGroup, name)
	s.Require().NoError(err)
	chat.CreatedAt = s.now
	created, err := NewChatRepo(s.db).CreateChat(s.ctx, chat, creatorID, memberIDs)
	s.Require().NoError(err)
	return created
}

func (s *ChatRepoTestSuite) Test_CreateGroupChat_CreatorIsSingleAdmin() {
	a, b := s.createUser("a"), s.createUser("b")

	chat := s.newGroup("Team", a.ID, a.ID, b.ID, b.ID)

	s.Require().Len(chat.Users, 2)
	s.Equal(a.ID, chat.Users[0].ID)
	s.True(chat.Users[0].IsAdmin)
	s.False(chat.Users[1].IsAdmin)
	s.Equal(1, s.countRows(`SELECT COUNT(*) FROM chat_user WHERE chat_id=$1 AND user_id=$2`, chat.ID, a.ID))
}

func (s *ChatRepoTestSuite) Test_CreatePrivateChat_CreatorIsNotAdmin() {
	a, b := s.createUser("a"), s.createUser("b")
	chat, err := models.NewChat(models.ChatTypePrivate, "")
	s.Require().NoError(err)
	chat.CreatedAt = s.now

	created, err := NewChatRepo(s.db).CreateChat(s.ctx, chat, a.ID, []int{a.ID, b.ID})

	s.Require().NoError(err)
	s.Nil(created.Name)
	for _, m := range created.Users {
		s.False(m.IsAdmin)
	}
}

func (s *ChatRepoTestSuite) Test_AddMembers_SkipsExisting() {
	a, b, c := s.createUser("a"), s.createUser("b"), s.createUser("c")
	chat := s.newGroup("Team", a.ID, b.ID)
	repo := NewChatRepo(s.db)

	added, err := repo.AddMembers(s.ctx, chat.ID, []int{b.ID, c.ID, c.ID}, s.now)

	s.Require().NoError(err)
	s.Equal([]int{c.ID}, added)
	s.Equal(3, s.countRows(`SELECT COUNT(*) FROM chat_user WHERE chat_id=$1`, chat.ID))
	m, err := repo.GetMembership(s.ctx, chat.ID, c.ID)
	s.Require().NoError(err)
	s.False(m.IsAdmin)
}

func (s *ChatRepoTestSuite) Test_RemoveMembers_NonMemberIsNoop() {
	a, b, c := s.createUser("a"), s.createUser("b"), s.createUser("c")
	chat := s.newGroup("Team", a.ID, b.ID)
	repo := NewChatRepo(s.db)

	removed, err := repo.RemoveMembers(s.ctx, chat.ID, []int{c.ID})
	s.Require().NoError(err)
	s.Empty(removed)
	s.Equal(2, s.countRows(`SELECT COUNT(*) FROM chat_user WHERE chat_id=$1`, chat.ID))

	removed, err = repo.RemoveMembers(s.ctx, chat.ID, []int{b.ID})
	s.Require().NoError(err)
	s.Equal([]int{b.ID}, removed)
	withMembers, err := repo.GetChatWithMembers(s.ctx, chat.ID)
	s.Require().NoError(err)
	s.Len(withMembers.Users, 1)
}

func (s *ChatRepoTestSuite) Test_ListChatsForUser_OnlyLatestMessage() {
	a, b := s.createUser("a"), s.createUser("b")
	chat := s.newGroup("Team", a.ID, b.ID)
	messages := NewMessageRepo(s.db)
	for i, text := range []string{"first", "second", "third"} {
		content := text
		_, err := messages.CreateMessage(s.ctx, models.Message{
			ChatID: chat.ID, UserID: a.ID, Content: &content, Type: models.MessageText,
			CreatedAt: s.now.Add(time.Duration(i) * time.Minute),
		})
		s.Require().NoError(err)
	}

	chats, err := NewChatRepo(s.db).ListChatsForUser(s.ctx, b.ID)

	s.Require().NoError(err)
	s.Require().Len(chats, 1)
	s.Require().NotNil(chats[0].LatestMessage)
	s.Equal("third", *chats[0].LatestMessage.Content)
	s.Len(chats[0].Users, 2)
}

func (s *ChatRepoTestSuite) Test_MarkRead_NonMember() {
	a, c := s.createUser("a"), s.createUser("c")
	chat := s.newGroup("Team", a.ID)

	err := NewChatRepo(s.db).MarkRead(s.ctx, chat.ID, c.ID, s.now)
	s.ErrorIs(err, ErrNotMember)
}

func (s *ChatRepoTestSuite) Test_DeleteChat_Cascades() {
	a, b := s.createUser("a"), s.createUser("b")
	chat := s.newGroup("Team", a.ID, b.ID)
	key := "chat-files/x.png"
	_, err := NewMessageRepo(s.db).CreateMessage(s.ctx, models.Message{
		ChatID: chat.ID, UserID: a.ID, Type: models.MessageImage, FileURL: &key, CreatedAt: s.now,
	})
	s.Require().NoError(err)

	keys, err := NewChatRepo(s.db).DeleteChat(s.ctx, chat.ID)

	s.Require().NoError(err)
	s.Equal([]string{key}, keys)
	s.Zero(s.countRows(`SELECT COUNT(*) FROM messages WHERE chat_id=$1`, chat.ID))
	s.Zero(s.countRows(`SELECT COUNT(*) FROM chat_user WHERE chat_id=$1`, chat.ID))
	_, err = NewChatRepo(s.db).GetChat(s.ctx, chat.ID)
	s.ErrorIs(err, ErrChatNotFound)

	_, err = NewChatRepo(s.db).DeleteChat(s.ctx, chat.ID)
	s.ErrorIs(err, ErrChatNotFound)
}

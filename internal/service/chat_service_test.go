package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/weiawesome/chat-backend/internal/domain"
	"github.com/weiawesome/chat-backend/internal/repository"
	"github.com/weiawesome/chat-backend/internal/service"
)

// newTestStore returns a seeded sqlite-backed repository: users
// alice(1), bob(2), carol(3); direct conversation 1 (alice, bob) and
// group conversation 2 (all three).
func newTestStore(t *testing.T) (*gorm.DB, repository.ChatRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "chat.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&domain.UserModel{},
		&domain.ConversationModel{},
		&domain.MemberModel{},
		&domain.MessageModel{},
		&domain.ReceiptModel{},
	))

	teamName := "Team"
	require.NoError(t, db.Create(&[]domain.UserModel{
		{ID: 1, Name: "Alice", Avatar: "a.png"},
		{ID: 2, Name: "Bob", Avatar: "b.png"},
		{ID: 3, Name: "Carol", Avatar: "c.png"},
	}).Error)
	require.NoError(t, db.Create(&[]domain.ConversationModel{
		{ID: 1, Type: domain.ConversationTypeDirect, CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Name: &teamName, Type: domain.ConversationTypeGroup, CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
	}).Error)
	require.NoError(t, db.Create(&[]domain.MemberModel{
		{ConversationID: 1, UserID: 1},
		{ConversationID: 1, UserID: 2},
		{ConversationID: 2, UserID: 1},
		{ConversationID: 2, UserID: 2},
		{ConversationID: 2, UserID: 3},
	}).Error)

	return db, repository.NewGormChatRepository(db)
}

func messageCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(&domain.MessageModel{}).Count(&n).Error)
	return n
}

func receiptCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(&domain.ReceiptModel{}).Count(&n).Error)
	return n
}

func TestSendMessageRejectsWhitespaceContent(t *testing.T) {
	db, repo := newTestStore(t)
	svc := service.NewChatService(repo, nil, 0)

	_, err := svc.SendMessage(context.Background(), 1, 1, "   ")
	require.ErrorIs(t, err, service.ErrEmptyContent)
	// Rejected before any store write.
	require.EqualValues(t, 0, messageCount(t, db))
}

func TestSendMessageRequiresMembership(t *testing.T) {
	db, repo := newTestStore(t)
	svc := service.NewChatService(repo, nil, 0)

	// Carol is not a member of the direct conversation.
	_, err := svc.SendMessage(context.Background(), 1, 3, "let me in")
	require.ErrorIs(t, err, service.ErrNotMember)
	require.EqualValues(t, 0, messageCount(t, db))
}

func TestSendMessageReturnsEnrichedRecord(t *testing.T) {
	_, repo := newTestStore(t)
	svc := service.NewChatService(repo, nil, 0)

	msg, err := svc.SendMessage(context.Background(), 1, 2, "hello alice")
	require.NoError(t, err)
	require.Greater(t, msg.ID, int64(0))
	require.Equal(t, "Bob", msg.SenderName)
	require.EqualValues(t, 1, msg.ConversationID)
}

func TestListMessagesNonMemberLeavesNoReceipts(t *testing.T) {
	db, repo := newTestStore(t)
	svc := service.NewChatService(repo, nil, 0)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, 1, 2, "private")
	require.NoError(t, err)

	_, err = svc.ListMessages(ctx, 1, 3, 50)
	require.ErrorIs(t, err, service.ErrNotMember)
	require.EqualValues(t, 0, receiptCount(t, db))
}

func TestListMessagesMarksRead(t *testing.T) {
	_, repo := newTestStore(t)
	svc := service.NewChatService(repo, nil, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, 1, 2, "ping")
		require.NoError(t, err)
	}

	unread, err := repo.UnreadCount(ctx, 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 3, unread)

	msgs, err := svc.ListMessages(ctx, 1, 1, 50)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for _, msg := range msgs {
		require.True(t, msg.IsRead)
	}

	unread, err = repo.UnreadCount(ctx, 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 0, unread)
}

func TestMarkConversationReadRequiresMembership(t *testing.T) {
	db, repo := newTestStore(t)
	svc := service.NewChatService(repo, nil, 0)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, 1, 2, "unseen")
	require.NoError(t, err)

	_, err = svc.MarkConversationRead(ctx, 1, 3)
	require.ErrorIs(t, err, service.ErrNotMember)
	require.EqualValues(t, 0, receiptCount(t, db))
}

func TestMarkConversationReadIdempotent(t *testing.T) {
	_, repo := newTestStore(t)
	svc := service.NewChatService(repo, nil, 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.SendMessage(ctx, 2, 2, "to the team")
		require.NoError(t, err)
	}

	marked, err := svc.MarkConversationRead(ctx, 2, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, marked)

	marked, err = svc.MarkConversationRead(ctx, 2, 1)
	require.NoError(t, err)
	require.EqualValues(t, 0, marked)
}

func TestGetUserNotFound(t *testing.T) {
	_, repo := newTestStore(t)
	svc := service.NewChatService(repo, nil, 0)

	_, err := svc.GetUser(context.Background(), 404)
	require.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestListConversationsUnreadCounts(t *testing.T) {
	_, repo := newTestStore(t)
	svc := service.NewChatService(repo, nil, 0)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, 2, 3, "from carol")
	require.NoError(t, err)

	convs, err := svc.ListConversations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	require.EqualValues(t, 2, convs[0].ID)
	require.EqualValues(t, 1, convs[0].UnreadCount)
	require.EqualValues(t, 0, convs[1].UnreadCount)
}

package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/weiawesome/chat-backend/internal/domain"
	"github.com/weiawesome/chat-backend/internal/handler"
	"github.com/weiawesome/chat-backend/internal/repository"
	"github.com/weiawesome/chat-backend/internal/service"
)

// newTestRouter wires the full synchronous stack over a seeded sqlite
// store: users alice(1), bob(2), carol(3); direct conversation 1
// (alice, bob) and group conversation 2 (all three).
func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	repo := repository.NewGormChatRepository(db)
	svc := service.NewChatService(repo, nil, 0)

	r := gin.New()
	handler.NewHTTPHandler(svc, 50).RegisterRoutes(r)
	return r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Chat API running!", decodeBody(t, w)["status"])
}

func TestListConversationsRequiresUserID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/conversations", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid or missing user_id", decodeBody(t, w)["error"])

	w = doJSON(t, r, http.MethodGet, "/conversations?user_id=abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListConversations(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/conversations?user_id=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var convs []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &convs))
	require.Len(t, convs, 2)
}

func TestGetMessagesForbiddenForNonMember(t *testing.T) {
	r, db := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/messages", domain.SendMessageRequest{
		ConversationID: 1, SenderID: 2, Content: "private",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Carol is not a member of the direct conversation.
	w = doJSON(t, r, http.MethodGet, "/conversations/1/messages?user_id=3", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "Unauthorized", decodeBody(t, w)["error"])

	// The rejected fetch left no receipts behind.
	var n int64
	require.NoError(t, db.Model(&domain.ReceiptModel{}).Count(&n).Error)
	require.EqualValues(t, 0, n)
}

func TestGetMessagesMarksRead(t *testing.T) {
	r, db := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/messages", domain.SendMessageRequest{
		ConversationID: 1, SenderID: 2, Content: "hello",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/conversations/1/messages?user_id=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var msgs []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	require.Equal(t, "hello", msgs[0]["content"])
	require.Equal(t, "Bob", msgs[0]["sender_name"])
	// The fetch itself recorded the receipt.
	require.Equal(t, true, msgs[0]["is_read"])

	var n int64
	require.NoError(t, db.Model(&domain.ReceiptModel{}).Count(&n).Error)
	require.EqualValues(t, 1, n)
}

func TestSendMessageValidation(t *testing.T) {
	r, db := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/messages", map[string]interface{}{
		"conversation_id": 1, "sender_id": 1, "content": "   ",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Message cannot be empty", decodeBody(t, w)["error"])

	w = doJSON(t, r, http.MethodPost, "/messages", map[string]interface{}{
		"sender_id": 1, "content": "no conversation",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var n int64
	require.NoError(t, db.Model(&domain.MessageModel{}).Count(&n).Error)
	require.EqualValues(t, 0, n)
}

func TestSendMessageForbiddenForNonMember(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/messages", domain.SendMessageRequest{
		ConversationID: 1, SenderID: 3, Content: "let me in",
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "Unauthorized", decodeBody(t, w)["error"])
}

func TestSendMessageCreated(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/messages", domain.SendMessageRequest{
		ConversationID: 2, SenderID: 3, Content: "hi team",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	require.Equal(t, true, body["success"])
	require.Equal(t, "Message sent!", body["message"])
	require.Greater(t, body["id"].(float64), float64(0))
}

func TestMarkAsRead(t *testing.T) {
	r, _ := newTestRouter(t)

	for i := 0; i < 2; i++ {
		w := doJSON(t, r, http.MethodPost, "/messages", domain.SendMessageRequest{
			ConversationID: 2, SenderID: 2, Content: "to the team",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/conversations/2/read", domain.MarkReadRequest{UserID: 1})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, true, body["success"])
	require.EqualValues(t, 2, body["marked_count"])

	// Repeating the call marks nothing further.
	w = doJSON(t, r, http.MethodPost, "/conversations/2/read", domain.MarkReadRequest{UserID: 1})
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 0, decodeBody(t, w)["marked_count"])
}

func TestMarkAsReadForbiddenForNonMember(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/conversations/1/read", domain.MarkReadRequest{UserID: 3})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestMarkAsReadMissingBody(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/conversations/1/read", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Missing user_id", decodeBody(t, w)["error"])
}

func TestGetUser(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/users/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Bob", decodeBody(t, w)["name"])

	w = doJSON(t, r, http.MethodGet, "/users/404", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "User not found", decodeBody(t, w)["error"])
}

func TestGetMembers(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/conversations/2/members", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var members []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &members))
	require.Len(t, members, 3)
}

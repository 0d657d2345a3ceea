package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/chat-backend/internal/domain"
	"github.com/weiawesome/chat-backend/pkg/log"
)

// GormChatRepository implements ChatRepository using GORM.
type GormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository creates a new GORM-based chat repository.
func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

// IsMember reports whether the user has a membership row for the
// conversation. Every conversation-scoped operation checks this first.
func (r *GormChatRepository) IsMember(ctx context.Context, conversationID, userID int64) (bool, error) {
	l := log.Ctx(ctx)

	var count int64
	result := r.db.WithContext(ctx).Model(&domain.MemberModel{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count)
	if result.Error != nil {
		l.Error().Err(result.Error).Int64(log.FieldConversationID, conversationID).Msg("failed to check membership")
		return false, result.Error
	}
	return count > 0, nil
}

// MarkUnreadAsRead inserts a receipt for every message in the
// conversation authored by someone else that the user has not read yet,
// and returns how many were newly inserted. The composite primary key
// on message_reads plus ON CONFLICT DO NOTHING makes the operation
// idempotent and safe under concurrent callers.
func (r *GormChatRepository) MarkUnreadAsRead(ctx context.Context, conversationID, userID int64) (int64, error) {
	var marked int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		marked, txErr = markUnreadTx(tx, conversationID, userID)
		return txErr
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int64(log.FieldConversationID, conversationID).Int64(log.FieldUserID, userID).Msg("failed to mark messages read")
		return 0, err
	}
	return marked, nil
}

// markUnreadTx is the shared atomic step behind both the explicit
// mark-read path and the mark-on-fetch path.
func markUnreadTx(tx *gorm.DB, conversationID, userID int64) (int64, error) {
	var ids []int64
	err := tx.Model(&domain.MessageModel{}).
		Where("conversation_id = ? AND sender_id <> ?", conversationID, userID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = messages.id AND mr.user_id = ?)", userID).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	receipts := make([]domain.ReceiptModel, 0, len(ids))
	for _, id := range ids {
		receipts = append(receipts, domain.ReceiptModel{MessageID: id, UserID: userID})
	}

	// Duplicate inserts from a racing caller are no-ops, not errors;
	// RowsAffected counts only the receipts this caller created.
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipts)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// UnreadCount counts messages authored by others in the conversation
// lacking a receipt for the user. An empty conversation counts as zero.
func (r *GormChatRepository) UnreadCount(ctx context.Context, conversationID, userID int64) (int64, error) {
	l := log.Ctx(ctx)

	var count int64
	result := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("conversation_id = ? AND sender_id <> ?", conversationID, userID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = messages.id AND mr.user_id = ?)", userID).
		Count(&count)
	if result.Error != nil {
		l.Error().Err(result.Error).Int64(log.FieldConversationID, conversationID).Msg("failed to count unread messages")
		return 0, result.Error
	}
	return count, nil
}

// BatchUnreadCounts returns the unread count for every conversation the
// user belongs to, zero-filled for fully read conversations.
func (r *GormChatRepository) BatchUnreadCounts(ctx context.Context, userID int64) (map[int64]int64, error) {
	l := log.Ctx(ctx)

	ids, err := r.ConversationIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]int64, len(ids))
	for _, id := range ids {
		counts[id] = 0
	}
	if len(ids) == 0 {
		return counts, nil
	}

	type unreadRow struct {
		ConversationID int64
		Unread         int64
	}
	var rows []unreadRow
	err = r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Select("conversation_id, COUNT(*) AS unread").
		Where("conversation_id IN ? AND sender_id <> ?", ids, userID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = messages.id AND mr.user_id = ?)", userID).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("failed to batch count unread messages")
		return nil, err
	}

	for _, row := range rows {
		counts[row.ConversationID] = row.Unread
	}
	return counts, nil
}

// messageRow is the store-boundary shape of an enriched message select.
// Fields are copied to the domain type explicitly; nothing relies on
// dynamic row access.
type messageRow struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Content        string
	CreatedAt      time.Time
	SenderName     string
	IsRead         int
}

func (row *messageRow) toDomain() domain.Message {
	return domain.Message{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		SenderID:       row.SenderID,
		Content:        row.Content,
		CreatedAt:      row.CreatedAt,
		SenderName:     row.SenderName,
		IsRead:         row.IsRead != 0,
	}
}

const enrichedMessageSelect = "messages.id, messages.conversation_id, messages.sender_id, messages.content, messages.created_at, users.name AS sender_name"

// CreateMessage persists a message and returns it enriched with the
// sender's current display name. The name is looked up by join on every
// call, never denormalized, so later renames stay visible.
func (r *GormChatRepository) CreateMessage(ctx context.Context, conversationID, senderID int64, content string) (*domain.Message, error) {
	l := log.Ctx(ctx)

	model := domain.MessageModel{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		l.Error().Err(err).Int64(log.FieldConversationID, conversationID).Msg("failed to create message")
		return nil, err
	}

	var row messageRow
	err := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Select(enrichedMessageSelect).
		Joins("JOIN users ON users.id = messages.sender_id").
		Where("messages.id = ?", model.ID).
		Scan(&row).Error
	if err != nil {
		l.Error().Err(err).Int64(log.FieldMessageID, model.ID).Msg("failed to load created message")
		return nil, err
	}

	msg := row.toDomain()
	return &msg, nil
}

// ListMessages applies the mark-on-fetch side effect and returns the
// conversation history ascending by creation time, capped at limit.
// Both steps run in one transaction so the is_read annotations always
// reflect the receipts inserted just before them.
func (r *GormChatRepository) ListMessages(ctx context.Context, conversationID, userID int64, limit int) ([]domain.Message, error) {
	l := log.Ctx(ctx)

	if limit <= 0 {
		limit = domain.DefaultMessageLimit
	}

	var out []domain.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := markUnreadTx(tx, conversationID, userID); err != nil {
			return err
		}

		var rows []messageRow
		err := tx.Model(&domain.MessageModel{}).
			Select(enrichedMessageSelect+", CASE WHEN mr.user_id IS NOT NULL THEN 1 ELSE 0 END AS is_read").
			Joins("JOIN users ON users.id = messages.sender_id").
			Joins("LEFT JOIN message_reads mr ON mr.message_id = messages.id AND mr.user_id = ?", userID).
			Where("messages.conversation_id = ?", conversationID).
			Order("messages.created_at ASC").
			Limit(limit).
			Scan(&rows).Error
		if err != nil {
			return err
		}

		out = make([]domain.Message, 0, len(rows))
		for _, row := range rows {
			out = append(out, row.toDomain())
		}
		return nil
	})
	if err != nil {
		l.Error().Err(err).Int64(log.FieldConversationID, conversationID).Msg("failed to list messages")
		return nil, err
	}
	return out, nil
}

// ListConversations returns the user's conversations with unread and
// member counts, ordered by unread count descending then recency. The
// display name of a direct conversation is the counterpart's current
// name, resolved per request.
func (r *GormChatRepository) ListConversations(ctx context.Context, userID int64) ([]domain.ConversationSummary, error) {
	l := log.Ctx(ctx)

	var convs []domain.ConversationModel
	err := r.db.WithContext(ctx).Model(&domain.ConversationModel{}).
		Joins("JOIN conversation_members cm ON cm.conversation_id = conversations.id").
		Where("cm.user_id = ?", userID).
		Find(&convs).Error
	if err != nil {
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("failed to list conversations")
		return nil, err
	}

	unread, err := r.BatchUnreadCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	memberCounts, err := r.memberCounts(ctx, convs)
	if err != nil {
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("failed to count conversation members")
		return nil, err
	}

	out := make([]domain.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		name := ""
		if conv.Name != nil {
			name = *conv.Name
		}
		if conv.Type == domain.ConversationTypeDirect {
			if other, err := r.counterpartName(ctx, conv.ID, userID); err == nil && other != "" {
				name = other
			}
		}
		out = append(out, domain.ConversationSummary{
			ID:          conv.ID,
			Name:        name,
			Type:        conv.Type,
			UnreadCount: unread[conv.ID],
			MemberCount: memberCounts[conv.ID],
			CreatedAt:   conv.CreatedAt,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UnreadCount != out[j].UnreadCount {
			return out[i].UnreadCount > out[j].UnreadCount
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *GormChatRepository) memberCounts(ctx context.Context, convs []domain.ConversationModel) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(convs))
	if len(convs) == 0 {
		return counts, nil
	}

	ids := make([]int64, 0, len(convs))
	for _, conv := range convs {
		ids = append(ids, conv.ID)
	}

	type memberRow struct {
		ConversationID int64
		Members        int64
	}
	var rows []memberRow
	err := r.db.WithContext(ctx).Model(&domain.MemberModel{}).
		Select("conversation_id, COUNT(*) AS members").
		Where("conversation_id IN ?", ids).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.ConversationID] = row.Members
	}
	return counts, nil
}

// counterpartName returns the name of the other member of a direct
// conversation.
func (r *GormChatRepository) counterpartName(ctx context.Context, conversationID, userID int64) (string, error) {
	var name string
	err := r.db.WithContext(ctx).Model(&domain.UserModel{}).
		Select("users.name").
		Joins("JOIN conversation_members cm ON cm.user_id = users.id").
		Where("cm.conversation_id = ? AND cm.user_id <> ?", conversationID, userID).
		Limit(1).
		Scan(&name).Error
	return name, err
}

// ConversationIDsForUser returns the IDs of every conversation the user
// belongs to.
func (r *GormChatRepository) ConversationIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&domain.MemberModel{}).
		Where("user_id = ?", userID).
		Pluck("conversation_id", &ids).Error
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("failed to list conversation ids")
		return nil, err
	}
	return ids, nil
}

// GetUser retrieves a user by ID.
func (r *GormChatRepository) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	var model domain.UserModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Int64(log.FieldUserID, userID).Msg("failed to get user")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// GetMembers returns the users belonging to a conversation.
func (r *GormChatRepository) GetMembers(ctx context.Context, conversationID int64) ([]domain.User, error) {
	l := log.Ctx(ctx)

	var models []domain.UserModel
	err := r.db.WithContext(ctx).Model(&domain.UserModel{}).
		Joins("JOIN conversation_members cm ON cm.user_id = users.id").
		Where("cm.conversation_id = ?", conversationID).
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Int64(log.FieldConversationID, conversationID).Msg("failed to get conversation members")
		return nil, err
	}

	users := make([]domain.User, 0, len(models))
	for _, model := range models {
		users = append(users, *model.ToDomain())
	}
	return users, nil
}

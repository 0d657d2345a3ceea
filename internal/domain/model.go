package domain

import (
	"time"
)

// UserModel is the GORM model for the users table. Users are created and
// destroyed outside this service; the chat core only reads them.
type UserModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"type:varchar(100);not null"`
	Avatar    string    `gorm:"type:varchar(255)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts UserModel to domain User.
func (m *UserModel) ToDomain() *User {
	return &User{
		ID:     m.ID,
		Name:   m.Name,
		Avatar: m.Avatar,
	}
}

// ConversationModel is the GORM model for the conversations table.
// Name is nullable: direct conversations derive their display name from
// the counterpart member at read time.
type ConversationModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Name      *string   `gorm:"type:varchar(100)"`
	Type      string    `gorm:"type:varchar(10);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ConversationModel.
func (ConversationModel) TableName() string {
	return "conversations"
}

// MemberModel is the GORM model for the conversation membership edge.
// The composite primary key makes each (conversation, user) pair unique.
type MemberModel struct {
	ConversationID int64     `gorm:"primaryKey;autoIncrement:false"`
	UserID         int64     `gorm:"primaryKey;autoIncrement:false"`
	JoinedAt       time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for MemberModel.
func (MemberModel) TableName() string {
	return "conversation_members"
}

// MessageModel is the GORM model for the messages table. Rows are
// immutable once created; ID and CreatedAt are store-assigned.
type MessageModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	ConversationID int64     `gorm:"index;not null"`
	SenderID       int64     `gorm:"not null"`
	Content        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// ReceiptModel is the GORM model for read receipts. The composite
// primary key on (message_id, user_id) is what makes receipt insertion
// an idempotent insert-if-absent under concurrent callers. Receipts are
// never written for a message's own sender.
type ReceiptModel struct {
	MessageID int64     `gorm:"primaryKey;autoIncrement:false"`
	UserID    int64     `gorm:"primaryKey;autoIncrement:false"`
	ReadAt    time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ReceiptModel.
func (ReceiptModel) TableName() string {
	return "message_reads"
}

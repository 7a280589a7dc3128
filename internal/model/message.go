package model

import "time"

// Message is one turn of a document conversation. The log is append-only
// and ordered by CreatedAt.
type Message struct {
	ID            string    `gorm:"size:64;primaryKey" json:"id"`
	DocumentID    string    `gorm:"size:64;not null;index" json:"document_id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	Text          string    `gorm:"type:text;not null" json:"text"`
	IsUserMessage bool      `gorm:"not null" json:"is_user_message"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// Role maps the flag onto chat-completion roles.
func (m *Message) Role() string {
	if m.IsUserMessage {
		return "user"
	}
	return "assistant"
}

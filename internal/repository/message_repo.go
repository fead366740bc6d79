package repository

import (
	"github.com/kalebecaldas/zorahapp/internal/model"
	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(msg *model.Message) error {
	return r.db.Create(msg).Error
}

func (r *messageRepository) GetByConversation(conversationID uint, limit int) ([]model.Message, error) {
	var msgs []model.Message
	q := r.db.Where("conversation_id = ?", conversationID).Order("created_at asc, id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&msgs).Error
	return msgs, err
}

package repository

import (
	"errors"

	"github.com/kalebecaldas/zorahapp/internal/model"
	"gorm.io/gorm"
)

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(conv *model.Conversation) error {
	return r.db.Create(conv).Error
}

func (r *conversationRepository) Get(id uint) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.Preload("Patient").First(&conv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) GetByExternalID(externalID string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.Preload("Patient").Where("external_id = ?", externalID).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) FindOpen(phone, channel string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.
		Joins("JOIN patients ON patients.id = conversations.patient_id").
		Where("patients.phone = ? AND conversations.channel = ? AND conversations.status <> ?",
			phone, channel, model.ConversationStatusClosed).
		Order("conversations.created_at desc").
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) List(status string) ([]model.Conversation, error) {
	var convs []model.Conversation
	q := r.db.Preload("Patient").Order("updated_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&convs).Error
	return convs, err
}

func (r *conversationRepository) Save(conv *model.Conversation) error {
	return r.db.Save(conv).Error
}

type conversationStateRepository struct {
	db *gorm.DB
}

func NewConversationStateRepository(db *gorm.DB) ConversationStateRepository {
	return &conversationStateRepository{db: db}
}

func (r *conversationStateRepository) Get(conversationID uint) (*model.ConversationState, error) {
	var state model.ConversationState
	err := r.db.Where("conversation_id = ?", conversationID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = model.ConversationState{ConversationID: conversationID}
		if err := r.db.Create(&state).Error; err != nil {
			return nil, err
		}
		return &state, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *conversationStateRepository) Save(state *model.ConversationState) error {
	return r.db.Save(state).Error
}

func (r *conversationStateRepository) Reset(conversationID uint) error {
	return r.db.Model(&model.ConversationState{}).
		Where("conversation_id = ?", conversationID).
		Updates(map[string]any{
			"current_node_id": "",
			"context":         "",
			"awaiting_input":  false,
		}).Error
}

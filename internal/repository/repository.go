package repository

import (
	"errors"

	"github.com/kalebecaldas/zorahapp/internal/model"
)

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

type WorkflowRepository interface {
	Create(wf *model.Workflow) error
	List() ([]model.Workflow, error)
	Get(id uint) (*model.Workflow, error)
	GetActive() (*model.Workflow, error)
	Save(wf *model.Workflow) error
	Delete(id uint) error
	// Activate marks one workflow active and deactivates the rest in a
	// single transaction.
	Activate(id uint) error
}

type ConversationRepository interface {
	Create(conv *model.Conversation) error
	Get(id uint) (*model.Conversation, error)
	GetByExternalID(externalID string) (*model.Conversation, error)
	// FindOpen returns the non-closed conversation for a phone+channel
	// pair, or ErrNotFound.
	FindOpen(phone, channel string) (*model.Conversation, error)
	List(status string) ([]model.Conversation, error)
	Save(conv *model.Conversation) error
}

type ConversationStateRepository interface {
	// Get returns the state record for a conversation, creating an
	// empty one when none exists yet.
	Get(conversationID uint) (*model.ConversationState, error)
	Save(state *model.ConversationState) error
	// Reset clears cursor, context and awaiting flag, used when a
	// conversation closes or is reassigned to another workflow.
	Reset(conversationID uint) error
}

type MessageRepository interface {
	Create(msg *model.Message) error
	GetByConversation(conversationID uint, limit int) ([]model.Message, error)
}

type PatientRepository interface {
	Create(p *model.Patient) error
	Get(id uint) (*model.Patient, error)
	GetByPhone(phone string) (*model.Patient, error)
	List() ([]model.Patient, error)
	Save(p *model.Patient) error
	Delete(id uint) error
}

type ClinicRepository interface {
	Create(c *model.Clinic) error
	List() ([]model.Clinic, error)
	Get(id uint) (*model.Clinic, error)
	GetByCode(code string) (*model.Clinic, error)
	Save(c *model.Clinic) error
	Delete(id uint) error
}

type InsuranceRepository interface {
	Create(i *model.Insurance) error
	List() ([]model.Insurance, error)
	Get(id uint) (*model.Insurance, error)
	GetByCode(code string) (*model.Insurance, error)
	Save(i *model.Insurance) error
	Delete(id uint) error
}

type ProcedureRepository interface {
	Create(p *model.Procedure) error
	List() ([]model.Procedure, error)
	ListByInsurance(insuranceID uint) ([]model.Procedure, error)
	Get(id uint) (*model.Procedure, error)
	GetByCode(code string) (*model.Procedure, error)
	Save(p *model.Procedure) error
	Delete(id uint) error
}

type PriceRepository interface {
	Create(p *model.ProcedurePrice) error
	ListByClinic(clinicID uint) ([]model.ProcedurePrice, error)
	// FindExact returns the (clinic, insurance, procedure) override.
	FindExact(clinicID, insuranceID, procedureID uint) (*model.ProcedurePrice, error)
	// FindClinicDefault returns the insurance-agnostic clinic price.
	FindClinicDefault(clinicID, procedureID uint) (*model.ProcedurePrice, error)
	Save(p *model.ProcedurePrice) error
	Delete(id uint) error
}

package model

import (
	"encoding/json"
	"time"
)

type Clinic struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Code      string    `json:"code" gorm:"size:50;uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	Phone     string    `json:"phone" gorm:"size:30"`
	Address   string    `json:"address" gorm:"size:500"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Insurance struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Code      string    `json:"code" gorm:"size:50;uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Procedure struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Code      string    `json:"code" gorm:"size:50;uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	Category  string    `json:"category" gorm:"size:100"`
	BasePrice float64   `json:"base_price" gorm:"not null;default:0"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProcedurePrice is a clinic-level override of a procedure's base price.
// InsuranceID nil means the clinic's insurance-agnostic default price.
type ProcedurePrice struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	ClinicID           uint      `json:"clinic_id" gorm:"index;not null"`
	ProcedureID        uint      `json:"procedure_id" gorm:"index;not null"`
	InsuranceID        *uint     `json:"insurance_id" gorm:"index"`
	Price              float64   `json:"price" gorm:"not null"`
	PackageDescription string    `json:"package_description" gorm:"size:500"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type Patient struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:255"`
	Phone     string    `json:"phone" gorm:"size:30;uniqueIndex;not null"`
	Email     string    `json:"email" gorm:"size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Conversation status values.
const (
	ConversationStatusBot        = "bot"
	ConversationStatusHumanQueue = "human_queue"
	ConversationStatusHuman      = "human"
	ConversationStatusClosed     = "closed"
)

type Conversation struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	ExternalID string     `json:"external_id" gorm:"size:64;uniqueIndex"` // UUID
	PatientID  uint       `json:"patient_id" gorm:"index;not null"`
	WorkflowID *uint      `json:"workflow_id" gorm:"index"`
	Channel    string     `json:"channel" gorm:"size:30;not null"` // whatsapp, instagram
	Status     string     `json:"status" gorm:"size:30;default:bot"`
	Queue      string     `json:"queue" gorm:"size:100"`
	AssignedTo string     `json:"assigned_to" gorm:"size:100"`
	ClosedAt   *time.Time `json:"closed_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Patient    *Patient   `json:"patient,omitempty" gorm:"foreignKey:PatientID"`
	Messages   []Message  `json:"messages,omitempty" gorm:"foreignKey:ConversationID"`
}

// ConversationState is the workflow cursor for one conversation.
// Exactly one record per active conversation; the interpreter is the
// sole mutator during a turn.
type ConversationState struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ConversationID uint      `json:"conversation_id" gorm:"uniqueIndex;not null"`
	CurrentNodeID  string    `json:"current_node_id" gorm:"size:100"`
	Context        string    `json:"context" gorm:"type:text"` // JSON object
	AwaitingInput  bool      `json:"awaiting_input" gorm:"default:false"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ContextMap decodes the JSON context bag. An empty column yields an
// empty, non-nil map.
func (s *ConversationState) ContextMap() (map[string]any, error) {
	m := make(map[string]any)
	if s.Context == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s.Context), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// SetContextMap encodes the context bag back into the JSON column.
func (s *ConversationState) SetContextMap(m map[string]any) error {
	if m == nil {
		s.Context = ""
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.Context = string(data)
	return nil
}

// Message direction values.
const (
	MessageDirectionIn  = "in"
	MessageDirectionOut = "out"
)

type Message struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ConversationID uint      `json:"conversation_id" gorm:"index;not null"`
	ExternalID     string    `json:"external_id" gorm:"size:128;index"` // channel message id
	Direction      string    `json:"direction" gorm:"size:10;not null"`
	Channel        string    `json:"channel" gorm:"size:30"`
	Role           string    `json:"role" gorm:"size:20"` // user, bot, agent
	Type           string    `json:"type" gorm:"size:30;default:text"`
	Content        string    `json:"content" gorm:"type:text"`
	MediaURL       string    `json:"media_url" gorm:"size:1000"`
	CreatedAt      time.Time `json:"created_at"`
}

// Workflow stores a graph definition as JSON. At most one workflow is
// active at a time; activation is done transactionally in the repository.
type Workflow struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name" gorm:"size:255;not null"`
	Kind       string    `json:"kind" gorm:"size:50;default:general"` // general, scheduling, registration
	IsActive   bool      `json:"is_active" gorm:"default:false;index"`
	Definition string    `json:"definition" gorm:"type:text;not null"` // JSON nodes+edges
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ConversationActive    = "active"
	ConversationFinalized = "finalized"

	LeadStatusNew = "new"
	LeadOriginWeb = "web_chat"
)

type Lead struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name           *string
	Email          *string `gorm:"index"`
	Phone          *string
	Company        *string
	Sector         *string
	Budget         *string
	Urgency        *string
	PrimaryProblem *string
	DecisionMaker  *bool
	Score          int    `gorm:"not null"`
	Status         string `gorm:"not null"`
	Origin         string `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Lead) TableName() string { return "lead" }

type Conversation struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey"`
	LeadID             uuid.UUID      `gorm:"type:uuid;not null;index"`
	SessionID          string         `gorm:"not null;uniqueIndex"`
	Channel            string         `gorm:"not null"`
	Status             string         `gorm:"not null;index"`
	Probability        int            `gorm:"not null"`
	Stage              string         `gorm:"not null"`
	Signals            datatypes.JSON `gorm:"not null"`
	Products           datatypes.JSON `gorm:"not null"`
	TotalMessages      int            `gorm:"not null"`
	NotificationSent   bool           `gorm:"not null"`
	NotificationSentAt *time.Time
	StartedAt          time.Time `gorm:"not null"`
	EndedAt            *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Conversation) TableName() string { return "conversation" }

type Message struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID      `gorm:"type:uuid;not null;index"`
	LeadID         uuid.UUID      `gorm:"type:uuid;not null"`
	Role           string         `gorm:"not null"`
	Content        string         `gorm:"type:text;not null"`
	Intents        datatypes.JSON `gorm:"not null"`
	CreatedAt      time.Time      `gorm:"not null;index"`
}

func (Message) TableName() string { return "message" }

type Product struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Name        string           `gorm:"not null"`
	Slug        string           `gorm:"not null;uniqueIndex"`
	Description string           `gorm:"type:text"`
	BasePrice   float64          `gorm:"not null"`
	Active      bool             `gorm:"not null"`
	Sectors     []ProductSector  `gorm:"foreignKey:ProductID"`
	Tiers       []ProductTierRow `gorm:"foreignKey:ProductID"`
	CreatedAt   time.Time
}

func (Product) TableName() string { return "product" }

// ProductSector tags a product with a sector. SectorAll marks universal products.
type ProductSector struct {
	ProductID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sector    string    `gorm:"primaryKey"`
}

func (ProductSector) TableName() string { return "product_sector" }

const SectorAll = "todos"

type ProductTierRow struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProductID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Name         string    `gorm:"not null"`
	MonthlyPrice float64   `gorm:"not null"`
	Featured     bool      `gorm:"not null"`
	Active       bool      `gorm:"not null"`
	SortOrder    int       `gorm:"not null"`
}

func (ProductTierRow) TableName() string { return "product_tier" }

type Checkpoint struct {
	ID             uint           `gorm:"primaryKey;autoIncrement"`
	ThreadID       string         `gorm:"not null;uniqueIndex:idx_checkpoint_key,priority:1;index:idx_checkpoint_thread_created,priority:1"`
	Namespace      string         `gorm:"not null;uniqueIndex:idx_checkpoint_key,priority:2"`
	Revision       string         `gorm:"not null;uniqueIndex:idx_checkpoint_key,priority:3"`
	ParentRevision *string
	Payload        []byte         `gorm:"not null"`
	Metadata       datatypes.JSON `gorm:"not null"`
	CreatedAt      time.Time      `gorm:"not null;index:idx_checkpoint_thread_created,priority:2"`
}

func (Checkpoint) TableName() string { return "checkpoint" }

// All lists every persisted model, in migration order.
func All() []any {
	return []any{
		&Lead{},
		&Conversation{},
		&Message{},
		&Product{},
		&ProductSector{},
		&ProductTierRow{},
		&Checkpoint{},
	}
}

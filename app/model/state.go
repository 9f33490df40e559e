package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultProfile         = "explorer"
	DefaultCooperativeness = 50
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatMessage struct {
	Role      Role      `json:"role" validate:"oneof=user assistant"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Signal struct {
	Type      string    `json:"type" validate:"required"`
	Weight    int       `json:"weight"`
	Timestamp time.Time `json:"timestamp"`
}

type ProductTier struct {
	Name         string  `json:"name"`
	MonthlyPrice float64 `json:"monthly_price"`
	Featured     bool    `json:"featured,omitempty"`
}

type RecommendedProduct struct {
	Name        string        `json:"name" validate:"required"`
	Slug        string        `json:"slug" validate:"required"`
	Description string        `json:"description,omitempty"`
	BasePrice   float64       `json:"base_price"`
	Tiers       []ProductTier `json:"tiers,omitempty" validate:"max=2"`
}

// State is the full conversation state carried between turns and serialized
// into every checkpoint.
type State struct {
	SessionID      string    `json:"session_id" validate:"required"`
	LeadID         uuid.UUID `json:"lead_id"`
	ConversationID uuid.UUID `json:"conversation_id"`

	Messages []ChatMessage `json:"messages" validate:"dive"`
	Fields   Fields        `json:"fields"`

	Profile         string `json:"profile" validate:"required"`
	Cooperativeness int    `json:"cooperativeness" validate:"gte=0,lte=100"`
	Probability     int    `json:"probability" validate:"gte=0,lte=100"`
	Stage           Stage  `json:"stage" validate:"oneof=discovery qualification closing"`

	Signals  []Signal             `json:"signals" validate:"dive"`
	Products []RecommendedProduct `json:"products" validate:"dive"`

	MessageCount     int  `json:"message_count" validate:"gte=0"`
	ShouldClose      bool `json:"should_close"`
	FirstInteraction bool `json:"first_interaction"`
	Finalized        bool `json:"finalized"`
}

func NewState(sessionID string) *State {
	return &State{
		SessionID:        sessionID,
		LeadID:           uuid.New(),
		ConversationID:   uuid.New(),
		Messages:         []ChatMessage{},
		Profile:          DefaultProfile,
		Cooperativeness:  DefaultCooperativeness,
		Stage:            StageDiscovery,
		Signals:          []Signal{},
		Products:         []RecommendedProduct{},
		FirstInteraction: true,
	}
}

func (s *State) AddMessage(role Role, content string, at time.Time) {
	s.Messages = append(s.Messages, ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: at,
	})
}

func (s *State) HasUserMessage() bool {
	for _, msg := range s.Messages {
		if msg.Role == RoleUser {
			return true
		}
	}

	return false
}

// Recent returns up to n trailing messages.
func (s *State) Recent(n int) []ChatMessage {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}

	return s.Messages[len(s.Messages)-n:]
}

func (s *State) Closed() bool {
	return s.ShouldClose || s.Finalized
}

// Clone returns a deep copy so stages can mutate state without touching the loaded snapshot.
func (s *State) Clone() *State {
	c := *s
	c.Messages = append([]ChatMessage{}, s.Messages...)
	c.Signals = append([]Signal{}, s.Signals...)
	c.Products = make([]RecommendedProduct, len(s.Products))
	for i, p := range s.Products {
		p.Tiers = append([]ProductTier(nil), p.Tiers...)
		c.Products[i] = p
	}
	c.Fields = s.Fields.Clone()

	return &c
}

package leads

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"leadagent/app/model"
	"leadagent/app/service/database"

	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/oops"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const channelWeb = "web"

// Projection is the business view of a session: its lead and conversation rows.
type Projection struct {
	Lead         *model.Lead
	Conversation *model.Conversation
}

func (p *Projection) Finalized() bool {
	return p != nil && p.Conversation != nil && p.Conversation.Status == model.ConversationFinalized
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	return NewRepo(do.MustInvoke[*database.Service](di).DB()), nil
}

func NewRepo(db *gorm.DB) *Service {
	return &Service{
		db:  db,
		now: time.Now,
	}
}

func (s *Service) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		tx = s.db
	}

	return tx.WithContext(ctx)
}

// Load returns the projection of a session, or nil when the session is unknown.
func (s *Service) Load(ctx context.Context, tx *gorm.DB, sessionID string) (*Projection, error) {
	var conv model.Conversation

	err := s.conn(ctx, tx).Where("session_id = ?", sessionID).Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.In("leads").With("session_id", sessionID).Wrapf(err, "failed to load conversation")
	}

	var lead model.Lead
	err = s.conn(ctx, tx).Where("id = ?", conv.LeadID).Take(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Projection{Conversation: &conv}, nil
	}
	if err != nil {
		return nil, oops.In("leads").With("lead_id", conv.LeadID).Wrapf(err, "failed to load lead")
	}

	return &Projection{Lead: &lead, Conversation: &conv}, nil
}

// Bootstrap inserts the lead and conversation rows of a new session.
func (s *Service) Bootstrap(ctx context.Context, tx *gorm.DB, state *model.State) error {
	now := s.now().UTC()

	lead := model.Lead{
		ID:     state.LeadID,
		Status: model.LeadStatusNew,
		Origin: model.LeadOriginWeb,
	}
	if err := s.conn(ctx, tx).Create(&lead).Error; err != nil {
		return oops.In("leads").With("lead_id", state.LeadID).Wrapf(err, "failed to create lead")
	}

	conv := model.Conversation{
		ID:        state.ConversationID,
		LeadID:    state.LeadID,
		SessionID: state.SessionID,
		Channel:   channelWeb,
		Status:    model.ConversationActive,
		Stage:     string(model.StageDiscovery),
		Signals:   datatypes.JSON("[]"),
		Products:  datatypes.JSON("[]"),
		StartedAt: now,
	}
	if err := s.conn(ctx, tx).Create(&conv).Error; err != nil {
		return oops.In("leads").With("session_id", state.SessionID).Wrapf(err, "failed to create conversation")
	}

	return nil
}

// AppendMessage stores one chat message with its intent metadata.
func (s *Service) AppendMessage(
	ctx context.Context,
	tx *gorm.DB,
	state *model.State,
	msg model.ChatMessage,
	intents map[string]any,
) error {
	if intents == nil {
		intents = map[string]any{}
	}
	intentsJSON, err := json.Marshal(intents)
	if err != nil {
		return oops.In("leads").Wrapf(err, "failed to marshal intents")
	}

	createdAt := msg.Timestamp
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	row := model.Message{
		ID:             uuid.New(),
		ConversationID: state.ConversationID,
		LeadID:         state.LeadID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		Intents:        datatypes.JSON(intentsJSON),
		CreatedAt:      createdAt.UTC(),
	}
	if err = s.conn(ctx, tx).Create(&row).Error; err != nil {
		return oops.In("leads").With("conversation_id", state.ConversationID).Wrapf(err, "failed to store message")
	}

	return nil
}

// Sync copies the turn's state onto the lead and conversation rows.
func (s *Service) Sync(ctx context.Context, tx *gorm.DB, state *model.State) error {
	now := s.now().UTC()

	leadUpdates := map[string]any{
		"score":      state.Probability,
		"updated_at": now,
	}
	f := state.Fields
	for column, value := range map[string]*string{
		"name":            f.Name,
		"email":           f.Email,
		"phone":           f.Phone,
		"company":         f.Company,
		"sector":          f.Sector,
		"budget":          f.Budget,
		"urgency":         f.Urgency,
		"primary_problem": f.PrimaryProblem,
	} {
		if value != nil {
			leadUpdates[column] = *value
		}
	}
	if f.DecisionMaker != nil {
		leadUpdates["decision_maker"] = *f.DecisionMaker
	}

	if err := s.conn(ctx, tx).Model(&model.Lead{}).Where("id = ?", state.LeadID).Updates(leadUpdates).Error; err != nil {
		return oops.In("leads").With("lead_id", state.LeadID).Wrapf(err, "failed to update lead")
	}

	signals, err := json.Marshal(state.Signals)
	if err != nil {
		return oops.In("leads").Wrapf(err, "failed to marshal signals")
	}
	products, err := json.Marshal(state.Products)
	if err != nil {
		return oops.In("leads").Wrapf(err, "failed to marshal products")
	}

	err = s.conn(ctx, tx).
		Model(&model.Conversation{}).
		Where("id = ?", state.ConversationID).
		Updates(map[string]any{
			"probability":    state.Probability,
			"stage":          string(state.Stage),
			"signals":        datatypes.JSON(signals),
			"products":       datatypes.JSON(products),
			"total_messages": state.MessageCount,
			"updated_at":     now,
		}).Error
	if err != nil {
		return oops.In("leads").With("conversation_id", state.ConversationID).Wrapf(err, "failed to update conversation")
	}

	return nil
}

// MarkFinalized closes the conversation, recording whether a notification went out.
func (s *Service) MarkFinalized(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, notified bool) error {
	now := s.now().UTC()

	updates := map[string]any{
		"status":     model.ConversationFinalized,
		"ended_at":   now,
		"updated_at": now,
	}
	if notified {
		updates["notification_sent"] = true
		updates["notification_sent_at"] = now
	}

	err := s.conn(ctx, tx).
		Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(updates).Error
	if err != nil {
		return oops.In("leads").With("conversation_id", conversationID).Wrapf(err, "failed to finalize conversation")
	}

	return nil
}

// Messages returns the stored messages of a conversation in chronological order.
func (s *Service) Messages(ctx context.Context, conversationID uuid.UUID) ([]model.Message, error) {
	var rows []model.Message

	err := s.conn(ctx, nil).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, oops.In("leads").With("conversation_id", conversationID).Wrapf(err, "failed to list messages")
	}

	return rows, nil
}

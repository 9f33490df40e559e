package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadagent/app/model"
	"leadagent/app/service/database"

	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/oops"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Key addresses one append-only checkpoint log.
type Key struct {
	Thread    string
	Namespace string
}

type Checkpoint struct {
	Thread    string
	Namespace string
	Revision  string
	Parent    string
	Payload   []byte
	Metadata  Metadata
	CreatedAt time.Time
}

type Metadata struct {
	Stage        string `json:"stage,omitempty"`
	Probability  int    `json:"probability"`
	Strategy     string `json:"strategy,omitempty"`
	MessageCount int    `json:"message_count"`
	Closed       bool   `json:"closed"`
	Source       string `json:"source,omitempty"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	return NewStore(do.MustInvoke[*database.Service](di).DB()), nil
}

func NewStore(db *gorm.DB) *Service {
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

// NewRevision builds a revision id of the form <uuid>_<unix nano>.
func NewRevision(at time.Time) string {
	return fmt.Sprintf("%s_%d", uuid.NewString(), at.UnixNano())
}

// Put appends a checkpoint. A row with the same key and revision is replaced.
func (s *Service) Put(
	ctx context.Context,
	tx *gorm.DB,
	key Key,
	parent string,
	payload []byte,
	meta Metadata,
) (*Checkpoint, error) {
	if key.Thread == "" {
		return nil, oops.In("checkpoint").Errorf("thread is required")
	}

	metaJSON, err := datatypes.NewJSONType(meta).MarshalJSON()
	if err != nil {
		return nil, oops.In("checkpoint").Wrapf(err, "failed to marshal metadata")
	}

	now := s.now().UTC()
	row := model.Checkpoint{
		ThreadID:  key.Thread,
		Namespace: key.Namespace,
		Revision:  NewRevision(now),
		Payload:   payload,
		Metadata:  datatypes.JSON(metaJSON),
		CreatedAt: now,
	}
	if parent != "" {
		row.ParentRevision = &parent
	}

	err = s.conn(ctx, tx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "thread_id"}, {Name: "namespace"}, {Name: "revision"}},
			DoUpdates: clause.AssignmentColumns([]string{"parent_revision", "payload", "metadata", "created_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, oops.In("checkpoint").
			With("thread", key.Thread).
			With("revision", row.Revision).
			Wrapf(err, "failed to write checkpoint")
	}

	return fromRow(&row)
}

// Latest returns the newest checkpoint for key, or nil when the log is empty.
func (s *Service) Latest(ctx context.Context, tx *gorm.DB, key Key) (*Checkpoint, error) {
	var row model.Checkpoint

	err := s.conn(ctx, tx).
		Where("thread_id = ? AND namespace = ?", key.Thread, key.Namespace).
		Order("created_at DESC").
		Order("id DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.In("checkpoint").With("thread", key.Thread).Wrapf(err, "failed to load latest checkpoint")
	}

	return fromRow(&row)
}

// Get returns the checkpoint with the given revision, or nil when absent.
func (s *Service) Get(ctx context.Context, tx *gorm.DB, key Key, revision string) (*Checkpoint, error) {
	var row model.Checkpoint

	err := s.conn(ctx, tx).
		Where("thread_id = ? AND namespace = ? AND revision = ?", key.Thread, key.Namespace, revision).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.In("checkpoint").
			With("thread", key.Thread).
			With("revision", revision).
			Wrapf(err, "failed to load checkpoint")
	}

	return fromRow(&row)
}

// List returns checkpoints newest first. limit <= 0 means no limit.
func (s *Service) List(ctx context.Context, key Key, limit int) ([]*Checkpoint, error) {
	var rows []model.Checkpoint

	q := s.conn(ctx, nil).
		Where("thread_id = ? AND namespace = ?", key.Thread, key.Namespace).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&rows).Error; err != nil {
		return nil, oops.In("checkpoint").With("thread", key.Thread).Wrapf(err, "failed to list checkpoints")
	}

	result := make([]*Checkpoint, 0, len(rows))
	for i := range rows {
		cp, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, cp)
	}

	return result, nil
}

func fromRow(row *model.Checkpoint) (*Checkpoint, error) {
	var meta datatypes.JSONType[Metadata]
	if len(row.Metadata) > 0 {
		if err := meta.UnmarshalJSON(row.Metadata); err != nil {
			return nil, oops.In("checkpoint").With("revision", row.Revision).Wrapf(err, "failed to decode metadata")
		}
	}

	cp := &Checkpoint{
		Thread:    row.ThreadID,
		Namespace: row.Namespace,
		Revision:  row.Revision,
		Payload:   row.Payload,
		Metadata:  meta.Data(),
		CreatedAt: row.CreatedAt,
	}
	if row.ParentRevision != nil {
		cp.Parent = *row.ParentRevision
	}

	return cp, nil
}

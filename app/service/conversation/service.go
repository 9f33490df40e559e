package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"leadagent/app/config"
	"leadagent/app/model"
	"leadagent/app/service/checkpoint"
	"leadagent/app/service/database"
	"leadagent/app/service/extraction"
	"leadagent/app/service/leads"
	"leadagent/app/service/notify"
	"leadagent/app/service/qualification"
	"leadagent/app/service/sessionlock"
	"leadagent/app/service/strategy"

	"github.com/elliotchance/pie/v2"
	"github.com/go-playground/validator/v10"
	"github.com/samber/do"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	checkpointNamespace = "chat"

	sourceTurn     = "turn"
	sourceFinalize = "finalize"
)

var (
	tracer   = otel.Tracer("leadagent/conversation")
	validate = validator.New(validator.WithRequiredStructEnabled())
)

type Extractor interface {
	Extract(ctx context.Context, utterance string, fields model.Fields) (model.Fields, []model.Field, error)
}

type Qualifier interface {
	Qualify(ctx context.Context, state *model.State, utterance string) error
}

type Strategist interface {
	Greeting() string
	Respond(ctx context.Context, state *model.State, utterance string) (*strategy.Reply, error)
}

type Notifier interface {
	Notify(n notify.Notice) bool
}

type Options struct {
	// Minimum probability for the sales notification on close
	NotifyThreshold int
}

// Deps are the collaborators of one orchestrator.
type Deps struct {
	DB          *gorm.DB
	Locker      sessionlock.Locker
	Repo        *leads.Service
	Checkpoints *checkpoint.Service
	Extractor   Extractor
	Qualifier   Qualifier
	Strategist  Strategist
	Notifier    Notifier
}

type Service struct {
	Deps
	opts Options
	now  func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewOrchestrator(Deps{
		DB:          do.MustInvoke[*database.Service](di).DB(),
		Locker:      do.MustInvoke[*sessionlock.Service](di),
		Repo:        do.MustInvoke[*leads.Service](di),
		Checkpoints: do.MustInvoke[*checkpoint.Service](di),
		Extractor:   do.MustInvoke[*extraction.Service](di),
		Qualifier:   do.MustInvoke[*qualification.Service](di),
		Strategist:  do.MustInvoke[*strategy.Service](di),
		Notifier:    do.MustInvoke[*notify.Service](di),
	}, Options{
		NotifyThreshold: cfg.Qualification.NotifyThreshold,
	}), nil
}

func NewOrchestrator(deps Deps, opts Options) *Service {
	if deps.Locker == nil {
		deps.Locker = sessionlock.NewLocal()
	}

	return &Service{
		Deps: deps,
		opts: opts,
		now:  time.Now,
	}
}

// turn carries the working state of one ProcessTurn call.
type turn struct {
	sessionID string
	utterance string
	state     *model.State

	// parent is the revision the state was read from, empty for a new session
	parent   string
	revision string
	// fresh sessions get their lead and conversation rows in the commit
	fresh bool
	// number of history messages already stored as rows
	stored   int
	closed   bool
	accepted []model.Field
	reply    *strategy.Reply
}

func key(sessionID string) checkpoint.Key {
	return checkpoint.Key{Thread: sessionID, Namespace: checkpointNamespace}
}

// ProcessTurn runs one turn for the session: initialize, extract, qualify,
// respond, commit and, when the conversation closes, finalize. The whole
// pipeline runs under the session lock.
func (s *Service) ProcessTurn(ctx context.Context, sessionID string, message *string) (*TurnResult, error) {
	if err := checkSession(sessionID); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "conversation.turn",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	start := time.Now()

	release, err := s.Locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, fail(span, oops.In("conversation").
			With("session_id", sessionID).
			Wrap(fmt.Errorf("%w: failed to acquire session lock: %w", ErrPersistence, err)))
	}
	defer release()

	t, err := s.initialize(ctx, sessionID)
	if err != nil {
		return nil, fail(span, err)
	}

	if t.closed {
		slog.Info("Turn on finalized conversation", "session_id", sessionID)
		result := newResult(t.state, finalizedReply)
		result.Closed = true
		result.Revision = t.parent
		return result, nil
	}

	if message != nil {
		t.utterance = strings.TrimSpace(*message)
	}
	if t.utterance != "" {
		t.state.AddMessage(model.RoleUser, t.utterance, s.now().UTC())
	}

	s.extract(ctx, t)
	s.qualify(ctx, t)

	if err = s.respond(ctx, t); err != nil {
		return nil, fail(span, err)
	}

	if err = s.commit(ctx, t); err != nil {
		return nil, fail(span, err)
	}

	if t.state.ShouldClose {
		s.finalize(ctx, t)
	}

	span.SetAttributes(
		attribute.String("strategy", string(t.reply.Strategy)),
		attribute.Int("probability", t.state.Probability),
	)

	slog.Info("Processed turn",
		"session_id", sessionID,
		"strategy", t.reply.Strategy,
		"probability", t.state.Probability,
		"stage", t.state.Stage,
		"closed", t.state.ShouldClose,
		"duration", time.Since(start),
	)

	result := newResult(t.state, t.reply.Text)
	result.Strategy = t.reply.Strategy
	result.Revision = t.revision

	return result, nil
}

func (s *Service) initialize(ctx context.Context, sessionID string) (*turn, error) {
	ctx, span := tracer.Start(ctx, "conversation.initialize")
	defer span.End()

	var (
		latest *checkpoint.Checkpoint
		proj   *leads.Projection
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		latest, err = s.Checkpoints.Latest(gctx, nil, key(sessionID))
		return err
	})
	g.Go(func() error {
		var err error
		proj, err = s.Repo.Load(gctx, nil, sessionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fail(span, oops.In("conversation").
			With("session_id", sessionID).
			Wrap(fmt.Errorf("%w: failed to load session: %w", ErrPersistence, err)))
	}

	t := &turn{sessionID: sessionID}

	if latest != nil {
		state, err := decodeState(latest.Payload)
		if err != nil {
			return nil, fail(span, oops.In("conversation").
				With("session_id", sessionID).
				With("revision", latest.Revision).
				Wrap(err))
		}

		t.state = state
		t.parent = latest.Revision
		t.stored = len(state.Messages)
		t.closed = state.Closed() || proj.Finalized()

		return t, nil
	}

	state := model.NewState(sessionID)
	if proj != nil && proj.Conversation != nil {
		// rows outlived the checkpoint log; reuse their ids
		state.ConversationID = proj.Conversation.ID
		state.LeadID = proj.Conversation.LeadID
		t.closed = proj.Finalized()
	} else {
		t.fresh = true
	}

	state.AddMessage(model.RoleAssistant, s.Strategist.Greeting(), s.now().UTC())
	t.state = state

	slog.Debug("Bootstrapped session", "session_id", sessionID, "fresh", t.fresh)

	return t, nil
}

func (s *Service) extract(ctx context.Context, t *turn) {
	if t.utterance == "" {
		return
	}

	ctx, span := tracer.Start(ctx, "conversation.extract")
	defer span.End()

	fields, accepted, err := s.Extractor.Extract(ctx, t.utterance, t.state.Fields)
	if err != nil {
		span.RecordError(err)
		slog.Warn("Extraction failed",
			"session_id", t.sessionID,
			"error", err,
		)
		return
	}

	t.state.Fields = fields
	t.accepted = accepted

	if len(accepted) > 0 {
		slog.Debug("Extracted fields", "session_id", t.sessionID, "fields", accepted)
	}
}

func (s *Service) qualify(ctx context.Context, t *turn) {
	if !t.state.HasUserMessage() {
		return
	}

	ctx, span := tracer.Start(ctx, "conversation.qualify")
	defer span.End()

	if err := s.Qualifier.Qualify(ctx, t.state, t.utterance); err != nil {
		span.RecordError(err)
		slog.Warn("Qualification lookup failed",
			"session_id", t.sessionID,
			"error", err,
		)
	}
}

func (s *Service) respond(ctx context.Context, t *turn) error {
	ctx, span := tracer.Start(ctx, "conversation.respond")
	defer span.End()

	reply, err := s.Strategist.Respond(ctx, t.state, t.utterance)
	if err != nil {
		return fail(span, oops.In("conversation").
			With("session_id", t.sessionID).
			Wrap(fmt.Errorf("%w: %w", ErrGeneration, err)))
	}

	t.reply = reply

	// the greeting is already in history since bootstrap
	if reply.Strategy != strategy.Greeting {
		t.state.AddMessage(model.RoleAssistant, reply.Text, s.now().UTC())
	}

	t.state.MessageCount++
	t.state.FirstInteraction = false
	if reply.Close {
		t.state.ShouldClose = true
	}

	span.SetAttributes(attribute.String("strategy", string(reply.Strategy)))

	return nil
}

// commit writes everything the turn produced in one transaction.
func (s *Service) commit(ctx context.Context, t *turn) error {
	ctx, span := tracer.Start(ctx, "conversation.commit")
	defer span.End()

	wrap := func(err error) error {
		return fail(span, oops.In("conversation").
			With("session_id", t.sessionID).
			Wrap(fmt.Errorf("%w: %w", ErrPersistence, err)))
	}

	if err := validate.Struct(t.state); err != nil {
		return wrap(fmt.Errorf("invalid state: %w", err))
	}

	payload, err := json.Marshal(t.state)
	if err != nil {
		return wrap(fmt.Errorf("failed to encode state: %w", err))
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if t.fresh {
			if err := s.Repo.Bootstrap(ctx, tx, t.state); err != nil {
				return err
			}
		}

		for _, msg := range t.state.Messages[t.stored:] {
			if err := s.Repo.AppendMessage(ctx, tx, t.state, msg, t.intents(msg)); err != nil {
				return err
			}
		}

		if err := s.Repo.Sync(ctx, tx, t.state); err != nil {
			return err
		}

		cp, err := s.Checkpoints.Put(ctx, tx, key(t.sessionID), t.parent, payload, t.metadata(sourceTurn))
		if err != nil {
			return err
		}

		t.revision = cp.Revision

		return nil
	})
	if err != nil {
		t.revision = ""
		return wrap(err)
	}

	t.stored = len(t.state.Messages)

	return nil
}

// finalize notifies sales when warranted and closes the conversation. Failures are logged only.
func (s *Service) finalize(ctx context.Context, t *turn) {
	ctx, span := tracer.Start(ctx, "conversation.finalize")
	defer span.End()

	state := t.state

	notified := false
	if state.Fields.HasContact() && state.Probability >= s.opts.NotifyThreshold {
		notified = s.Notifier.Notify(notify.Notice{
			SessionID:   t.sessionID,
			LeadID:      state.LeadID,
			Fields:      state.Fields.Clone(),
			Probability: state.Probability,
			Class:       model.ClassFor(state.Probability),
			Products:    pie.Map(state.Products, func(p model.RecommendedProduct) string { return p.Name }),
			At:          s.now().UTC(),
		})
	}

	if err := s.Repo.MarkFinalized(ctx, nil, state.ConversationID, notified); err != nil {
		span.RecordError(err)
		slog.Error("Failed to mark conversation finalized",
			"session_id", t.sessionID,
			"error", err,
		)
	}

	state.Finalized = true

	payload, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to encode finalized state", "session_id", t.sessionID, "error", err)
		return
	}

	cp, err := s.Checkpoints.Put(ctx, nil, key(t.sessionID), t.revision, payload, t.metadata(sourceFinalize))
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to write finalized checkpoint",
			"session_id", t.sessionID,
			"error", err,
		)
		return
	}

	t.revision = cp.Revision

	slog.Info("Conversation finalized",
		"session_id", t.sessionID,
		"probability", state.Probability,
		"notified", notified,
	)
}

func (t *turn) intents(msg model.ChatMessage) map[string]any {
	if msg.Role == model.RoleAssistant {
		return map[string]any{
			"strategy":    t.reply.Strategy,
			"probability": t.state.Probability,
		}
	}

	if len(t.accepted) == 0 {
		return nil
	}

	return map[string]any{
		"extracted": t.accepted,
	}
}

func (t *turn) metadata(source string) checkpoint.Metadata {
	return checkpoint.Metadata{
		Stage:        string(t.state.Stage),
		Probability:  t.state.Probability,
		Strategy:     string(t.reply.Strategy),
		MessageCount: t.state.MessageCount,
		Closed:       t.state.Closed(),
		Source:       source,
	}
}

func checkSession(sessionID string) error {
	if err := validate.Var(sessionID, "required,max=128,printascii"); err != nil {
		return oops.In("conversation").
			With("session_id", sessionID).
			Wrap(fmt.Errorf("%w: %w", ErrInvalidSession, err))
	}

	return nil
}

func decodeState(payload []byte) (*model.State, error) {
	var state model.State

	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("%w: failed to decode state: %w", ErrInvalidSession, err)
	}
	if err := validate.Struct(&state); err != nil {
		return nil, fmt.Errorf("%w: stored state is invalid: %w", ErrInvalidSession, err)
	}

	return &state, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}

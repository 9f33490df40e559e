package conversation

import (
	"context"

	"leadagent/app/model"
	"leadagent/app/service/checkpoint"

	"github.com/samber/oops"
)

// History lists the session's checkpoints newest first. limit <= 0 returns all of them.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]*checkpoint.Checkpoint, error) {
	if err := checkSession(sessionID); err != nil {
		return nil, err
	}

	return s.Checkpoints.List(ctx, key(sessionID), limit)
}

// StateAt returns the state stored at an exact revision, or nil when the revision is unknown.
func (s *Service) StateAt(ctx context.Context, sessionID, revision string) (*model.State, *checkpoint.Checkpoint, error) {
	if err := checkSession(sessionID); err != nil {
		return nil, nil, err
	}

	cp, err := s.Checkpoints.Get(ctx, nil, key(sessionID), revision)
	if err != nil || cp == nil {
		return nil, nil, err
	}

	state, err := decodeState(cp.Payload)
	if err != nil {
		return nil, nil, oops.In("conversation").
			With("session_id", sessionID).
			With("revision", revision).
			Wrap(err)
	}

	return state, cp, nil
}

// Transcript returns the stored messages of a session in chronological order,
// or nil when the session has no conversation yet.
func (s *Service) Transcript(ctx context.Context, sessionID string) ([]model.Message, error) {
	if err := checkSession(sessionID); err != nil {
		return nil, err
	}

	proj, err := s.Repo.Load(ctx, nil, sessionID)
	if err != nil || proj == nil || proj.Conversation == nil {
		return nil, err
	}

	messages, err := s.Repo.Messages(ctx, proj.Conversation.ID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []model.Message{}
	}

	return messages, nil
}

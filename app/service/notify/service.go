package notify

import (
	"log/slog"
	"sync"
	"time"

	"leadagent/app/model"

	"github.com/google/uuid"
	"github.com/samber/do"
)

const bufferSize = 64

var _ do.Shutdownable = (*Service)(nil)

// Notice announces a qualified lead to the sales team.
type Notice struct {
	SessionID   string
	LeadID      uuid.UUID
	Fields      model.Fields
	Probability int
	Class       model.LeadClass
	Products    []string
	At          time.Time
}

// Service is a bounded notice queue. Adding never blocks; a full queue drops the notice.
type Service struct {
	mu     sync.RWMutex
	queue  chan Notice
	closed bool
}

func New(_ *do.Injector) (*Service, error) {
	return NewQueue(bufferSize), nil
}

func NewQueue(size int) *Service {
	return &Service{
		queue: make(chan Notice, size),
	}
}

// Notify enqueues n and reports whether it was accepted.
func (s *Service) Notify(n Notice) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		slog.Warn("Notice queue is closed", "session_id", n.SessionID)
		return false
	}

	select {
	case s.queue <- n:
		return true
	default:
		slog.Warn("Notice queue is full", "session_id", n.SessionID)
		return false
	}
}

func (s *Service) Channel() <-chan Notice {
	return s.queue
}

func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.queue)
	}

	return nil
}

package store

import (
	"context"
	"sync"

	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

// Store is the file-backed persistence for documents and corpus artifacts.
// Every write is an atomic replace. Callers must not let two workers write the
// same document concurrently; Store only serialises writes to shared
// per-document transform files.
type Store struct {
	log    *logger.Logger
	layout Layout

	mu        sync.Mutex
	fileLocks map[string]*sync.Mutex
}

func New(log *logger.Logger, layout Layout) *Store {
	return &Store{
		log:       log.With("component", "Store"),
		layout:    layout,
		fileLocks: map[string]*sync.Mutex{},
	}
}

func (s *Store) Layout() Layout { return s.layout }

func (s *Store) Documents(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.layout.Documents()
}

func (s *Store) lockFile(path string) func() {
	s.mu.Lock()
	l, ok := s.fileLocks[path]
	if !ok {
		l = &sync.Mutex{}
		s.fileLocks[path] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

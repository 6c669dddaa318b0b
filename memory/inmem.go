package memory

import (
	"container/list"
	"context"
	"sync"
)

const (
	defaultMaxSessions          = 1024
	defaultMaxEntriesPerSession = 200
)

// InMem is a process-local Store. Sessions are evicted least recently
// used once MaxSessions is reached; each session keeps at most
// MaxEntries recent entries.
type InMem struct {
	MaxSessions int
	MaxEntries  int

	mu       sync.Mutex
	order    *list.List
	sessions map[string]*list.Element
}

type session struct {
	id      string
	entries []Entry
}

func NewInMem() *InMem {
	return &InMem{
		MaxSessions: defaultMaxSessions,
		MaxEntries:  defaultMaxEntriesPerSession,
		order:       list.New(),
		sessions:    make(map[string]*list.Element),
	}
}

func (s *InMem) Append(ctx context.Context, sessionID string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.sessions[sessionID]
	if !ok {
		if s.order.Len() >= s.MaxSessions {
			oldest := s.order.Back()
			if oldest != nil {
				delete(s.sessions, oldest.Value.(*session).id)
				s.order.Remove(oldest)
			}
		}
		elem = s.order.PushFront(&session{id: sessionID})
		s.sessions[sessionID] = elem
	} else {
		s.order.MoveToFront(elem)
	}

	sess := elem.Value.(*session)
	sess.entries = append(sess.entries, entry)
	if len(sess.entries) > s.MaxEntries {
		sess.entries = sess.entries[len(sess.entries)-s.MaxEntries:]
	}
	return nil
}

func (s *InMem) History(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	s.order.MoveToFront(elem)

	entries := elem.Value.(*session).entries
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *InMem) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.sessions[sessionID]; ok {
		s.order.Remove(elem)
		delete(s.sessions, sessionID)
	}
	return nil
}

package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned by Scripted once every reply has been used.
var ErrScriptExhausted = errors.New("scripted completer has no replies left")

// Scripted replays canned replies in order and records every request. Used in tests and dry runs.
type Scripted struct {
	mu       sync.Mutex
	replies  []string
	requests []Request
}

// NewScripted creates a completer that returns replies in order.
func NewScripted(replies ...string) *Scripted {
	return &Scripted{replies: replies}
}

func (s *Scripted) Complete(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return "", ErrScriptExhausted
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

// Requests returns the requests seen so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

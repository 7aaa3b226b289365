// Package memory implementa core.Repository en memoria (dev y tests).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ydethe/quizzy/internal/store/core"
)

type Store struct {
	mu       sync.RWMutex
	passages []core.Passage
	now      func() time.Time
}

func New() *Store { return &Store{now: time.Now} }

func (s *Store) Save(_ context.Context, p *core.Passage) error {
	if err := p.Prepare(s.now()); err != nil {
		return err
	}
	s.mu.Lock()
	s.passages = append(s.passages, *p)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListByQuiz(_ context.Context, quiz string, limit int) ([]core.Passage, error) {
	limit = core.ClampLimit(limit)
	s.mu.RLock()
	var out []core.Passage
	for _, p := range s.passages {
		if p.QuizName == quiz {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

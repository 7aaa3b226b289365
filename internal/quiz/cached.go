package quiz

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ydethe/quizzy/internal/cache"
	"github.com/ydethe/quizzy/internal/observability/logger"
)

// CachedSource guarda las definiciones ya validadas en un cache.Client (JSON)
// para no releer ni reparsear el YAML en cada página. Cada Load devuelve una copia.
type CachedSource struct {
	next  Source
	cache cache.Client
	ttl   time.Duration
	sf    singleflight.Group
	log   *zap.Logger
}

type cachedQuiz struct {
	Def  definition `json:"def"`
	Hash string     `json:"hash"`
}

func NewCachedSource(next Source, c cache.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{next: next, cache: c, ttl: ttl, log: logger.Named("quiz.cache")}
}

func cacheKey(name string) string { return "quiz:" + name }

func (s *CachedSource) Load(ctx context.Context, name string) (*Quiz, error) {
	if !ValidName(name) {
		return nil, ErrQuizNotFound
	}
	if q, ok := s.fromCache(ctx, name); ok {
		return q, nil
	}

	v, err, _ := s.sf.Do(name, func() (any, error) {
		q, err := s.next.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(cachedQuiz{Def: q.definition(), Hash: q.Hash})
		if err == nil {
			err = s.cache.Set(ctx, cacheKey(name), string(b), s.ttl)
		}
		if err != nil {
			s.log.Warn("quiz cache store failed", logger.QuizID(name), logger.Err(err))
		}
		return q, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Quiz).Clone(), nil
}

func (s *CachedSource) fromCache(ctx context.Context, name string) (*Quiz, bool) {
	raw, err := s.cache.Get(ctx, cacheKey(name))
	if err != nil {
		if !cache.IsNotFound(err) {
			s.log.Warn("quiz cache read failed", logger.QuizID(name), logger.Err(err))
		}
		return nil, false
	}
	var cq cachedQuiz
	if err := json.Unmarshal([]byte(raw), &cq); err != nil {
		return nil, false
	}
	q, err := cq.Def.build(name)
	if err != nil {
		return nil, false
	}
	q.Hash = cq.Hash
	return q, true
}

// Invalidate descarta la entrada de name (la usa el watcher de archivos).
func (s *CachedSource) Invalidate(ctx context.Context, name string) error {
	return s.cache.Delete(ctx, cacheKey(name))
}

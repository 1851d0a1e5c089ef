// Package docstore 实现内容单元的内存快照存储。
// 快照由 ingest 产出，服务启动时一次性加载，运行期只读；
// 重载通过整体换入新快照完成，读写由 RWMutex 串行化。
package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Rogan-afk/NutriNephra/internal/application/retrieval"
	"github.com/Rogan-afk/NutriNephra/internal/domain/entity"
)

// Store 内存文档存储，实现 retrieval.DocumentStore
type Store struct {
	mu       sync.RWMutex
	units    map[string]*entity.ContentUnit
	loadedAt time.Time
}

// NewStore 创建空存储
func NewStore() *Store {
	return &Store{units: map[string]*entity.ContentUnit{}}
}

// Swap 换入新快照，原子替换全部内容单元
func (s *Store) Swap(units []*entity.ContentUnit) {
	m := make(map[string]*entity.ContentUnit, len(units))
	for _, u := range units {
		m[u.ID] = u
	}
	s.mu.Lock()
	s.units = m
	s.loadedAt = time.Now()
	s.mu.Unlock()
}

// GetByID 实现 retrieval.DocumentStore
func (s *Store) GetByID(_ context.Context, id string) (*entity.ContentUnit, error) {
	s.mu.RLock()
	u, ok := s.units[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", retrieval.ErrUnitNotFound, id)
	}
	return u, nil
}

// GetMany 实现 retrieval.DocumentStore，缺失的 id 不出现在结果中
func (s *Store) GetMany(_ context.Context, ids []string) (map[string]*entity.ContentUnit, error) {
	out := make(map[string]*entity.ContentUnit, len(ids))
	s.mu.RLock()
	for _, id := range ids {
		if u, ok := s.units[id]; ok {
			out[id] = u
		}
	}
	s.mu.RUnlock()
	return out, nil
}

// All 实现 retrieval.UnitLister，返回全部内容单元
func (s *Store) All() []*entity.ContentUnit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.ContentUnit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u)
	}
	return out
}

// Len 实现 retrieval.DocumentStore
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.units)
}

// Ready 实现 retrieval.DocumentStore
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.loadedAt.IsZero() && len(s.units) > 0
}

// LoadedAt 返回快照换入时间
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

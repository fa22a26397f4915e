package cache

import (
	"strings"
	"sync"

	"github.com/John-Robertt/cinesearch/internal/domain"
)

// Store 是会话级的详情缓存：IMDb ID -> DetailRecord。
//
// 约束：
// - 纯内存，不做任何 I/O；进程退出即丢失
// - 不淘汰、不过期、不限大小（只在 Clear 时整体清空）
// - 显式构造并显式传递，不存在包级单例
// - 多个 Fetcher 在各自 goroutine 中读写，因此用 RWMutex 保护
type Store struct {
	mu      sync.RWMutex
	records map[domain.IMDbID]domain.DetailRecord
}

func New() *Store {
	return &Store{records: make(map[domain.IMDbID]domain.DetailRecord)}
}

// Get 返回缓存的详情；未命中时 ok=false（未命中不是错误）。
func (s *Store) Get(key domain.IMDbID) (domain.DetailRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return rec, ok
}

// Put 写入（或覆盖）一条详情。空 key 直接忽略。
func (s *Store) Put(key domain.IMDbID, rec domain.DetailRecord) {
	if strings.TrimSpace(string(key)) == "" {
		return
	}
	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
}

func (s *Store) Remove(key domain.IMDbID) {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
}

// Clear 清空全部条目。
func (s *Store) Clear() {
	s.mu.Lock()
	s.records = make(map[domain.IMDbID]domain.DetailRecord)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

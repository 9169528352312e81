package storage

import (
	"context"
	"sort"
	"sync"

	"PRelay/module/chat/model"
	"PRelay/tools/errs"
)

// MemoryHistory 进程内历史存储（默认后端，也用于测试）
type MemoryHistory struct {
	mu     sync.RWMutex
	msgs   []model.Message
	closed bool
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (s *MemoryHistory) Append(ctx context.Context, msg model.Message) error {
	if err := ctx.Err(); err != nil {
		return errs.ErrStore.WrapMsg(err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errs.ErrStore.WrapMsg("store closed")
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *MemoryHistory) Query(ctx context.Context, username string, limit int) ([]model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.ErrStore.WrapMsg(err.Error())
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, errs.ErrStore.WrapMsg("store closed")
	}
	out := make([]model.Message, 0)
	for i := range s.msgs {
		if s.msgs[i].Involves(username) {
			out = append(out, s.msgs[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(&out[j]) })
	return latest(out, limit), nil
}

// Len 已保存条数
func (s *MemoryHistory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

func (s *MemoryHistory) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

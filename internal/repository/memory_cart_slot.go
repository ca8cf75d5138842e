package repository

import (
	"context"
	"sync"
)

// MemoryCartSlot 进程内槽位，用于 memory 存储驱动与测试
type MemoryCartSlot struct {
	mu       sync.RWMutex
	data     map[string][]byte
	writeErr error
}

// NewMemoryCartSlot 创建内存槽位
func NewMemoryCartSlot() *MemoryCartSlot {
	return &MemoryCartSlot{data: make(map[string][]byte)}
}

// Get 读取快照
func (s *MemoryCartSlot) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, true, nil
}

// Put 写入快照
func (s *MemoryCartSlot) Put(_ context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	stored := make([]byte, len(payload))
	copy(stored, payload)
	s.data[key] = stored
	return nil
}

// SetWriteError 设置写入错误（模拟存储配额耗尽等场景），传 nil 恢复
func (s *MemoryCartSlot) SetWriteError(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

// Raw 直接写入原始数据（可写入损坏数据）
func (s *MemoryCartSlot) Raw(key string, payload []byte) {
	s.mu.Lock()
	s.data[key] = payload
	s.mu.Unlock()
}

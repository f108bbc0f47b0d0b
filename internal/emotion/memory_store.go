package emotion

import (
	"context"
	"sort"
	"sync"

	"pointledger/internal/model"
)

// MemoryStore 进程内表情存储，事务串行执行
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byUser map[string][]*model.Emotion
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUser: make(map[string][]*model.Emotion)}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{store: s, removed: make(map[string]bool)}
	if err := fn(tx); err != nil {
		return err
	}

	for userID := range tx.removed {
		delete(s.byUser, userID)
	}
	for _, e := range tx.added {
		s.nextID++
		e.ID = s.nextID
		s.byUser[e.UserID] = append(s.byUser[e.UserID], e)
	}
	return nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*model.Emotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*model.Emotion, 0, len(s.byUser[userID]))
	for _, e := range s.byUser[userID] {
		copied := *e
		list = append(list, &copied)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Sort < list[j].Sort })
	return list, nil
}

type memoryTx struct {
	store   *MemoryStore
	removed map[string]bool
	added   []*model.Emotion
}

func (tx *memoryTx) RemoveUserEmotions(ctx context.Context, userID string) error {
	tx.removed[userID] = true
	kept := tx.added[:0]
	for _, e := range tx.added {
		if e.UserID != userID {
			kept = append(kept, e)
		}
	}
	tx.added = kept
	return nil
}

func (tx *memoryTx) Add(ctx context.Context, emotion *model.Emotion) error {
	copied := *emotion
	tx.added = append(tx.added, &copied)
	return nil
}

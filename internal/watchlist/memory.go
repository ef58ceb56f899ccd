package watchlist

import (
	"context"
	"sort"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps subscriptions in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[Subscriber]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[Subscriber]map[string]struct{})}
}

func (m *MemoryStore) Add(_ context.Context, sub Subscriber, coin string) (Outcome, error) {
	coin, err := NormalizeCoin(coin)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coins, ok := m.subs[sub]
	if !ok {
		coins = make(map[string]struct{})
		m.subs[sub] = coins
	}
	if _, exists := coins[coin]; exists {
		return AlreadyPresent, nil
	}
	coins[coin] = struct{}{}
	return Added, nil
}

func (m *MemoryStore) Remove(_ context.Context, sub Subscriber, coin string) (Outcome, error) {
	coin, err := NormalizeCoin(coin)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coins, ok := m.subs[sub]
	if !ok {
		return NotPresent, nil
	}
	if _, exists := coins[coin]; !exists {
		return NotPresent, nil
	}
	delete(coins, coin)
	if len(coins) == 0 {
		delete(m.subs, sub)
	}
	return Removed, nil
}

func (m *MemoryStore) ListCoins(_ context.Context, sub Subscriber) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedKeys(m.subs[sub]), nil
}

func (m *MemoryStore) ListAll(_ context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := make(Snapshot, len(m.subs))
	for sub, coins := range m.subs {
		if len(coins) == 0 {
			continue
		}
		snap[sub] = sortedKeys(coins)
	}
	return snap, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

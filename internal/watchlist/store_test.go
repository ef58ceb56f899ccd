package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "test"), mr
}

func stores(t *testing.T) map[string]Store {
	redisStore, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
}

func TestAddIsIdempotent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := store.Add(ctx, "42", "BTC")
			if err != nil {
				t.Fatalf("Add() error = %v", err)
			}
			second, err := store.Add(ctx, "42", " btc ")
			if err != nil {
				t.Fatalf("Add() error = %v", err)
			}

			if first != Added {
				t.Errorf("Expected first add to be %v, got %v", Added, first)
			}
			if second != AlreadyPresent {
				t.Errorf("Expected second add to be %v, got %v", AlreadyPresent, second)
			}

			coins, err := store.ListCoins(ctx, "42")
			if err != nil {
				t.Fatalf("ListCoins() error = %v", err)
			}
			if len(coins) != 1 || coins[0] != "btc" {
				t.Errorf("Expected [btc], got %v", coins)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			outcome, err := store.Remove(ctx, "42", "eth")
			if err != nil {
				t.Fatalf("Remove() on unknown subscriber error = %v", err)
			}
			if outcome != NotPresent {
				t.Errorf("Expected %v, got %v", NotPresent, outcome)
			}

			store.Add(ctx, "42", "eth")
			store.Add(ctx, "42", "btc")

			outcome, err = store.Remove(ctx, "42", "ETH")
			if err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			if outcome != Removed {
				t.Errorf("Expected %v, got %v", Removed, outcome)
			}

			outcome, _ = store.Remove(ctx, "42", "eth")
			if outcome != NotPresent {
				t.Errorf("Expected second remove to be %v, got %v", NotPresent, outcome)
			}
		})
	}
}

func TestListCoinsUnknownSubscriber(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			coins, err := store.ListCoins(context.Background(), "nobody")
			if err != nil {
				t.Fatalf("ListCoins() error = %v", err)
			}
			if coins == nil || len(coins) != 0 {
				t.Errorf("Expected empty non-nil slice, got %#v", coins)
			}
		})
	}
}

func TestListAllSkipsEmptySubscribers(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			store.Add(ctx, "1", "btc")
			store.Add(ctx, "1", "eth")
			store.Add(ctx, "2", "btc")
			store.Add(ctx, "3", "sol")
			store.Remove(ctx, "3", "sol")

			snap, err := store.ListAll(ctx)
			if err != nil {
				t.Fatalf("ListAll() error = %v", err)
			}

			if len(snap) != 2 {
				t.Fatalf("Expected 2 subscribers, got %d: %v", len(snap), snap)
			}
			if _, ok := snap["3"]; ok {
				t.Error("Expected subscriber with empty watchlist to be absent")
			}
			if got := snap["1"]; len(got) != 2 || got[0] != "btc" || got[1] != "eth" {
				t.Errorf("Expected [btc eth] for subscriber 1, got %v", got)
			}

			union := snap.Coins()
			if len(union) != 2 || union[0] != "btc" || union[1] != "eth" {
				t.Errorf("Expected union [btc eth], got %v", union)
			}
		})
	}
}

func TestInvalidCoin(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Add(context.Background(), "42", "   "); !errors.Is(err, ErrInvalidCoin) {
				t.Errorf("Expected ErrInvalidCoin, got %v", err)
			}
		})
	}
}

func TestConcurrentMutations(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			var mu sync.Mutex
			added := 0

			for i := 0; i < 20; i++ {
				wg.Add(2)
				go func() {
					defer wg.Done()
					outcome, err := store.Add(ctx, "42", "btc")
					if err != nil {
						t.Errorf("Add() error = %v", err)
						return
					}
					if outcome == Added {
						mu.Lock()
						added++
						mu.Unlock()
					}
				}()
				go func(i int) {
					defer wg.Done()
					store.Add(ctx, Subscriber(fmt.Sprintf("sub-%d", i)), "eth")
					if _, err := store.ListAll(ctx); err != nil {
						t.Errorf("ListAll() error = %v", err)
					}
				}(i)
			}
			wg.Wait()

			if added != 1 {
				t.Errorf("Expected exactly one Added outcome, got %d", added)
			}

			snap, err := store.ListAll(ctx)
			if err != nil {
				t.Fatalf("ListAll() error = %v", err)
			}
			if len(snap) != 21 {
				t.Errorf("Expected 21 subscribers, got %d", len(snap))
			}
			if coins := snap["42"]; len(coins) != 1 {
				t.Errorf("Expected no duplicate coins, got %v", coins)
			}
		})
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	ctx := context.Background()
	if _, err := store.ListAll(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("ListAll() expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.Add(ctx, "42", "btc"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Add() expected ErrStoreUnavailable, got %v", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Ping() expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRedisKeyLayout(t *testing.T) {
	store, mr := newRedisStore(t)
	store.Add(context.Background(), "42", "bitcoin")

	members, err := mr.SMembers("test:watchlist:42")
	if err != nil {
		t.Fatalf("Expected set under test:watchlist:42: %v", err)
	}
	if len(members) != 1 || members[0] != "bitcoin" {
		t.Errorf("Expected [bitcoin], got %v", members)
	}
}

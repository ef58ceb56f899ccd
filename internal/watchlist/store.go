package watchlist

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrStoreUnavailable wraps every infrastructure failure of a Store.
	ErrStoreUnavailable = errors.New("watchlist: store unavailable")
	ErrInvalidCoin      = errors.New("watchlist: empty coin symbol")
)

// Subscriber identifies a notification target (a chat id).
type Subscriber string

// Outcome reports the effect of a mutation. Duplicates and misses are
// outcomes, not errors.
type Outcome int

const (
	Added Outcome = iota + 1
	AlreadyPresent
	Removed
	NotPresent
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case AlreadyPresent:
		return "already_present"
	case Removed:
		return "removed"
	case NotPresent:
		return "not_present"
	default:
		return "unknown"
	}
}

// Snapshot maps each subscriber with at least one coin to its sorted coins.
type Snapshot map[Subscriber][]string

// Coins returns the sorted union of all coins in the snapshot.
func (s Snapshot) Coins() []string {
	seen := make(map[string]struct{})
	for _, coins := range s {
		for _, c := range coins {
			seen[c] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Store is the subscription store. Implementations must be safe for
// concurrent use.
type Store interface {
	Add(ctx context.Context, sub Subscriber, coin string) (Outcome, error)
	Remove(ctx context.Context, sub Subscriber, coin string) (Outcome, error)
	ListCoins(ctx context.Context, sub Subscriber) ([]string, error)
	ListAll(ctx context.Context) (Snapshot, error)
}

// NormalizeCoin lower-cases and trims a coin symbol.
func NormalizeCoin(coin string) (string, error) {
	coin = strings.ToLower(strings.TrimSpace(coin))
	if coin == "" {
		return "", ErrInvalidCoin
	}
	return coin, nil
}

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"agentric/internal/kv"
)

// Collection is one append-only record list stored as a JSON array under a fixed key.
type Collection[T Record] struct {
	key string
	kv  kv.KV
	mu  *sync.Mutex
}

func newCollection[T Record](key string, backend kv.KV, mu *sync.Mutex) *Collection[T] {
	return &Collection[T]{key: key, kv: backend, mu: mu}
}

// Key returns the storage key backing this collection.
func (c *Collection[T]) Key() string { return c.key }

// Append adds a record to the end of the collection.
func (c *Collection[T]) Append(ctx context.Context, rec T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load(ctx)
	if err != nil {
		return err
	}
	records = append(records, rec)
	return c.save(ctx, records)
}

// All returns every record in append order.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// ByMission returns the records of one mission sorted by timestamp ascending.
func (c *Collection[T]) ByMission(ctx context.Context, missionID string) ([]T, error) {
	out, err := c.filter(ctx, func(r T) bool { return r.Meta().MissionID == missionID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Meta().Timestamp.Before(out[j].Meta().Timestamp)
	})
	return out, nil
}

// ByAgent returns the records whose source is the named agent, in append order.
func (c *Collection[T]) ByAgent(ctx context.Context, agentName string) ([]T, error) {
	return c.filter(ctx, func(r T) bool { return r.Agent() == agentName })
}

func (c *Collection[T]) Len(ctx context.Context) (int, error) {
	records, err := c.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (c *Collection[T]) filter(ctx context.Context, keep func(T) bool) ([]T, error) {
	records, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// load must be called with mu held.
func (c *Collection[T]) load(ctx context.Context) ([]T, error) {
	raw, err := c.kv.Get(ctx, c.key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("load %s: %w", c.key, err)
	}
	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.key, err)
	}
	return records, nil
}

func (c *Collection[T]) save(ctx context.Context, records []T) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := c.kv.Set(ctx, c.key, raw); err != nil {
		return fmt.Errorf("save %s: %w", c.key, err)
	}
	return nil
}

// clear must be called with mu held.
func (c *Collection[T]) clear(ctx context.Context) error {
	if err := c.kv.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("clear %s: %w", c.key, err)
	}
	return nil
}

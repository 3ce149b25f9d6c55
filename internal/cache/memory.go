package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	memoryTTL = 30 * time.Minute

	// minMemoryBytes keeps the layer large enough for at least a handful
	// of entries regardless of the configured budget.
	minMemoryBytes = 1 << 20
)

// MemoryGateway fronts another gateway with an in-process ristretto cache,
// so repeated lookups within one session skip the network.
type MemoryGateway struct {
	inner Gateway
	c     *ristretto.Cache[string, []byte]
}

// NewMemoryGateway wraps inner with an in-process layer bounded to
// maxCostBytes of cached entries. Budgets below the floor are clamped:
// ristretto rejects zero counters or cost, and a cache too small for one
// entry is useless anyway.
func NewMemoryGateway(inner Gateway, maxCostBytes int64) (*MemoryGateway, error) {
	if maxCostBytes < minMemoryBytes {
		maxCostBytes = minMemoryBytes
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &MemoryGateway{inner: inner, c: c}, nil
}

// Lookup consults the in-process layer first, then the inner gateway. Inner
// hits populate the layer.
func (g *MemoryGateway) Lookup(ctx context.Context, key Key) (*Entry, bool, error) {
	if data, ok := g.c.Get(key.String()); ok {
		var entry Entry
		if err := json.Unmarshal(data, &entry); err == nil && !entry.Empty() {
			return &entry, true, nil
		}
		g.c.Del(key.String())
	}

	entry, ok, err := g.inner.Lookup(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	g.put(key, entry)
	return entry, true, nil
}

// Save writes through to the inner gateway and refreshes the layer.
func (g *MemoryGateway) Save(ctx context.Context, key Key, entry *Entry) error {
	g.put(key, entry)
	return g.inner.Save(ctx, key, entry)
}

// Close releases the ristretto resources.
func (g *MemoryGateway) Close() {
	g.c.Close()
}

func (g *MemoryGateway) put(key Key, entry *Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("WARNING: cache layer encode for %s failed: %v", key, err)
		return
	}
	g.c.SetWithTTL(key.String(), data, int64(len(data)), memoryTTL)
	g.c.Wait()
}

package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/memorix-dev/memorix-core/internal/atomicio"
	"github.com/memorix-dev/memorix-core/internal/idgen"
)

// MaxCacheEntries bounds both cache layers at 5,000 entries (spec §3, §4.E;
// Open Question in §9 decided in DESIGN.md: the on-disk layer shares the
// same cap and eviction order as the in-memory layer).
const MaxCacheEntries = 5000

// BatchSize is the provider-native batch width for uncached embedding
// requests (spec §4.E).
const BatchSize = 64

// entry is one in-memory cache slot, keeping insertion order for FIFO
// eviction.
type entry struct {
	key    string
	vector []float32
}

// fileEntry is the on-disk shape of one .embedding-cache.json row: a
// [hash, vector] 2-tuple (spec §6).
type fileEntry [2]json.RawMessage

// Cache is the two-layer embedding cache in front of a Provider (spec
// §4.E): an in-memory FIFO map, backed by an on-disk JSON array loaded once
// at provider start.
type Cache struct {
	provider Provider
	path     string

	mu    sync.Mutex
	order map[string]int
	fifo  []entry
	dirty bool

	// inflight collapses concurrent Embed calls for the same text into one
	// provider round-trip, since a cold-start embedding call can take
	// seconds (spec §4.E) and concurrent callers asking for the same text
	// gain nothing from running it twice.
	inflight singleflight.Group
}

// embedMaxElapsed bounds how long Embed retries a transient provider
// failure before giving up (mirrors the teacher's bounded backoff on
// transient storage errors).
const embedMaxElapsed = 10 * time.Second

// isRetryableEmbedError reports whether err looks like a transient provider
// failure (connection hiccup, timeout, rate limit, cold-start unavailability)
// worth retrying, versus a deterministic failure that retrying won't fix.
func isRetryableEmbedError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "timed out", "connection", "unavailable", "rate limit", "temporarily", "try again"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// NewCache loads path (if present) and wraps provider. Entries whose vector
// length disagrees with provider.Dimensions() are discarded on load (spec
// §6).
func NewCache(provider Provider, path string) (*Cache, error) {
	c := &Cache{provider: provider, path: path, order: map[string]int{}}
	if IsNull(provider) {
		return c, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is the engine's own data root
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("embedding: read cache %s: %w", path, err)
	}
	if len(data) == 0 {
		return c, nil
	}

	var rows []fileEntry
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("embedding: parse cache %s: %w", path, err)
	}

	dims := provider.Dimensions()
	for _, row := range rows {
		var key string
		var vec []float32
		if err := json.Unmarshal(row[0], &key); err != nil {
			continue
		}
		if err := json.Unmarshal(row[1], &vec); err != nil {
			continue
		}
		if len(vec) != dims {
			continue
		}
		c.put(key, vec)
	}
	return c, nil
}

func (c *Cache) put(key string, vector []float32) {
	if idx, ok := c.order[key]; ok {
		c.fifo[idx].vector = vector
		return
	}
	if len(c.fifo) >= MaxCacheEntries {
		evicted := c.fifo[0]
		c.fifo = c.fifo[1:]
		delete(c.order, evicted.key)
		for k, idx := range c.order {
			c.order[k] = idx - 1
		}
	}
	c.order[key] = len(c.fifo)
	c.fifo = append(c.fifo, entry{key: key, vector: vector})
}

func (c *Cache) get(key string) ([]float32, bool) {
	idx, ok := c.order[key]
	if !ok {
		return nil, false
	}
	return c.fifo[idx].vector, true
}

// Embed returns the cached vector for text if present, otherwise computes,
// caches, and returns it. Concurrent calls for the same text share one
// in-flight provider call (singleflight), and a transient provider failure
// is retried with bounded exponential backoff before giving up.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	if IsNull(c.provider) {
		return nil, nil
	}
	key := idgen.CacheKey(text)

	c.mu.Lock()
	v, ok := c.get(key)
	c.mu.Unlock()
	if ok {
		return v, nil
	}

	result, err, _ := c.inflight.Do(key, func() (any, error) {
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = embedMaxElapsed

		var vec []float32
		retryErr := backoff.Retry(func() error {
			out, embedErr := c.provider.Embed(ctx, text)
			if embedErr == nil {
				vec = out
				return nil
			}
			if !isRetryableEmbedError(embedErr) {
				return backoff.Permanent(embedErr)
			}
			return embedErr
		}, backoff.WithContext(bo, ctx))
		if retryErr != nil {
			return nil, retryErr
		}
		if len(vec) != c.provider.Dimensions() {
			return nil, fmt.Errorf("embedding: provider %s returned %d dims, want %d", c.provider.Name(), len(vec), c.provider.Dimensions())
		}

		c.mu.Lock()
		c.put(key, vec)
		c.dirty = true
		c.mu.Unlock()
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]float32), nil
}

// EmbedBatch computes only the uncached subset of texts, splitting the
// provider call into BatchSize chunks, and preserves input order in the
// result (spec §4.E). A zero-length input returns an empty result without
// calling the provider.
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if IsNull(c.provider) {
		return make([][]float32, len(texts)), nil
	}

	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string

	c.mu.Lock()
	for i, t := range texts {
		key := idgen.CacheKey(t)
		keys[i] = key
		if v, ok := c.get(key); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	c.mu.Unlock()

	for start := 0; start < len(missTexts); start += BatchSize {
		end := start + BatchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		vectors, err := c.provider.EmbedBatch(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		for j, v := range vectors {
			globalIdx := missIdx[start+j]
			if len(v) != c.provider.Dimensions() {
				c.mu.Unlock()
				return nil, fmt.Errorf("embedding: provider %s returned %d dims, want %d", c.provider.Name(), len(v), c.provider.Dimensions())
			}
			out[globalIdx] = v
			c.put(keys[globalIdx], v)
			c.dirty = true
		}
		c.mu.Unlock()
	}

	return out, nil
}

// Flush persists the cache to disk if dirty, truncated to MaxCacheEntries
// (it always is, by construction of put).
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty || IsNull(c.provider) {
		return nil
	}
	rows := make([]fileEntry, 0, len(c.fifo))
	for _, e := range c.fifo {
		keyJSON, err := json.Marshal(e.key)
		if err != nil {
			return err
		}
		vecJSON, err := json.Marshal(e.vector)
		if err != nil {
			return err
		}
		rows = append(rows, fileEntry{keyJSON, vecJSON})
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	if err := atomicio.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("embedding: write cache %s: %w", c.path, err)
	}
	c.dirty = false
	return nil
}

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/pipeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// KeyFunc derives a cache or deduplication key from an invocation
type KeyFunc func(inv *call.Invocation) (string, error)

// InputKey keys an invocation by its method followed by the JSON encoding of
// its input values. Context arguments are left out.
func InputKey(inv *call.Invocation) (string, error) {
	skip := inv.Method.ContextIndex()
	values := make([]any, 0, len(inv.Method.Params))
	for _, p := range inv.Method.Params {
		if p.Position == skip || !p.Direction.IsInput() {
			continue
		}
		values = append(values, inv.Args()[p.Position])
	}

	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode key of %s: %w", inv.Method, err)
	}
	return inv.Method.String() + ":" + string(data), nil
}

// TargetKey keys an invocation like InputKey, prefixed with the identity of
// its target: the address of a pointer-like target, or the type and value of
// any other. Invocations without a target get the plain InputKey.
func TargetKey(inv *call.Invocation) (string, error) {
	key, err := InputKey(inv)
	if err != nil || inv.Target == nil {
		return key, err
	}

	rv := reflect.ValueOf(inv.Target)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice, reflect.UnsafePointer:
		return fmt.Sprintf("%T@%#x/%s", inv.Target, rv.Pointer(), key), nil
	default:
		return fmt.Sprintf("%T(%v)/%s", inv.Target, inv.Target, key), nil
	}
}

// CacheEntry is a recorded successful outcome
type CacheEntry struct {
	Values  []any // non-error results
	Outputs []any // values of the Out and InOut parameters
}

// Cache stores outcomes by key
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
}

// Caching replays recorded outcomes for repeated inputs without calling the
// rest of the chain. Only successful outcomes are recorded.
type Caching struct {
	cache   Cache
	keyFunc KeyFunc
	logger  *slog.Logger
}

// NewCaching creates a caching handler keyed by TargetKey. A nil cache means
// a new MemoryCache without expiry.
func NewCaching(cache Cache) *Caching {
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	return &Caching{cache: cache, keyFunc: TargetKey}
}

// WithKeyFunc replaces the function deriving the cache key
func (h *Caching) WithKeyFunc(fn KeyFunc) *Caching {
	h.keyFunc = fn
	return h
}

// WithLogger sets the logger used to report cache errors
func (h *Caching) WithLogger(logger *slog.Logger) *Caching {
	h.logger = logger
	return h
}

// Invoke implements pipeline.Handler
func (h *Caching) Invoke(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
	if h.cache == nil {
		return getNext()(inv, getNext)
	}
	keyFunc := h.keyFunc
	if keyFunc == nil {
		keyFunc = TargetKey
	}

	key, err := keyFunc(inv)
	if err != nil {
		h.log().Warn("invocation not cacheable", "method", inv.Method.String(), "error", err)
		return getNext()(inv, getNext)
	}

	ctx := inv.Context()
	entry, found, err := h.cache.Get(ctx, key)
	if err != nil {
		return inv.CreateFailure(fmt.Errorf("cache get: %w", err))
	}
	if found {
		ret := inv.CreateReturn(entry.Values...)
		outputs := ret.Outputs()
		for i := 0; i < outputs.Len() && i < len(entry.Outputs); i++ {
			outputs.Set(i, entry.Outputs[i])
		}
		inv.Items().Set(ItemShortCircuitReason, "cache hit")
		return ret
	}

	ret := getNext()(inv, getNext)
	if ret.Failed() {
		return ret
	}

	entry = &CacheEntry{Values: ret.Values(), Outputs: ret.Outputs().Values()}
	if err := h.cache.Set(ctx, key, entry); err != nil {
		h.log().Warn("cache set failed", "method", inv.Method.String(), "error", err)
	}
	return ret
}

// Name implements pipeline.Handler
func (h *Caching) Name() string {
	return "CachingHandler"
}

func (h *Caching) log() *slog.Logger {
	if h.logger == nil {
		return slog.Default()
	}
	return h.logger
}

// MemoryCache is an in-process Cache. Entries older than the TTL are
// treated as missing; a zero TTL keeps them forever.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	entry   *CacheEntry
	expires time.Time
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get implements Cache
func (c *MemoryCache) Get(_ context.Context, key string) (*CacheEntry, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || (!e.expires.IsZero() && !c.now().Before(e.expires)) {
		return nil, false, nil
	}
	return e.entry, true, nil
}

// Set implements Cache
func (c *MemoryCache) Set(_ context.Context, key string, entry *CacheEntry) error {
	e := memoryEntry{entry: entry}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// IsDuplicate implements DuplicateDetector
func (c *MemoryCache) IsDuplicate(ctx context.Context, key string) (bool, error) {
	_, found, err := c.Get(ctx, key)
	return found, err
}

// MarkProcessed implements DuplicateDetector
func (c *MemoryCache) MarkProcessed(ctx context.Context, key string) error {
	return c.Set(ctx, key, &CacheEntry{})
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

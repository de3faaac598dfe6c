package memstore

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/namelessnanashi/census/lib/kv"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultGCInterval = 1 * time.Second // Default interval between GC runs
	defaultPageSize   = 1000            // Default number of keys per List page
)

// --------------------------------------------------------------------------
// Core store structure
// --------------------------------------------------------------------------

// entry stores a value with its expiration metadata
type entry struct {
	value    []byte
	expireAt int64 // unix epoch seconds, 0 = never
}

// expired reports whether the entry is expired at the given time
func (e entry) expired(now int64) bool {
	return e.expireAt != 0 && now >= e.expireAt
}

// storeImpl implements kv.IStore with an in-process concurrent map
type storeImpl struct {
	data        *xsync.MapOf[string, entry]
	pageSize    int
	gcInterval  time.Duration
	gcIsRunning atomic.Bool
	gcStop      chan struct{}
	now         func() time.Time
}

// Options configures the memstore behavior during initialization
type Options struct {
	PageSize   int           // Number of keys per List page (0 = use default)
	GCInterval time.Duration // Time between GC runs (0 = use default)
}

// DefaultOptions returns the default memstore options
func DefaultOptions() *Options {
	return &Options{
		PageSize:   defaultPageSize,
		GCInterval: defaultGCInterval,
	}
}

// New creates a new in-memory store instance with the specified options (optional).
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization. The returned store is safe for concurrent use.
func New(opts *Options) kv.IStore {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.GCInterval <= 0 {
		opts.GCInterval = defaultGCInterval
	}

	s := &storeImpl{
		data:       xsync.NewMapOf[string, entry](),
		pageSize:   opts.PageSize,
		gcInterval: opts.GCInterval,
		gcStop:     make(chan struct{}),
		now:        time.Now,
	}

	s.startGC()

	return s
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kv/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	e, ok := s.data.Load(key)
	if !ok || e.expired(s.now().Unix()) {
		return nil, false, nil
	}

	// copy so callers can't mutate the stored value
	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, true, nil
}

func (s *storeImpl) Put(key string, value []byte, opts kv.PutOptions) error {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	var expireAt int64
	if opts.TTLSeconds > 0 {
		expireAt = s.now().Unix() + int64(opts.TTLSeconds)
	}
	if opts.ExpireAt > 0 {
		expireAt = opts.ExpireAt
	}

	s.data.Store(key, entry{value: valueCopy, expireAt: expireAt})
	return nil
}

func (s *storeImpl) List(prefix, cursor string) (kv.Page, error) {
	now := s.now().Unix()

	// Collect matching keys. Range sees a possibly inconsistent snapshot of
	// concurrent writes, which is within the interface's consistency contract.
	var keys []string
	s.data.Range(func(key string, e entry) bool {
		if strings.HasPrefix(key, prefix) && !e.expired(now) {
			keys = append(keys, key)
		}
		return true
	})
	sort.Strings(keys)

	// The cursor is the last key of the previous page; resume strictly after it.
	start := 0
	if cursor != "" {
		start = sort.SearchStrings(keys, cursor)
		if start < len(keys) && keys[start] == cursor {
			start++
		}
	}

	end := start + s.pageSize
	if end > len(keys) {
		end = len(keys)
	}

	page := kv.Page{Keys: make([]kv.KeyInfo, 0, end-start)}
	for _, key := range keys[start:end] {
		page.Keys = append(page.Keys, kv.KeyInfo{Name: key})
	}
	if end < len(keys) {
		page.Cursor = keys[end-1]
	}
	return page, nil
}

func (s *storeImpl) Delete(key string) error {
	s.data.Delete(key)
	return nil
}

// Close stops the garbage collector. The store must not be used afterwards.
func (s *storeImpl) Close() error {
	s.stopGC()
	return nil
}

// --------------------------------------------------------------------------
// Garbage Collection
// --------------------------------------------------------------------------

// startGC starts the garbage collector.
// If the GC is already running, this function does nothing.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *storeImpl) startGC() {
	if s.gcIsRunning.CompareAndSwap(false, true) {
		go s.garbageCollector()
	}
}

// stopGC stops the garbage collector.
// The gc can't be started again after it has been stopped!
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *storeImpl) stopGC() {
	if s.gcIsRunning.CompareAndSwap(true, false) {
		close(s.gcStop)
	}
}

// garbageCollector is the main garbage collection loop. It periodically scans
// the map and removes expired entries. Expired entries that the collector has
// not reached yet are already invisible to Get and List, so the scan only
// reclaims memory, it does not affect visibility.
func (s *storeImpl) garbageCollector() {
	ticker := time.NewTicker(s.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			now := s.now().Unix()
			s.data.Range(func(key string, e entry) bool {
				if e.expired(now) {
					// double-check under Compute, the entry could have been
					// rewritten with a later expiration in the meantime
					s.data.Compute(key, func(curr entry, loaded bool) (entry, bool) {
						return curr, loaded && curr.expired(now)
					})
				}
				return true
			})
		}
	}
}

package census

import (
	"log/slog"
	"sync"
	"time"

	"github.com/namelessnanashi/census/lib/kv"
)

// --------------------------------------------------------------------------
// Retention Sweeper
// --------------------------------------------------------------------------

// Sweeper deletes counters older than the retention horizon. Per-key absolute
// expiration already bounds counter lifetime; the sweep is defense in depth
// that reclaims keys earlier than the natural expiration fires.
type Sweeper struct {
	store  kv.IStore
	config *Config
	logger *slog.Logger
	now    func() time.Time
}

// NewSweeper creates a sweeper operating on the given store.
func NewSweeper(store kv.IStore, config *Config) *Sweeper {
	return &Sweeper{
		store:  store,
		config: config,
		logger: slog.With("component", "sweeper"),
		now:    time.Now,
	}
}

// MaybeSweep runs the retention sweep at most once per UTC day, best-effort.
// It is invoked opportunistically from request handling in a detached
// goroutine; nothing it does may become observable to the requester, so every
// error is logged and discarded. The return value reports whether a sweep
// pass actually started, so callers can count sweeps.
//
// The marker is written before the sweep work to bound concurrent duplicate
// sweeps. It is not a lock: two invocations on the same day can both pass the
// check before either writes. Deletes are idempotent, so a duplicate sweep is
// harmless, and that tolerance is deliberate.
func (s *Sweeper) MaybeSweep() bool {
	today := DayOf(s.now())

	value, loaded, err := s.store.Get(MarkerKey)
	if err != nil {
		s.logger.Debug("sweep marker read failed, skipping sweep", "err", err)
		return false
	}
	if loaded && Day(value) == today {
		return false // already ran today
	}

	err = s.store.Put(MarkerKey, []byte(today), kv.PutOptions{
		TTLSeconds: uint64(s.config.MarkerTTL / time.Second),
	})
	if err != nil {
		s.logger.Debug("sweep marker write failed, skipping sweep", "err", err)
		return false
	}

	cutoff := today.AddDays(-s.config.RetentionDays)
	s.logger.Info("starting retention sweep", "cutoff", string(cutoff))

	deleted := 0
	err = forEachPage(s.store, CountPrefix, func(keys []kv.KeyInfo) {
		var wg sync.WaitGroup
		for _, key := range keys {
			ck, err := ParseCountKey(key.Name)
			if err != nil || !ck.Day.Before(cutoff) {
				continue
			}

			deleted++
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				if err := s.store.Delete(name); err != nil {
					s.logger.Debug("sweep delete failed", "key", name, "err", err)
				}
			}(key.Name)
		}
		wg.Wait()
	})
	if err != nil {
		s.logger.Debug("sweep listing failed, aborting sweep", "err", err)
		return true
	}

	s.logger.Info("retention sweep finished", "deleted", deleted)
	return true
}

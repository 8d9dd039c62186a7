package catstatus

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/always-cache/catstatus/cache"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long an image stays cached after it was fetched.
const DefaultTTL = 10 * time.Minute

// ErrClosed is returned by an ImageCache that has been closed.
var ErrClosed = errors.New("image cache closed")

type ImageCacheConfig struct {
	// Storage for cached images. A new MemStore is used if nil.
	// The image cache takes ownership and closes it on Close.
	Store cache.Store
	// Source of images on cache misses. Required.
	Provider ImageProvider
	// Time to keep an image before evicting it. DefaultTTL if zero.
	TTL time.Duration
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// ImageCache is a fetch-through cache of status code images.
// Misses for the same code are coalesced into one upstream fetch.
// Every stored image has exactly one eviction timer, armed when it was stored.
type ImageCache struct {
	store    cache.Store
	provider ImageProvider
	ttl      time.Duration
	log      zerolog.Logger
	flights  singleflight.Group

	mu     sync.Mutex
	timers map[int]*evictionTimer
	closed bool
}

type evictionTimer struct {
	t *time.Timer
}

// flightResult is the result of a single flight.
type flightResult struct {
	bytes []byte
	// hit is true if the image was stored by an earlier flight
	hit bool
}

// NewImageCache creates the image cache.
// Close must be called to stop pending eviction timers.
func NewImageCache(config ImageCacheConfig) (*ImageCache, error) {
	if config.Provider == nil {
		return nil, errors.New("image cache needs a provider")
	}
	store := config.Store
	if store == nil {
		store = cache.NewMemStore()
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}
	return &ImageCache{
		store:    store,
		provider: config.Provider,
		ttl:      ttl,
		log:      logger.With().Str("component", "image-cache").Logger(),
		timers:   make(map[int]*evictionTimer),
	}, nil
}

// GetOrFetch returns the image for code, fetching and storing it on a miss.
// The returned slice belongs to the caller.
// If the image cannot be fetched, the error is a *FetchError and nothing is cached.
func (c *ImageCache) GetOrFetch(ctx context.Context, code int) ([]byte, CacheStatus, error) {
	var cs CacheStatus
	if c.isClosed() {
		return nil, cs, ErrClosed
	}
	logger := loggerFrom(ctx, &c.log).With().Int("status", code).Logger()

	if b, ok, err := c.store.Get(code); err != nil {
		logger.Warn().Err(err).Msg("Could not read from cache, fetching instead")
	} else if ok {
		logger.Trace().Msg("Cache hit")
		cs.Hit()
		return b, cs, nil
	}

	leader := false
	v, err, _ := c.flights.Do(strconv.Itoa(code), func() (interface{}, error) {
		leader = true
		return c.fill(context.WithoutCancel(ctx), code, &logger)
	})
	if err != nil {
		cs.Forward(CacheStatusFwdMiss)
		return nil, cs, err
	}
	f := v.(flightResult)
	switch {
	case f.hit:
		cs.Hit()
	case leader:
		cs.Forward(CacheStatusFwdMiss)
		cs.Stored()
	default:
		cs.Forward(CacheStatusFwdShared)
	}
	// waiters of the same flight share f.bytes
	return bytes.Clone(f.bytes), cs, nil
}

// fill runs once per flight. It checks the store again, since an earlier
// flight may have stored the image after our lookup.
func (c *ImageCache) fill(ctx context.Context, code int, logger *zerolog.Logger) (flightResult, error) {
	if b, ok, err := c.store.Get(code); err == nil && ok {
		return flightResult{bytes: b, hit: true}, nil
	}

	logger.Trace().Msg("Cache miss, fetching image")
	b, err := c.provider.Fetch(ctx, code)
	if err != nil {
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			err = &FetchError{Code: code, Err: err}
		}
		logger.Error().Err(err).Msg("Could not fetch image")
		return flightResult{}, err
	}
	if b == nil {
		b = []byte{}
	}

	if err := c.insert(code, b); err != nil {
		logger.Error().Err(err).Msg("Could not store image")
		return flightResult{}, err
	}
	logger.Debug().Int("bytes", len(b)).Dur("ttl", c.ttl).Msg("Stored image")
	return flightResult{bytes: b}, nil
}

// insert stores the image and arms its eviction timer.
func (c *ImageCache) insert(code int, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.store.Put(code, b); err != nil {
		return err
	}
	if old, ok := c.timers[code]; ok {
		old.t.Stop()
	}
	e := &evictionTimer{}
	e.t = time.AfterFunc(c.ttl, func() { c.evict(code, e) })
	c.timers[code] = e
	return nil
}

// evict is the timer callback. It does nothing if e has been replaced or cancelled.
func (c *ImageCache) evict(code int, e *evictionTimer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.timers[code] != e {
		return
	}
	delete(c.timers, code)
	if err := c.store.Purge(code); err != nil {
		c.log.Error().Err(err).Int("status", code).Msg("Could not evict image")
		return
	}
	c.log.Trace().Int("status", code).Msg("Evicted image")
}

// Remove evicts the image for code before its time and cancels its timer.
// It reports whether an image was cached.
func (c *ImageCache) Remove(code int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	e, ok := c.timers[code]
	if !ok {
		return false
	}
	e.t.Stop()
	delete(c.timers, code)
	if err := c.store.Purge(code); err != nil {
		c.log.Error().Err(err).Int("status", code).Msg("Could not remove image")
	}
	return true
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	n, err := c.store.Len()
	if err != nil {
		c.log.Error().Err(err).Msg("Could not count cached images")
		return 0
	}
	return n
}

// Close stops all eviction timers and releases the store.
// It is safe to call more than once.
func (c *ImageCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for code, e := range c.timers {
		e.t.Stop()
		delete(c.timers, code)
	}
	return c.store.Close()
}

func (c *ImageCache) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

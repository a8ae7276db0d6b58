package model

import (
	"time"

	"github.com/maypok86/otter/v2"
)

// Generational is implemented by predictors whose model can be swapped.
// Generation must change whenever the model does.
type Generational interface {
	Generation() uint64
}

type cacheKey struct {
	gen uint64
	f   Features
}

// Cache memoizes a deterministic Predictor by feature vector. Errors are not
// cached, so a failed inference is attempted again on the next call. When the
// wrapped predictor is Generational, entries are keyed by its generation too,
// so an inference that straddles a model swap cannot be served afterwards.
type Cache struct {
	next  Predictor
	cache *otter.Cache[cacheKey, time.Duration]
}

// NewCache wraps next with a cache of at most size entries.
func NewCache(next Predictor, size int) *Cache {
	return &Cache{
		next: next,
		cache: otter.Must(&otter.Options[cacheKey, time.Duration]{
			MaximumSize: size,
		}),
	}
}

func (c *Cache) Predict(f Features) (time.Duration, error) {
	// The generation is read before inference, so a result can only be
	// stored under a generation at least as old as the model that produced it.
	key := cacheKey{f: f}
	if g, ok := c.next.(Generational); ok {
		key.gen = g.Generation()
	}
	if d, ok := c.cache.GetIfPresent(key); ok {
		return d, nil
	}
	d, err := c.next.Predict(f)
	if err != nil {
		return 0, err
	}
	c.cache.Set(key, d)
	return d, nil
}

// Purge drops every cached prediction, releasing entries of older generations.
func (c *Cache) Purge() {
	c.cache.InvalidateAll()
}

// Len returns the approximate number of cached predictions.
func (c *Cache) Len() int {
	return c.cache.EstimatedSize()
}

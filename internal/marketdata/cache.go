package marketdata

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const snapshotKey = "snapshot"

// CachedSource keeps the last snapshot of an underlying Source for ttl.
type CachedSource struct {
	src   Source
	cache *cache.Cache
	ttl   time.Duration
	log   *logrus.Logger
}

func NewCachedSource(src Source, ttl time.Duration, log *logrus.Logger) *CachedSource {
	return &CachedSource{
		src:   src,
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
		log:   log,
	}
}

func (c *CachedSource) FetchQuotes(ctx context.Context) ([]Quote, error) {
	if v, ok := c.cache.Get(snapshotKey); ok {
		return v.([]Quote), nil
	}
	quotes, err := c.src.FetchQuotes(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(snapshotKey, quotes, c.ttl)
	c.log.Debugf("quote snapshot cached (%d symbols)", len(quotes))
	return quotes, nil
}

// Invalidate drops the cached snapshot.
func (c *CachedSource) Invalidate() {
	c.cache.Delete(snapshotKey)
}

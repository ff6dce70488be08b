package validate

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoizes verdicts of an inner Validator. Compilation of a fixed
// (artifact, candidate, top) triple is deterministic, so a repeated
// artifact (the oracle often regenerates the same text) skips the
// compiler. Faults are never cached.
type Cached struct {
	inner Validator
	cache *lru.Cache[string, Result]
}

// NewCached wraps inner with an LRU of at most size entries.
func NewCached(inner Validator, size int) (*Cached, error) {
	if size <= 0 {
		size = 128
	}
	c, err := lru.New[string, Result](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: c}, nil
}

func (c *Cached) Validate(ctx context.Context, artifact, candidate, top string) (Result, error) {
	key := cacheKey(artifact, candidate, top)
	if r, ok := c.cache.Get(key); ok {
		return r, nil
	}
	r, err := c.inner.Validate(ctx, artifact, candidate, top)
	if err != nil {
		return r, err
	}
	c.cache.Add(key, r)
	return r, nil
}

// Len reports the number of cached verdicts.
func (c *Cached) Len() int { return c.cache.Len() }

func cacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		// Length prefix keeps ("ab","c") and ("a","bc") apart.
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Package cache stores downloaded templates keyed by a hash of their source
// descriptor.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultTTL is how long a cached template is trusted without revalidation.
const DefaultTTL = time.Hour

// Entry is one cached template.
type Entry struct {
	TemplateBytes []byte
	CachedAt      time.Time
	ETag          string
	LastModified  string
}

// HasValidators reports whether the entry can be revalidated conditionally.
func (e *Entry) HasValidators() bool {
	return e.ETag != "" || e.LastModified != ""
}

// Store persists entries. Get reports a miss with ok == false and a nil
// error.
type Store interface {
	Get(ctx context.Context, key string) (entry *Entry, ok bool, err error)
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// GenerateKey returns the hex SHA-256 of a template descriptor.
func GenerateKey(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

func encodeEntry(e *Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &e, nil
}

// TemplateCache applies the time-to-live on top of a Store.
type TemplateCache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// New returns a cache over store. A non-positive ttl uses DefaultTTL.
func New(store Store, ttl time.Duration) *TemplateCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TemplateCache{store: store, ttl: ttl, now: time.Now}
}

// TTL returns the configured time-to-live.
func (c *TemplateCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the entry for key when it exists and is younger than the TTL.
func (c *TemplateCache) Get(ctx context.Context, key string) (*Entry, bool, error) {
	e, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if c.now().Sub(e.CachedAt) > c.ttl {
		return nil, false, nil
	}
	return e, true, nil
}

// Put stores template bytes and validators under key, stamped with the
// current time.
func (c *TemplateCache) Put(ctx context.Context, key string, data []byte, etag, lastModified string) error {
	return c.store.Set(ctx, key, &Entry{
		TemplateBytes: data,
		CachedAt:      c.now(),
		ETag:          etag,
		LastModified:  lastModified,
	}, c.ttl)
}

// Clear removes every cached template.
func (c *TemplateCache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

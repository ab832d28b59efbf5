package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "machines:"
	scanPattern = keyPrefix + "*"
	scanCount   = 100
)

// ListingCache stores rendered listing query responses in Redis. A nil
// *ListingCache, or one built without a client, caches nothing.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewListingCache(client *redis.Client, ttl time.Duration) *ListingCache {
	return &ListingCache{client: client, ttl: ttl}
}

func (c *ListingCache) enabled() bool {
	return c != nil && c.client != nil
}

// Key derives a stable cache key from a query string: parameter order and
// value order do not matter.
func Key(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		values := append([]string(nil), query[key]...)
		sort.Strings(values)
		for _, val := range values {
			sb.WriteString(key)
			sb.WriteString("=")
			sb.WriteString(val)
			sb.WriteString("&")
		}
	}
	rawKey := strings.TrimSuffix(sb.String(), "&")

	sum := sha256.Sum256([]byte(rawKey))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached body for key and whether it was found. Redis
// errors count as a miss.
func (c *ListingCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.enabled() {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("Error retrieving from Redis cache for key %s: %v", key, err)
		}
		return nil, false
	}
	log.Printf("Cache Hit for key: %s", key)
	return data, true
}

func (c *ListingCache) Set(ctx context.Context, key string, body []byte) {
	if !c.enabled() {
		return
	}
	if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
		log.Printf("Error setting cache for key %s: %v", key, err)
	}
}

// Invalidate deletes every cached listing response.
func (c *ListingCache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}

	var (
		keysToDelete []string
		cursor       uint64
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, scanPattern, scanCount).Result()
		if err != nil {
			log.Printf("Error during Redis SCAN for pattern '%s': %v", scanPattern, err)
			return
		}
		keysToDelete = append(keysToDelete, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keysToDelete) == 0 {
		return
	}

	pipe := c.client.Pipeline()
	for _, key := range keysToDelete {
		pipe.Del(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("Error executing Redis pipeline for cache invalidation: %v", err)
		return
	}
	log.Printf("Listing cache invalidated, deleted %d keys", len(keysToDelete))
}

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// NATSKV adapts a jetstream.KeyValue bucket to the DurableKV interface,
// serving as tier-2 for the Discovery Cache and, separately, as the
// durable task table backing store for the Agent Task Substrate (C6).
type NATSKV struct {
	bucket jetstream.KeyValue
}

// NewNATSKV wraps an already-created KV bucket (see embedded.Manager /
// messaging.Client for bucket provisioning).
func NewNATSKV(bucket jetstream.KeyValue) *NATSKV {
	return &NATSKV{bucket: bucket}
}

// Get implements DurableKV.
func (n *NATSKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := n.bucket.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

// Put implements DurableKV. TTL is informational here: the bucket itself
// may be configured with a matching bucket-level TTL; per-key expiry is
// additionally enforced by the caller (Cache.Get checks CachedDiscoveryResult.Expired).
func (n *NATSKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := n.bucket.Put(ctx, key, value)
	return err
}

// Delete implements DurableKV.
func (n *NATSKV) Delete(ctx context.Context, key string) error {
	return n.bucket.Delete(ctx, key)
}

// ScanByStatus lists keys matching a status prefix convention used by the
// task substrate (keys are stored as "<status>/<task_id>").
func (n *NATSKV) ScanByStatus(ctx context.Context, status string) ([]string, error) {
	lister, err := n.bucket.ListKeysFiltered(ctx, status+".")
	if err != nil {
		return nil, err
	}
	var keys []string
	for k := range lister.Keys() {
		keys = append(keys, k)
	}
	return keys, nil
}

// ScanOlderThan lists all keys and lets the caller filter by decoded
// timestamp; the KV API has no native time-range scan, so the task
// substrate's opportunistic purge decodes each entry's FinishedAt field.
func (n *NATSKV) ScanOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	lister, err := n.bucket.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	var keys []string
	for k := range lister.Keys() {
		keys = append(keys, k)
	}
	return keys, nil
}

// Package cache holds the cached product snapshot and decides when it is
// fresh enough to serve.
//
// Two keys make up the record:
//
//   - catalog:snapshot   - serialized JSON array of products
//   - catalog:last_write - Unix milliseconds of the last confirmed reconciliation
//
// Neither key carries a TTL. Expiry is a read-time check:
//
//	rec, err := manager.Load(ctx)
//	if err != nil {
//		return err // store unavailable
//	}
//	if rec.IsFresh(time.Now(), cfg.CacheExpirationMinutes) {
//		return rec.Snapshot, nil
//	}
//	// reconcile, then SaveSnapshot (if changed) and Touch
//
// A missing or corrupt snapshot, or a malformed timestamp, loads as absent
// and simply forces a reconciliation.
//
// # Metrics
//
//   - catalog_cache_hits_total
//   - catalog_cache_misses_total{reason}
//   - catalog_snapshot_size_bytes
//   - catalog_cache_errors_total{operation}
package cache

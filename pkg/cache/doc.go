// Package cache provides two in-memory caches.
//
// LRUCache is a bounded, thread-safe map with least-recently-used eviction
// and an eviction callback. The API server keeps one client runtime per
// browser in it and closes runtimes as they fall out:
//
//	runtimes := cache.NewLRUCache[string, *client.Runtime](1024)
//	runtimes.SetEvictCallback(func(_ string, rt *client.Runtime) { _ = rt.Close() })
//	rt, created, err := runtimes.GetOrCreate(id, newRuntime)
//
// TTLValue memoizes one loaded value for a fixed duration, collapsing
// concurrent misses into a single load. The price lookup uses it with a
// five-minute TTL.
package cache

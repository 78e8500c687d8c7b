// Package ratelimit throttles requests per key with golang.org/x/time/rate
// token buckets kept in a bounded LRU.
package ratelimit

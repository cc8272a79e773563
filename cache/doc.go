// Package cache provides a Redis cache-aside decorator for
// [authcore.PrincipalStore]. Login does one principal read per attempt; with
// the decorator in front, repeat reads within the TTL hit Redis instead of
// the relational store.
//
// Mutations write through to the backing store and invalidate the cached
// entry, so a status or secret change is visible no later than the next
// read. A Redis outage degrades to the backing store; the decorator never
// fails a read the backing store could have served.
package cache

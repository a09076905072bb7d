// Package store provides shard.Store implementations: an in-memory store for
// tests, a local-filesystem store, and two decorators (compression and rate
// limiting) that wrap any Store. Cloud-backed implementations live in the
// store/s3 and store/minio subpackages so their SDK dependencies stay out of
// this package's import graph.
package store

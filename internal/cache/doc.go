// Package cache defines the durable store holding mirrored artifacts in two
// disjoint namespaces: serialized directory listings and highlighted file
// output. Keys are hashed before touching the backend so arbitrary upstream
// URLs can never escape the storage root, and writes are atomic (temp file +
// rename on disk, transactions on badger) so a reader never observes a partial
// payload. The freshness predicate lives here as well; callers treat any
// storage failure as a cache miss, never as a request failure.
package cache

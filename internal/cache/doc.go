// Package cache stores expensive pipeline products, synthesized
// narration and generated artwork, in a two-level cache: an in-memory
// LRU in front of a compressed on-disk store that survives runs.
package cache

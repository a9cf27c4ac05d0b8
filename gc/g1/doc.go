// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package g1 implements the write-barrier layer of a region-based,
// incrementally-concurrent garbage collector.
//
// Every reference store performed by mutator code is bracketed by two
// pieces of bookkeeping:
//
// The pre-write barrier implements snapshot-at-the-beginning (SATB)
// marking. While a marking cycle is active, the value about to be
// overwritten is captured into a per-thread buffer so that a concurrent
// mark started before the mutation still observes a consistent object
// graph. Null values are filtered at the call site and stores into
// freshly allocated, uninitialized memory are skipped entirely.
//
// The post-write barrier maintains a card-granularity remembered set.
// The heap is summarized by a byte-per-card table; a store dirties the
// destination's card and enqueues the card into a per-thread buffer so
// that partial collections need only rescan dirty cards. Cards in the
// young region are exempt: that region is rescanned unconditionally.
//
// Both barriers have a wait-free fast path against a buffer owned
// exclusively by the calling thread. A full buffer is handed off,
// intact, to a shared queue set and replaced; background collector
// threads drain the queue sets. Callers without a dedicated buffer
// (internal worker threads) use a shared queue guarded by the queue
// set's lock. The sole ordering primitive in the layer is one
// store-load fence per clean-to-dirty card transition, which guarantees
// that a concurrent card scanner never observes a dirty card before the
// pointer store that dirtied it is visible.
package g1

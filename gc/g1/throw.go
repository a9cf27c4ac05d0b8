// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package g1

// debugQueue enables expensive consistency checks on the queue
// machinery. Cheap invariant checks are unconditional.
const debugQueue = false

// throw reports a violated contract. Nothing in this layer fails in
// the recoverable sense; a throw is a programming defect at a call
// site, not a runtime condition.
func throw(s string) {
	panic("g1: " + s)
}

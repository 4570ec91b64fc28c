// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

// LockCount reports how many per-pool locks are currently allocated.
func (e *Engine) LockCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pools)
}

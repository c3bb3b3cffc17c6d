package core

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// LockMode is the two-mode lock a transaction may hold on a page.
type LockMode int

const (
	Shared LockMode = iota
	Exclusive
)

type lockEntry struct {
	tid  TxID
	mode LockMode
}

// LockManager is a per-PageID lock table plus a waits-for graph that is
// updated each time an acquire has to wait and cleared for a transaction
// once it acquires, implementing spec.md §4.3's acquire/deadlock protocol.
type LockManager struct {
	cfg Config

	mu       sync.Mutex
	locks    map[string][]lockEntry
	waitsFor map[string]map[string]bool // tid.String() -> set of tid.String() it waits on
}

func NewLockManager(cfg Config) *LockManager {
	return &LockManager{
		cfg:      cfg,
		locks:    make(map[string][]lockEntry),
		waitsFor: make(map[string]map[string]bool),
	}
}

func holds(entries []lockEntry, tid TxID, mode LockMode) bool {
	for _, e := range entries {
		if e.tid.Equal(tid) && e.mode == mode {
			return true
		}
	}
	return false
}

// Acquire blocks (sleeping with randomized back-off) until tid holds mode
// on pid, or returns ErrDeadlockAborted / ErrTimeoutAborted.
func (lm *LockManager) Acquire(tid TxID, pid PageID, mode LockMode) error {
	key := pid.Key()

	for attempt := 0; ; attempt++ {
		lm.mu.Lock()
		entries := lm.locks[key]

		if holds(entries, tid, mode) {
			lm.clearOutEdges(tid)
			lm.mu.Unlock()
			return nil
		}
		if mode == Shared && holds(entries, tid, Exclusive) {
			lm.clearOutEdges(tid)
			lm.mu.Unlock()
			return nil
		}

		switch {
		case len(entries) == 0:
			lm.locks[key] = append(entries, lockEntry{tid: tid, mode: mode})
			lm.clearOutEdges(tid)
			lm.mu.Unlock()
			return nil
		case mode == Shared && allShared(entries):
			lm.locks[key] = append(entries, lockEntry{tid: tid, mode: mode})
			lm.clearOutEdges(tid)
			lm.mu.Unlock()
			return nil
		case mode == Exclusive && len(entries) == 1 && entries[0].tid.Equal(tid) && entries[0].mode == Shared:
			lm.locks[key] = []lockEntry{{tid: tid, mode: Exclusive}}
			lm.clearOutEdges(tid)
			lm.mu.Unlock()
			return nil
		default:
			holders := make(map[string]bool)
			for _, e := range entries {
				if !e.tid.Equal(tid) {
					holders[e.tid.String()] = true
				}
			}
			lm.waitsFor[tid.String()] = holders
			lm.mu.Unlock()
		}

		if attempt == 1 {
			lm.mu.Lock()
			deadlocked := lm.detectDeadlock(tid)
			lm.mu.Unlock()
			if deadlocked {
				lm.Release(tid, pid)
				return fmt.Errorf("acquire %s on %s by tid %x: %w", mode, key, tid.Bytes()[:4], ErrDeadlockAborted)
			}
		}
		if attempt >= lm.cfg.LockRetryLimit {
			lm.Release(tid, pid)
			return fmt.Errorf("acquire %s on %s by tid %x: %w", mode, key, tid.Bytes()[:4], ErrTimeoutAborted)
		}

		backoff := lm.cfg.LockRetryMin
		span := lm.cfg.LockRetryMax - lm.cfg.LockRetryMin
		if span > 0 {
			backoff += time.Duration(rand.Int63n(int64(span)))
		}
		time.Sleep(backoff)
	}
}

func allShared(entries []lockEntry) bool {
	for _, e := range entries {
		if e.mode != Shared {
			return false
		}
	}
	return true
}

// clearOutEdges drops tid's out-edges from the waits-for graph; called on
// every successful acquire.
func (lm *LockManager) clearOutEdges(tid TxID) {
	delete(lm.waitsFor, tid.String())
}

// detectDeadlock repeatedly removes zero-in-degree nodes from a snapshot of
// the waits-for graph; if any node survives, a cycle exists. Called under
// lm.mu.
func (lm *LockManager) detectDeadlock(tid TxID) bool {
	inDegree := make(map[string]int)
	nodes := make(map[string]bool)
	for from, tos := range lm.waitsFor {
		nodes[from] = true
		for to := range tos {
			nodes[to] = true
			inDegree[to]++
		}
	}

	graph := make(map[string]map[string]bool, len(lm.waitsFor))
	for from, tos := range lm.waitsFor {
		cp := make(map[string]bool, len(tos))
		for to := range tos {
			cp[to] = true
		}
		graph[from] = cp
	}

	changed := true
	for changed {
		changed = false
		for n := range nodes {
			if !nodes[n] {
				continue
			}
			if inDegree[n] != 0 {
				continue
			}
			for to := range graph[n] {
				inDegree[to]--
			}
			delete(graph, n)
			delete(nodes, n)
			changed = true
		}
	}

	for n := range nodes {
		if n == tid.String() || len(graph[n]) > 0 || inDegree[n] > 0 {
			return true
		}
	}
	return false
}

// Release drops every lock entry tid holds on pid.
func (lm *LockManager) Release(tid TxID, pid PageID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	key := pid.Key()
	entries := lm.locks[key]
	kept := entries[:0]
	for _, e := range entries {
		if !e.tid.Equal(tid) {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(lm.locks, key)
	} else {
		lm.locks[key] = kept
	}
}

func (lm *LockManager) HoldsLock(tid TxID, pid PageID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for _, e := range lm.locks[pid.Key()] {
		if e.tid.Equal(tid) {
			return true
		}
	}
	return false
}

func (lm *LockManager) HoldsAnyLock(pid PageID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.locks[pid.Key()]) > 0
}

func (m LockMode) String() string {
	if m == Shared {
		return "S"
	}
	return "X"
}

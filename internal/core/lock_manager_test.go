package core

import (
	"errors"
	"testing"
	"time"
)

func TestLockManager_SharedLocksCoexist(t *testing.T) {
	lm := NewLockManager(DefaultConfig())
	pid := NewHeapPageID(1, 0)
	a, b := NewTxID(), NewTxID()

	if err := lm.Acquire(a, pid, Shared); err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	if err := lm.Acquire(b, pid, Shared); err != nil {
		t.Fatalf("acquire b: %v", err)
	}
}

func TestLockManager_ExclusiveExcludesOthers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LockRetryLimit = 1
	cfg.LockRetryMin = time.Millisecond
	cfg.LockRetryMax = 2 * time.Millisecond
	lm := NewLockManager(cfg)
	pid := NewHeapPageID(1, 0)
	a, b := NewTxID(), NewTxID()

	if err := lm.Acquire(a, pid, Exclusive); err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	err := lm.Acquire(b, pid, Shared)
	if !errors.Is(err, ErrTimeoutAborted) {
		t.Fatalf("expected ErrTimeoutAborted, got %v", err)
	}
}

func TestLockManager_UpgradeSharedToExclusive(t *testing.T) {
	lm := NewLockManager(DefaultConfig())
	pid := NewHeapPageID(1, 0)
	a := NewTxID()

	if err := lm.Acquire(a, pid, Shared); err != nil {
		t.Fatalf("acquire shared: %v", err)
	}
	if err := lm.Acquire(a, pid, Exclusive); err != nil {
		t.Fatalf("upgrade to exclusive: %v", err)
	}
	if !lm.HoldsLock(a, pid) {
		t.Fatal("expected a to hold the lock after upgrade")
	}
}

func TestLockManager_DeadlockDetected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LockRetryMin = time.Millisecond
	cfg.LockRetryMax = 2 * time.Millisecond
	lm := NewLockManager(cfg)
	p1 := NewHeapPageID(1, 0)
	p2 := NewHeapPageID(1, 1)
	a, b := NewTxID(), NewTxID()

	if err := lm.Acquire(a, p1, Exclusive); err != nil {
		t.Fatalf("a acquires p1: %v", err)
	}
	if err := lm.Acquire(b, p2, Exclusive); err != nil {
		t.Fatalf("b acquires p2: %v", err)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- lm.Acquire(a, p2, Exclusive) }()
	go func() { errCh <- lm.Acquire(b, p1, Exclusive) }()

	first := <-errCh
	second := <-errCh
	if first == nil && second == nil {
		t.Fatal("expected at least one acquirer to report a deadlock or timeout")
	}
}

func TestLockManager_Release(t *testing.T) {
	lm := NewLockManager(DefaultConfig())
	pid := NewHeapPageID(1, 0)
	a := NewTxID()
	if err := lm.Acquire(a, pid, Exclusive); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	lm.Release(a, pid)
	if lm.HoldsLock(a, pid) {
		t.Fatal("expected lock released")
	}
	if lm.HoldsAnyLock(pid) {
		t.Fatal("expected no locks held after release")
	}
}

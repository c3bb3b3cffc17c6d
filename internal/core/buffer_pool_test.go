package core

import "testing"

func smallPoolEnv(t *testing.T, poolCapacity int) (*HeapFile, *TupleDesc, *BufferPool) {
	t.Helper()
	hf, desc := newTestHeapFile(t)
	cat := NewTableCatalog()
	cat.RegisterTable("t", hf, desc)
	cfg := DefaultConfig()
	cfg.PoolCapacity = poolCapacity
	lm := NewLockManager(cfg)
	pool := NewBufferPool(cfg, cat, lm)
	return hf, desc, pool
}

func TestBufferPool_GetPageCaches(t *testing.T) {
	hf, _, pool := smallPoolEnv(t, 10)
	tid := NewTxID()
	hpid := NewHeapPageID(hf.TableID(), 0)
	p1, err := pool.GetPage(tid, hpid, Shared)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	p2, err := pool.GetPage(tid, hpid, Shared)
	if err != nil {
		t.Fatalf("GetPage again: %v", err)
	}
	if p1 != p2 {
		t.Fatal("expected the same cached page instance on a second GetPage")
	}
}

func TestBufferPool_InsertThenCommitPersists(t *testing.T) {
	hf, desc, pool := smallPoolEnv(t, 10)
	tid := NewTxID()
	tup, _ := NewTuple(desc, IntField{Value: 1}, IntField{Value: 2})
	if err := pool.InsertTuple(tid, hf.TableID(), tup); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	if err := pool.TransactionComplete(tid, true); err != nil {
		t.Fatalf("TransactionComplete: %v", err)
	}

	// Fresh pool over the same on-disk file should see the committed row.
	cat := NewTableCatalog()
	cat.RegisterTable("t", hf, desc)
	cfg := DefaultConfig()
	pool2 := NewBufferPool(cfg, cat, NewLockManager(cfg))
	tid2 := NewTxID()
	it := hf.Iterator(tid2, pool2)
	got, err := it.Next()
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if got == nil {
		t.Fatal("expected committed tuple to be visible")
	}
}

func TestBufferPool_AbortDiscardsDirtyPages(t *testing.T) {
	hf, desc, pool := smallPoolEnv(t, 10)
	tid := NewTxID()
	tup, _ := NewTuple(desc, IntField{Value: 1}, IntField{Value: 2})
	if err := pool.InsertTuple(tid, hf.TableID(), tup); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	if err := pool.TransactionComplete(tid, false); err != nil {
		t.Fatalf("TransactionComplete(abort): %v", err)
	}

	tid2 := NewTxID()
	hpid := NewHeapPageID(hf.TableID(), 0)
	page, err := pool.GetPage(tid2, hpid, Shared)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if page.(*HeapPage).NumUnusedSlots() != 504 {
		t.Fatal("expected aborted insert to leave the page with no committed rows")
	}
}

func TestBufferPool_EvictsCleanPagesUnderCapacity(t *testing.T) {
	hf, desc, pool := smallPoolEnv(t, 2)
	tid := NewTxID()

	for i := 0; i < 5; i++ {
		tup, _ := NewTuple(desc, IntField{Value: int32(i)}, IntField{Value: int32(i)})
		if err := pool.InsertTuple(tid, hf.TableID(), tup); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if err := pool.TransactionComplete(tid, true); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
		tid = NewTxID()
	}

	total := pool.young.size + pool.old.size
	if total > 2 {
		t.Fatalf("cached frame count = %d, want at most pool capacity 2", total)
	}
}

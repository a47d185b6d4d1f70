package tests

import (
	"path/filepath"
	"testing"

	"github.com/Giulio2002/fastfair"
)

// TestReopenScenarios exercises the public API across close/reopen
// boundaries.
func TestReopenScenarios(t *testing.T) {
	t.Run("BasicInsertReopen", testBasicInsertReopen)
	t.Run("ReopenAfterSplits", testReopenAfterSplits)
	t.Run("ReopenAfterDeletes", testReopenAfterDeletes)
	t.Run("ReopenTwice", testReopenTwice)
	t.Run("ReopenIgnoresPoolSize", testReopenIgnoresPoolSize)
}

func testBasicInsertReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.data")

	{
		tr, err := fastfair.Open(path, fastfair.WithPoolSize(64<<20))
		if err != nil {
			t.Fatal(err)
		}
		for i := int64(1); i <= 1000; i++ {
			if err := tr.Insert(i, uint64(i)); err != nil {
				t.Fatal(err)
			}
		}
		if err := tr.Close(); err != nil {
			t.Fatal(err)
		}
	}

	tr, err := fastfair.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	for i := int64(1); i <= 1000; i++ {
		if v, ok := tr.Search(i); !ok || v != uint64(i) {
			t.Fatalf("Search(%d) = %d,%v after reopen", i, v, ok)
		}
	}
	buf := make([]uint64, 1100)
	if n := tr.Range(1, 1001, buf); n != 1000 {
		t.Fatalf("Range(1, 1001) = %d entries, want 1000", n)
	}
}

func testReopenAfterSplits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.data")

	const n = 50000
	{
		tr, err := fastfair.Open(path, fastfair.WithPoolSize(128<<20))
		if err != nil {
			t.Fatal(err)
		}
		for i := int64(0); i < n; i++ {
			if err := tr.Insert(i, uint64(i)|1); err != nil {
				t.Fatal(err)
			}
		}
		if h := tr.Height(); h < 3 {
			t.Fatalf("height = %d before close, want >= 3", h)
		}
		tr.Close()
	}

	tr, err := fastfair.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	if h := tr.Height(); h < 3 {
		t.Fatalf("height = %d after reopen, want >= 3", h)
	}
	if l := tr.Len(); l != n {
		t.Fatalf("Len() = %d after reopen, want %d", l, n)
	}
	for _, i := range []int64{0, 1, n / 3, n / 2, n - 1} {
		if v, ok := tr.Search(i); !ok || v != uint64(i)|1 {
			t.Fatalf("Search(%d) = %d,%v after reopen", i, v, ok)
		}
	}
}

func testReopenAfterDeletes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.data")

	{
		tr, err := fastfair.Open(path, fastfair.WithPoolSize(64<<20))
		if err != nil {
			t.Fatal(err)
		}
		for i := int64(0); i < 1000; i++ {
			if err := tr.Insert(i, uint64(i)|1); err != nil {
				t.Fatal(err)
			}
		}
		for i := int64(0); i < 1000; i += 2 {
			if !tr.Delete(i) {
				t.Fatalf("Delete(%d) returned false", i)
			}
		}
		tr.Close()
	}

	tr, err := fastfair.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	for i := int64(0); i < 1000; i++ {
		_, ok := tr.Search(i)
		if i%2 == 0 && ok {
			t.Fatalf("deleted key %d resurrected by reopen", i)
		}
		if i%2 == 1 && !ok {
			t.Fatalf("key %d lost across reopen", i)
		}
	}
}

func testReopenTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.data")

	for round := 0; round < 3; round++ {
		tr, err := fastfair.Open(path, fastfair.WithPoolSize(64<<20))
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		base := int64(round * 1000)
		for i := base; i < base+1000; i++ {
			if err := tr.Insert(i, uint64(i)|1); err != nil {
				t.Fatal(err)
			}
		}
		// Everything from earlier rounds must still be there.
		for i := int64(0); i < base+1000; i++ {
			if v, ok := tr.Search(i); !ok || v != uint64(i)|1 {
				t.Fatalf("round %d: Search(%d) = %d,%v", round, i, v, ok)
			}
		}
		tr.Close()
	}
}

func testReopenIgnoresPoolSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.data")

	tr, err := fastfair.Open(path, fastfair.WithPoolSize(32<<20))
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Insert(1, 1); err != nil {
		t.Fatal(err)
	}
	tr.Close()

	// A different size option must not disturb an existing pool.
	tr, err = fastfair.Open(path, fastfair.WithPoolSize(256<<20))
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	if v, ok := tr.Search(1); !ok || v != 1 {
		t.Fatalf("Search(1) = %d,%v", v, ok)
	}
}

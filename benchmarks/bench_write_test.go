package benchmarks

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/Giulio2002/fastfair"
	"github.com/Giulio2002/fastfair/internal/keygen"
)

// BenchmarkInsert compares insert throughput against bbolt, the
// closest embedded ordered index with a stable Go implementation.
// bbolt batches writes per transaction since per-key transactions
// would only measure commit fsyncs.
func BenchmarkInsert(b *testing.B) {
	for _, size := range []int{10_000, 100_000} {
		name := formatSize(size)
		b.Run(fmt.Sprintf("SeqInsert_%s/fastfair", name), func(b *testing.B) {
			benchSeqInsertFastfair(b, size)
		})
		b.Run(fmt.Sprintf("SeqInsert_%s/bolt", name), func(b *testing.B) {
			benchSeqInsertBolt(b, size)
		})
		b.Run(fmt.Sprintf("RandInsert_%s/fastfair", name), func(b *testing.B) {
			benchRandInsertFastfair(b, size)
		})
		b.Run(fmt.Sprintf("RandInsert_%s/bolt", name), func(b *testing.B) {
			benchRandInsertBolt(b, size)
		})
	}
}

func formatSize(n int) string {
	if n >= 1_000 {
		return fmt.Sprintf("%dk", n/1_000)
	}
	return fmt.Sprintf("%d", n)
}

func openBenchTree(b *testing.B) *fastfair.Tree {
	b.Helper()
	path := filepath.Join(b.TempDir(), "bench.data")
	tr, err := fastfair.Open(path, fastfair.WithPoolSize(1<<30))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { tr.Close() })
	return tr
}

func openBenchBolt(b *testing.B) *bolt.DB {
	b.Helper()
	path := filepath.Join(b.TempDir(), "bench.bolt")
	db, err := bolt.Open(path, 0644, &bolt.Options{NoSync: true})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { db.Close() })
	return db
}

var benchBucket = []byte("bench")

func benchSeqInsertFastfair(b *testing.B, size int) {
	tr := openBenchTree(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := 0; j < size; j++ {
			k := int64(i*size + j + 1)
			if err := tr.Insert(k, uint64(k)); err != nil {
				b.Fatal(err)
			}
		}
	}
	b.ReportMetric(float64(size), "keys/op")
}

func benchRandInsertFastfair(b *testing.B, size int) {
	tr := openBenchTree(b)
	gen := keygen.New(1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := 0; j < size; j++ {
			k := gen.Next()
			if err := tr.Insert(k, uint64(k)|1); err != nil {
				b.Fatal(err)
			}
		}
	}
	b.ReportMetric(float64(size), "keys/op")
}

func benchSeqInsertBolt(b *testing.B, size int) {
	db := openBenchBolt(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := db.Update(func(tx *bolt.Tx) error {
			bkt, err := tx.CreateBucketIfNotExists(benchBucket)
			if err != nil {
				return err
			}
			var key [8]byte
			for j := 0; j < size; j++ {
				binary.BigEndian.PutUint64(key[:], uint64(i*size+j+1))
				if err := bkt.Put(key[:], key[:]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}
	b.ReportMetric(float64(size), "keys/op")
}

func benchRandInsertBolt(b *testing.B, size int) {
	db := openBenchBolt(b)
	gen := keygen.New(1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := db.Update(func(tx *bolt.Tx) error {
			bkt, err := tx.CreateBucketIfNotExists(benchBucket)
			if err != nil {
				return err
			}
			var key [8]byte
			for j := 0; j < size; j++ {
				binary.BigEndian.PutUint64(key[:], uint64(gen.Next()))
				if err := bkt.Put(key[:], key[:]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}
	b.ReportMetric(float64(size), "keys/op")
}

package bench_test

import (
	"math/rand/v2"
	"testing"

	dataset "github.com/luhtfiimanal/go-ensemble-archive"
	"github.com/luhtfiimanal/go-ensemble-archive/value"
)

const benchEnsemble = 500

// BenchmarkGetRandom reads one random measurement per iteration.
func BenchmarkGetRandom(b *testing.B) {
	for _, mmap := range []bool{true, false} {
		ds, db := prepareStores(b, benchEnsemble, dataset.WithMmap(mmap))
		defer db.Close()
		indexRand := rand.New(rand.NewPCG(42, 0))

		name := "archive-read"
		if mmap {
			name = "archive-mmap"
		}
		b.Run(name, func(bb *testing.B) {
			for i := 0; i < bb.N; i++ {
				if _, err := ds.Get(indexRand.IntN(benchEnsemble)); err != nil {
					bb.Fatalf("archive read: %v", err)
				}
			}
		})

		if mmap {
			b.Run("sqlite", func(bb *testing.B) {
				for i := 0; i < bb.N; i++ {
					readSQLite(bb, db, indexRand.IntN(benchEnsemble))
				}
			})
		}
	}
}

// BenchmarkJackknife measures a cached and an uncached jackknife over the
// whole ensemble.
func BenchmarkJackknife(b *testing.B) {
	ds, db := prepareStores(b, benchEnsemble)
	db.Close()
	identity := func(v value.Value, _ ...any) (value.Value, error) { return v, nil }

	for _, cached := range []bool{true, false} {
		name := "uncached"
		if cached {
			name = "cached"
		}
		b.Run(name, func(bb *testing.B) {
			for i := 0; i < bb.N; i++ {
				if _, _, err := ds.Jackknife(identity, dataset.WithBinSize(10), dataset.WithCache(cached)); err != nil {
					bb.Fatalf("jackknife: %v", err)
				}
			}
		})
	}
}

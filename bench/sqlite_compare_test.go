package bench_test

import (
	"context"
	"database/sql"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	dataset "github.com/luhtfiimanal/go-ensemble-archive"
	"github.com/luhtfiimanal/go-ensemble-archive/value"
)

const vectorLen = 16

func randomVector(r *rand.Rand) value.Array {
	data := make([]float64, vectorLen)
	for i := range data {
		data[i] = r.NormFloat64()
	}
	return value.Vector(data...)
}

// prepareStores writes total vectors into an archive and an in-memory sqlite
// table holding the same binary payloads.
func prepareStores(tb testing.TB, total int, opts ...dataset.Option) (*dataset.DataSet, *sql.DB) {
	tb.Helper()
	r := rand.New(rand.NewPCG(42, 7))

	path := filepath.Join(tb.TempDir(), "ensemble.zip")
	ds, err := dataset.Create(dataset.ArrayOf(vectorLen), path, opts...)
	if err != nil {
		tb.Fatalf("create archive: %v", err)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `CREATE TABLE meas (id INTEGER PRIMARY KEY, payload BLOB, first REAL);`); err != nil {
		tb.Fatalf("create table: %v", err)
	}
	stmt, err := db.PrepareContext(ctx, `INSERT INTO meas (id, payload, first) VALUES (?, ?, ?);`)
	if err != nil {
		tb.Fatalf("prepare: %v", err)
	}
	defer stmt.Close()

	for i := 0; i < total; i++ {
		v := randomVector(r)
		if err := ds.Add(v); err != nil {
			tb.Fatalf("archive add %d: %v", i, err)
		}
		payload, err := value.MarshalBinary(v)
		if err != nil {
			tb.Fatalf("marshal %d: %v", i, err)
		}
		if _, err := stmt.ExecContext(ctx, i, payload, v.Data[0]); err != nil {
			tb.Fatalf("sqlite insert %d: %v", i, err)
		}
	}
	return ds, db
}

func readSQLite(tb testing.TB, db *sql.DB, id int) value.Value {
	tb.Helper()
	var payload []byte
	if err := db.QueryRow(`SELECT payload FROM meas WHERE id=?;`, id).Scan(&payload); err != nil {
		tb.Fatalf("sqlite read %d: %v", id, err)
	}
	v, err := value.UnmarshalBinary(payload, nil)
	if err != nil {
		tb.Fatalf("sqlite decode %d: %v", id, err)
	}
	return v
}

// TestCompareWithSQLite checks that the archive returns the same measurements
// and the same sample mean as sqlite.
func TestCompareWithSQLite(t *testing.T) {
	const total = 200
	ds, db := prepareStores(t, total, dataset.WithMethod(dataset.MethodZstd))
	defer db.Close()

	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		idx := r.IntN(total)
		got, err := ds.Get(idx)
		if err != nil {
			t.Fatalf("archive read %d: %v", idx, err)
		}
		if want := readSQLite(t, db, idx); !value.Equal(want, got) {
			t.Fatalf("mismatch for index %d: archive=%v sqlite=%v", idx, got, want)
		}
	}

	mean, _, err := ds.Statistics()
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	var avg float64
	if err := db.QueryRow(`SELECT AVG(first) FROM meas;`).Scan(&avg); err != nil {
		t.Fatalf("sqlite avg: %v", err)
	}
	if got := mean.(value.Array).Data[0]; math.Abs(got-avg) > 1e-9 {
		t.Fatalf("mean of first component: archive=%g sqlite=%g", got, avg)
	}
}

// BenchmarkAppend compares appending one measurement.
func BenchmarkAppend(b *testing.B) {
	r := rand.New(rand.NewPCG(42, 7))

	b.Run("archive", func(bb *testing.B) {
		ds, err := dataset.Create(dataset.ArrayOf(vectorLen), filepath.Join(bb.TempDir(), "append.zip"))
		if err != nil {
			bb.Fatalf("create archive: %v", err)
		}
		for i := 0; i < bb.N; i++ {
			if err := ds.Add(randomVector(r)); err != nil {
				bb.Fatalf("add: %v", err)
			}
		}
	})

	b.Run("sqlite", func(bb *testing.B) {
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			bb.Fatalf("open sqlite: %v", err)
		}
		defer db.Close()
		_, _ = db.Exec(`CREATE TABLE meas (id INTEGER PRIMARY KEY, payload BLOB, first REAL);`)
		stmt, _ := db.Prepare(`INSERT INTO meas (id, payload, first) VALUES (?, ?, ?);`)
		for i := 0; i < bb.N; i++ {
			v := randomVector(r)
			payload, _ := value.MarshalBinary(v)
			if _, err := stmt.Exec(i, payload, v.Data[0]); err != nil {
				bb.Fatalf("insert: %v", err)
			}
		}
	})
}

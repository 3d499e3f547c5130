package dataset

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/go-ensemble-archive/value"
)

const tol = 1e-12

func TestJackknifeScalar(t *testing.T) {
	for _, cached := range []bool{true, false} {
		ds := newTestSet(t, []float64{1, 2, 3, 4, 5})
		mean, std, err := ds.Jackknife(identity, WithCache(cached))
		require.NoError(t, err)
		require.InDelta(t, 3.0, asFloat(t, mean), tol)
		require.InDelta(t, math.Sqrt(0.5), asFloat(t, std), tol)
	}
}

func TestJackknifeBinned(t *testing.T) {
	// bins of size 2: [1.5 3.5 5.5]
	ds := newTestSet(t, []float64{1, 2, 3, 4, 5, 6})
	mean, std, err := ds.Jackknife(identity, WithBinSize(2))
	require.NoError(t, err)
	require.InDelta(t, 3.5, asFloat(t, mean), tol)
	// resamples [4.5 3.5 2.5]: sqrt(2 * 2/3)
	require.InDelta(t, math.Sqrt(4.0/3.0), asFloat(t, std), tol)
}

func TestJackknifeDatum(t *testing.T) {
	ds := newTestSet(t, []float64{1, 2, 3, 4, 5})
	got, err := ds.JackknifeDatum(0, 1)
	require.NoError(t, err)
	require.InDelta(t, 3.5, asFloat(t, got), tol)

	got, err = ds.JackknifeDatum(4, 1)
	require.NoError(t, err)
	require.InDelta(t, 2.5, asFloat(t, got), tol)

	_, err = ds.JackknifeDatum(0, 0)
	require.ErrorIs(t, err, ErrInvalidParam)
	_, err = ds.JackknifeDatum(5, 1)
	require.ErrorIs(t, err, ErrInvalidParam)
	_, err = ds.JackknifeDatum(3, 2)
	require.ErrorIs(t, err, ErrInvalidParam)
}

func TestJackknifeNeedsTwoBins(t *testing.T) {
	ds := newTestSet(t, []float64{1, 2, 3})
	_, _, err := ds.Jackknife(identity, WithBinSize(3))
	require.ErrorIs(t, err, ErrInvalidParam)
	_, _, err = ds.Jackknife(identity, WithBinSize(3), WithCache(false))
	require.ErrorIs(t, err, ErrInvalidParam)
	_, _, err = ds.Jackknife(identity, WithBinSize(0))
	require.ErrorIs(t, err, ErrInvalidParam)
}

func TestJackknifeWithArgs(t *testing.T) {
	ds := newTestSet(t, []float64{1, 2, 3, 4, 5})
	scale := func(datum value.Value, args ...any) (value.Value, error) {
		return value.Mul(datum, value.Scalar(args[0].(float64)))
	}
	mean, std, err := ds.Jackknife(scale, WithArgs(2.0))
	require.NoError(t, err)
	require.InDelta(t, 6.0, asFloat(t, mean), tol)
	require.InDelta(t, 2*math.Sqrt(0.5), asFloat(t, std), tol)
}

func TestResampleSkipsNilResults(t *testing.T) {
	ds := newTestSet(t, []float64{1, 2, 3, 4, 5})
	none := func(value.Value, ...any) (value.Value, error) { return nil, nil }
	_, _, err := ds.Jackknife(none)
	require.ErrorIs(t, err, value.ErrEmpty)

	boom := errors.New("boom")
	failing := func(value.Value, ...any) (value.Value, error) { return nil, boom }
	_, _, err = ds.Jackknife(failing)
	require.ErrorIs(t, err, boom)
}

func TestBootstrapConstantData(t *testing.T) {
	for _, cached := range []bool{true, false} {
		ds := newTestSet(t, []float64{2, 2, 2, 2}, WithSeed(1))
		mean, std, err := ds.Bootstrap(identity, 10, WithCache(cached))
		require.NoError(t, err)
		require.InDelta(t, 2.0, asFloat(t, mean), tol)
		require.InDelta(t, 0.0, asFloat(t, std), tol)
	}
}

func TestBootstrapSeeded(t *testing.T) {
	vals := []float64{0.3, 1.7, -0.4, 2.2, 0.9}
	src := newTestSet(t, vals)

	run := func(cached bool) (float64, float64) {
		ds, err := Load(src.Path(), WithSeed(42))
		require.NoError(t, err)
		mean, std, err := ds.Bootstrap(identity, len(vals), WithCache(cached))
		require.NoError(t, err)
		return asFloat(t, mean), asFloat(t, std)
	}

	m1, s1 := run(false)
	m2, s2 := run(false)
	require.Equal(t, m1, m2)
	require.Equal(t, s1, s2)
	require.Greater(t, s1, 0.0)

	// with numBootstraps == numBins both paths consume the same draws
	m3, s3 := run(true)
	require.InDelta(t, m1, m3, tol)
	require.InDelta(t, s1, s3, tol)
}

func TestBootstrapMoreBinsThanResamples(t *testing.T) {
	ds := newTestSet(t, []float64{1, 2, 3, 4, 5}, WithSeed(3))
	_, _, err := ds.Bootstrap(identity, 2)
	require.ErrorIs(t, err, ErrResampleMissing)

	_, _, err = ds.Bootstrap(identity, 2, WithCache(false))
	require.NoError(t, err)
}

func TestBootstrapInvalid(t *testing.T) {
	ds := newTestSet(t, []float64{1, 2})
	_, _, err := ds.Bootstrap(identity, 0)
	require.ErrorIs(t, err, ErrInvalidParam)
	_, _, err = ds.Bootstrap(identity, 4, WithBinSize(0))
	require.ErrorIs(t, err, ErrInvalidParam)

	empty := newTestSet(t, nil)
	_, _, err = empty.Bootstrap(identity, 4)
	require.ErrorIs(t, err, ErrInvalidParam)
	_, _, err = empty.Bootstrap(identity, 4, WithCache(false))
	require.ErrorIs(t, err, ErrInvalidParam)
}

func TestMeasure(t *testing.T) {
	ds := newTestSet(t, []float64{1, 2, 3, 4, 5})
	all, err := ds.Measure(identity, nil)
	require.NoError(t, err)
	require.InDelta(t, 3.0, asFloat(t, all), tol)

	some, err := ds.Measure(identity, []int{0, 4})
	require.NoError(t, err)
	require.InDelta(t, 3.0, asFloat(t, some), tol)

	one, err := ds.Measure(identity, []int{1})
	require.NoError(t, err)
	require.InDelta(t, 2.0, asFloat(t, one), tol)

	empty := newTestSet(t, nil)
	_, err = empty.Measure(identity, nil)
	require.ErrorIs(t, err, value.ErrEmpty)
}

func TestStatistics(t *testing.T) {
	ds := newTestSet(t, []float64{1, 2, 3, 4, 5})
	mean, std, err := ds.Statistics()
	require.NoError(t, err)
	require.InDelta(t, 3.0, asFloat(t, mean), tol)
	require.InDelta(t, math.Sqrt2, asFloat(t, std), tol)

	single := newTestSet(t, []float64{7})
	mean, std, err = single.Statistics()
	require.NoError(t, err)
	require.Equal(t, 7.0, asFloat(t, mean))
	require.Equal(t, 0.0, asFloat(t, std))

	empty := newTestSet(t, nil)
	_, _, err = empty.Statistics()
	require.ErrorIs(t, err, value.ErrEmpty)
}

func TestStatisticsMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.zip")
	ds, err := Create(Dict, path)
	require.NoError(t, err)
	for _, v := range []float64{1, 3} {
		require.NoError(t, ds.Add(value.Mapping{"a": value.Scalar(v), "b": value.Vector(v, 2*v)}))
	}
	mean, std, err := ds.Statistics()
	require.NoError(t, err)
	require.True(t, value.Equal(value.Mapping{"a": value.Scalar(2), "b": value.Vector(2, 4)}, mean))
	require.True(t, value.Equal(value.Mapping{"a": value.Scalar(1), "b": value.Vector(1, 2)}, std))
}

func TestJackknifeSingleResult(t *testing.T) {
	ds := newTestSet(t, []float64{1, 2, 3, 4, 5})
	calls := 0
	first := func(datum value.Value, _ ...any) (value.Value, error) {
		calls++
		if calls > 1 {
			return nil, nil
		}
		return datum, nil
	}
	_, _, err := ds.Jackknife(first)
	require.ErrorIs(t, err, value.ErrTooFew)
}

func TestCachedResamplesRepeatable(t *testing.T) {
	ds := newTestSet(t, []float64{0.3, 1.7, -0.4, 2.2, 0.9}, WithSeed(5))

	bm1, bs1, err := ds.Bootstrap(identity, 5)
	require.NoError(t, err)
	jm1, js1, err := ds.Jackknife(identity)
	require.NoError(t, err)
	require.Zero(t, ds.CacheStats().Misses)

	ds.ResetCacheStats()
	bm2, bs2, err := ds.Bootstrap(identity, 5)
	require.NoError(t, err)
	jm2, js2, err := ds.Jackknife(identity)
	require.NoError(t, err)

	require.Equal(t, bm1, bm2)
	require.Equal(t, bs1, bs2)
	require.Equal(t, jm1, jm2)
	require.Equal(t, js1, js2)

	st := ds.CacheStats()
	require.Zero(t, st.Misses)
	require.Equal(t, uint64(10), st.MemoryHits)
}

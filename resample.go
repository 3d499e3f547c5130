package dataset

import (
	"fmt"

	"github.com/luhtfiimanal/go-ensemble-archive/value"
)

// MeasureFunc computes an observable from one (averaged) measurement. A nil
// result with a nil error is skipped by Bootstrap and Jackknife.
type MeasureFunc func(datum value.Value, args ...any) (value.Value, error)

type resampleConfig struct {
	binSize  int
	args     []any
	useCache bool
}

// ResampleOption configures Bootstrap and Jackknife.
type ResampleOption func(*resampleConfig)

// WithBinSize sets the number of consecutive measurements averaged into one
// bin. Default 1.
func WithBinSize(n int) ResampleOption {
	return func(c *resampleConfig) { c.binSize = n }
}

// WithArgs passes extra arguments through to the MeasureFunc.
func WithArgs(args ...any) ResampleOption {
	return func(c *resampleConfig) { c.args = args }
}

// WithCache selects between cached resamples (default) and resampling
// directly from the bins on every call.
func WithCache(on bool) ResampleOption {
	return func(c *resampleConfig) { c.useCache = on }
}

func buildResampleConfig(opts []ResampleOption) (resampleConfig, error) {
	c := resampleConfig{binSize: 1, useCache: true}
	for _, o := range opts {
		o(&c)
	}
	if c.binSize < 1 {
		return c, fmt.Errorf("%w: bin size %d is less than 1", ErrInvalidParam, c.binSize)
	}
	return c, nil
}

// collect applies fn to each resample produced by next and drops nil results.
func collect(n int, fn MeasureFunc, args []any, next func(i int) (value.Value, error)) ([]value.Value, error) {
	out := make([]value.Value, 0, n)
	for i := 0; i < n; i++ {
		datum, err := next(i)
		if err != nil {
			return nil, err
		}
		res, err := fn(datum, args...)
		if err != nil {
			return nil, fmt.Errorf("measure resample %d: %w", i, err)
		}
		if res != nil {
			out = append(out, res)
		}
	}
	if len(out) == 0 {
		return nil, value.ErrEmpty
	}
	return out, nil
}

// Bootstrap estimates fn and its bootstrap error.
//
// With the cache (default) the batch of numBootstraps resamples is generated
// once per bin size and the estimate is taken over the first NumBins(binSize)
// cached resamples. A data set with more bins than numBootstraps therefore
// fails with ErrResampleMissing. Without the cache numBootstraps fresh
// resamples are drawn.
func (d *DataSet) Bootstrap(fn MeasureFunc, numBootstraps int, opts ...ResampleOption) (mean, std value.Value, err error) {
	c, err := buildResampleConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	if numBootstraps < 1 {
		return nil, nil, fmt.Errorf("%w: %d bootstraps", ErrInvalidParam, numBootstraps)
	}

	var results []value.Value
	if c.useCache {
		if !d.cached[resampleBatch{kind: kindBootstrap, binSize: c.binSize}] {
			if err := d.GenerateBootstrapCache(numBootstraps, c.binSize); err != nil {
				return nil, nil, err
			}
		}
		results, err = collect(d.NumBins(c.binSize), fn, c.args, func(i int) (value.Value, error) {
			return d.bootstrapDatum(c.binSize, i, numBootstraps)
		})
	} else {
		bins, berr := d.Bins(c.binSize)
		if berr != nil {
			return nil, nil, berr
		}
		if len(bins) == 0 {
			return nil, nil, fmt.Errorf("%w: data set is empty", ErrInvalidParam)
		}
		results, err = collect(numBootstraps, fn, c.args, func(int) (value.Value, error) {
			return d.drawBootstrap(bins)
		})
	}
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}
	return meanAndError(results, value.Std)
}

// Jackknife estimates fn over the leave-one-bin-out resamples and returns the
// mean and the jackknife error.
func (d *DataSet) Jackknife(fn MeasureFunc, opts ...ResampleOption) (mean, std value.Value, err error) {
	c, err := buildResampleConfig(opts)
	if err != nil {
		return nil, nil, err
	}

	var results []value.Value
	if c.useCache {
		if !d.cached[resampleBatch{kind: kindJackknife, binSize: c.binSize}] {
			if err := d.GenerateJackknifeCache(c.binSize); err != nil {
				return nil, nil, err
			}
		}
		results, err = collect(d.NumBins(c.binSize), fn, c.args, func(i int) (value.Value, error) {
			return d.jackknifeDatum(c.binSize, i)
		})
	} else {
		bins, berr := d.Bins(c.binSize)
		if berr != nil {
			return nil, nil, berr
		}
		total, terr := jackknifeTotal(bins)
		if terr != nil {
			return nil, nil, terr
		}
		results, err = collect(len(bins), fn, c.args, func(i int) (value.Value, error) {
			return jackknifeResample(total, bins[i], len(bins))
		})
	}
	if err != nil {
		return nil, nil, fmt.Errorf("jackknife: %w", err)
	}
	return meanAndError(results, value.JackknifeStd)
}

func meanAndError(results []value.Value, spread func([]value.Value) (value.Value, error)) (value.Value, value.Value, error) {
	mean, err := value.Mean(results)
	if err != nil {
		return nil, nil, err
	}
	std, err := spread(results)
	if err != nil {
		return nil, nil, err
	}
	return mean, std, nil
}

// JackknifeDatum computes the resample that leaves out bin index, bypassing
// the cache.
func (d *DataSet) JackknifeDatum(index, binSize int) (value.Value, error) {
	if binSize < 1 {
		return nil, fmt.Errorf("%w: bin size %d is less than 1", ErrInvalidParam, binSize)
	}
	if index < 0 || index >= d.count {
		return nil, fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalidParam, index, d.count)
	}
	bins, err := d.Bins(binSize)
	if err != nil {
		return nil, err
	}
	if index >= len(bins) {
		return nil, fmt.Errorf("%w: bin %d out of range (%d bins of size %d)", ErrInvalidParam, index, len(bins), binSize)
	}
	total, err := jackknifeTotal(bins)
	if err != nil {
		return nil, err
	}
	return jackknifeResample(total, bins[index], len(bins))
}

// Measure averages the measurements at indices (all of them when indices is
// empty) and applies fn to the average.
func (d *DataSet) Measure(fn MeasureFunc, indices []int, args ...any) (value.Value, error) {
	if len(indices) == 0 {
		indices = make([]int, d.count)
		for i := range indices {
			indices[i] = i
		}
	}
	if len(indices) == 0 {
		return nil, value.ErrEmpty
	}
	vals := make([]value.Value, len(indices))
	for i, idx := range indices {
		var err error
		if vals[i], err = d.Get(idx); err != nil {
			return nil, err
		}
	}
	avg, err := value.Mean(vals)
	if err != nil {
		return nil, fmt.Errorf("measure: %w", err)
	}
	return fn(avg, args...)
}

// Statistics returns the population mean and standard deviation of the
// stored measurements. It makes two passes over the archive and holds at most
// one measurement plus the running sums in memory.
func (d *DataSet) Statistics() (mean, std value.Value, err error) {
	if d.count == 0 {
		return nil, nil, value.ErrEmpty
	}
	var sum value.Value
	it := d.Iter()
	for it.Next() {
		if sum == nil {
			sum = it.Datum()
			continue
		}
		if sum, err = value.Add(sum, it.Datum()); err != nil {
			return nil, nil, fmt.Errorf("statistics: datum %d: %w", it.Index(), err)
		}
	}
	if err := it.Err(); err != nil {
		return nil, nil, err
	}
	if mean, err = value.DivScalar(sum, float64(d.count)); err != nil {
		return nil, nil, err
	}

	var ss value.Value
	it = d.Iter()
	for it.Next() {
		diff, err := value.Sub(it.Datum(), mean)
		if err != nil {
			return nil, nil, fmt.Errorf("statistics: datum %d: %w", it.Index(), err)
		}
		sq, err := value.Mul(diff, diff)
		if err != nil {
			return nil, nil, err
		}
		if ss == nil {
			ss = sq
			continue
		}
		if ss, err = value.Add(ss, sq); err != nil {
			return nil, nil, err
		}
	}
	if err := it.Err(); err != nil {
		return nil, nil, err
	}
	variance, err := value.DivScalar(ss, float64(d.count))
	if err != nil {
		return nil, nil, err
	}
	if std, err = value.Sqrt(variance); err != nil {
		return nil, nil, err
	}
	return mean, std, nil
}

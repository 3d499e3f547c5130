package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/luhtfiimanal/go-ensemble-archive/value"
)

type resampleKind string

const (
	kindBootstrap resampleKind = "bootstrap"
	kindJackknife resampleKind = "jackknife"
)

// resampleBatch identifies every record generated together: all bootstraps or
// all jackknifes for one bin size.
type resampleBatch struct {
	kind    resampleKind
	binSize int
}

func (d *DataSet) resampleName(kind resampleKind, binSize, index int) string {
	return fmt.Sprintf("%s_%s_binsize%d_%d", d.elem.Name, kind, binSize, index)
}

// GenerateBootstrapCache draws numBootstraps bootstrap resamples of the
// binned data and caches them. Each resample averages numBins bins drawn
// uniformly with replacement.
func (d *DataSet) GenerateBootstrapCache(numBootstraps, binSize int) error {
	if binSize < 1 {
		return fmt.Errorf("%w: bin size %d is less than 1", ErrInvalidParam, binSize)
	}
	if numBootstraps < 1 {
		return fmt.Errorf("%w: %d bootstraps", ErrInvalidParam, numBootstraps)
	}
	bins, err := d.Bins(binSize)
	if err != nil {
		return err
	}
	if len(bins) == 0 {
		return fmt.Errorf("%w: data set is empty", ErrInvalidParam)
	}
	d.log.Debug("generating bootstrap cache", zap.String("path", d.path),
		zap.Int("bootstraps", numBootstraps), zap.Int("bin_size", binSize))

	bw := d.newBatchWriter(resampleBatch{kind: kindBootstrap, binSize: binSize})
	for i := 0; i < numBootstraps; i++ {
		datum, err := d.drawBootstrap(bins)
		if err != nil {
			return err
		}
		if err := bw.put(i, datum); err != nil {
			return err
		}
	}
	bw.finish()
	return nil
}

// GenerateJackknifeCache caches the numBins leave-one-bin-out averages.
func (d *DataSet) GenerateJackknifeCache(binSize int) error {
	if binSize < 1 {
		return fmt.Errorf("%w: bin size %d is less than 1", ErrInvalidParam, binSize)
	}
	bins, err := d.Bins(binSize)
	if err != nil {
		return err
	}
	total, err := jackknifeTotal(bins)
	if err != nil {
		return err
	}
	d.log.Debug("generating jackknife cache", zap.String("path", d.path),
		zap.Int("bins", len(bins)), zap.Int("bin_size", binSize))

	bw := d.newBatchWriter(resampleBatch{kind: kindJackknife, binSize: binSize})
	for i, b := range bins {
		datum, err := jackknifeResample(total, b, len(bins))
		if err != nil {
			return err
		}
		if err := bw.put(i, datum); err != nil {
			return err
		}
	}
	bw.finish()
	return nil
}

// drawBootstrap averages len(bins) bins drawn with replacement.
func (d *DataSet) drawBootstrap(bins []value.Value) (value.Value, error) {
	n := len(bins)
	out := bins[d.opts.Rand.IntN(n)]
	for j := 1; j < n; j++ {
		var err error
		if out, err = value.Add(out, bins[d.opts.Rand.IntN(n)]); err != nil {
			return nil, err
		}
	}
	return value.DivScalar(out, float64(n))
}

func jackknifeTotal(bins []value.Value) (value.Value, error) {
	if len(bins) < 2 {
		return nil, fmt.Errorf("%w: jackknife needs at least 2 bins, have %d", ErrInvalidParam, len(bins))
	}
	return sumValues(bins)
}

// jackknifeResample returns (total - bin) / (numBins - 1).
func jackknifeResample(total, bin value.Value, numBins int) (value.Value, error) {
	rest, err := value.Sub(total, bin)
	if err != nil {
		return nil, err
	}
	return value.DivScalar(rest, float64(numBins-1))
}

// batchWriter stores the records of one batch in memory until the cache
// budget is exhausted, then moves the whole batch to the disk cache.
type batchWriter struct {
	d      *DataSet
	batch  resampleBatch
	names  []string
	onDisk bool
}

func (d *DataSet) newBatchWriter(batch resampleBatch) *batchWriter {
	return &batchWriter{d: d, batch: batch}
}

func (bw *batchWriter) put(index int, v value.Value) error {
	d := bw.d
	name := d.resampleName(bw.batch.kind, bw.batch.binSize, index)
	if !bw.onDisk {
		size := value.Footprint(v)
		var prev int64
		if old, ok := d.cache[name]; ok {
			prev = value.Footprint(old)
		}
		if d.opts.CacheBudget <= 0 || d.cacheBytes-prev+size <= d.opts.CacheBudget {
			d.cache[name] = v
			d.cacheBytes += size - prev
			bw.names = append(bw.names, name)
			return nil
		}
		d.log.Warn("resample cache over memory budget, falling back to disk",
			zap.String("kind", string(bw.batch.kind)), zap.Int("bin_size", bw.batch.binSize),
			zap.Int64("budget", d.opts.CacheBudget), zap.String("dir", d.cacheDir))
		if err := bw.spill(); err != nil {
			return err
		}
		bw.onDisk = true
	}
	d.evict(name)
	return d.writeCacheFile(name, v)
}

// spill moves the records already kept in memory to disk.
func (bw *batchWriter) spill() error {
	for _, name := range bw.names {
		if err := bw.d.writeCacheFile(name, bw.d.cache[name]); err != nil {
			return err
		}
		bw.d.evict(name)
	}
	bw.names = nil
	return nil
}

func (bw *batchWriter) finish() {
	bw.d.cached[bw.batch] = true
}

func (d *DataSet) evict(name string) {
	if old, ok := d.cache[name]; ok {
		d.cacheBytes -= value.Footprint(old)
		delete(d.cache, name)
	}
}

// writeCacheFile stores one record as a zstd frame in the cache directory.
func (d *DataSet) writeCacheFile(name string, v value.Value) error {
	if err := os.MkdirAll(d.cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	data, ext, err := encodeDatum(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	frame, err := compressFrame(data)
	if err != nil {
		return err
	}
	// a record of the same name in the other format would shadow this one
	for _, other := range entryExts {
		if other != ext {
			os.Remove(filepath.Join(d.cacheDir, name+other))
		}
	}
	if err := os.WriteFile(filepath.Join(d.cacheDir, name+ext), frame, 0o644); err != nil {
		return fmt.Errorf("write cache file %s: %w", name, err)
	}
	return nil
}

// readCacheFile loads one record from the cache directory. A missing record
// returns an error wrapping fs.ErrNotExist.
func (d *DataSet) readCacheFile(name string) (value.Value, error) {
	for _, ext := range entryExts {
		frame, err := os.ReadFile(filepath.Join(d.cacheDir, name+ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read cache file %s: %w", name, err)
		}
		data, err := decompressFrame(frame)
		if err != nil {
			return nil, fmt.Errorf("cache file %s: %w", name, err)
		}
		v, err := decodeDatum(name+ext, data)
		if err != nil {
			return nil, fmt.Errorf("cache file %s: %w", name, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("cache file %s: %w", name, fs.ErrNotExist)
}

// lookupResample checks memory, then disk.
func (d *DataSet) lookupResample(name string) (value.Value, bool, error) {
	if v, ok := d.cache[name]; ok {
		atomic.AddUint64(&d.statMemHits, 1)
		return v, true, nil
	}
	v, err := d.readCacheFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	atomic.AddUint64(&d.statDiskHits, 1)
	return v, true, nil
}

// cachedResample returns a record, regenerating its batch once on a miss.
func (d *DataSet) cachedResample(name string, regenerate func() error) (value.Value, error) {
	v, ok, err := d.lookupResample(name)
	if err != nil || ok {
		return v, err
	}
	atomic.AddUint64(&d.statMisses, 1)
	d.log.Debug("resample cache miss, regenerating batch", zap.String("record", name))
	if err := regenerate(); err != nil {
		return nil, err
	}
	v, ok, err = d.lookupResample(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResampleMissing, name)
	}
	return v, nil
}

func (d *DataSet) bootstrapDatum(binSize, index, numBootstraps int) (value.Value, error) {
	return d.cachedResample(d.resampleName(kindBootstrap, binSize, index), func() error {
		return d.GenerateBootstrapCache(numBootstraps, binSize)
	})
}

func (d *DataSet) jackknifeDatum(binSize, index int) (value.Value, error) {
	return d.cachedResample(d.resampleName(kindJackknife, binSize, index), func() error {
		return d.GenerateJackknifeCache(binSize)
	})
}

package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/luhtfiimanal/go-ensemble-archive/value"
)

// DataSet is an ensemble of measurements of one element type stored in a zip
// archive, together with its bootstrap/jackknife resample cache.
//
// Every read or write opens its own handle on the archive; nothing is kept
// open between calls. A DataSet is not safe for concurrent use.
type DataSet struct {
	elem      ElementType
	path      string
	count     int
	method    Method
	largeFile bool
	opts      Options
	log       *zap.Logger

	cache      map[string]value.Value // resample name -> record
	cacheBytes int64
	cached     map[resampleBatch]bool
	cacheDir   string

	statMemHits  uint64
	statDiskHits uint64
	statMisses   uint64
}

// Create writes a new, empty archive at path holding only the element type
// record. An existing file at path is replaced.
//
// If the requested compression method cannot be used, Create logs a warning
// and falls back to an uncompressed archive without zip64 support.
func Create(elem ElementType, path string, opts ...Option) (*DataSet, error) {
	if err := elem.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	d := newDataSet(elem, abs, o)
	err = d.writeEmpty()
	if errors.Is(err, zip.ErrAlgorithm) {
		d.log.Warn("compression backend unavailable, continuing uncompressed in small-file mode",
			zap.String("path", abs), zap.Stringer("method", d.method), zap.Error(err))
		d.method, d.largeFile = MethodStore, false
		err = d.writeEmpty()
	}
	if err != nil {
		return nil, err
	}
	d.log.Debug("created data set", zap.String("path", abs), zap.Stringer("type", elem),
		zap.Stringer("method", d.method), zap.Bool("large_file", d.largeFile))
	return d, nil
}

// Load opens an existing archive. The element type, compression method and
// zip64 flag come from the stored type record; the count is one past the
// highest stored index.
func Load(path string, opts ...Option) (*DataSet, error) {
	o := buildOptions(opts)
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	var (
		rec   typeRecord
		names []string
	)
	err = withArchive(abs, o.UseMmap, func(r *zip.Reader) error {
		f := findFile(r, typeEntry)
		if f == nil {
			return fmt.Errorf("dataset: %s has no %q entry", abs, typeEntry)
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open type record: %w", err)
		}
		defer rc.Close()
		if rec, err = readTypeRecord(rc); err != nil {
			return err
		}
		for _, f := range r.File {
			names = append(names, f.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	elem, err := rec.elementType()
	if err != nil {
		return nil, err
	}
	if elem.Kind == value.KindOpaque {
		if _, err := lookupMeasurement(elem.Name); err != nil {
			return nil, err
		}
	}
	o.Method, o.LargeFile = Method(rec.Method), rec.LargeFile

	d := newDataSet(elem, abs, o)
	d.count = countEntries(elem.Name, names)
	d.log.Debug("loaded data set", zap.String("path", abs), zap.Stringer("type", elem), zap.Int("count", d.count))
	return d, nil
}

func newDataSet(elem ElementType, abs string, o Options) *DataSet {
	cacheDir := o.CacheDir
	if cacheDir == "" {
		cacheDir = strings.TrimSuffix(abs, filepath.Ext(abs)) + "cache"
	}
	return &DataSet{
		elem:      elem,
		path:      abs,
		method:    o.Method,
		largeFile: o.LargeFile,
		opts:      o,
		log:       o.Logger,
		cache:     make(map[string]value.Value),
		cached:    make(map[resampleBatch]bool),
		cacheDir:  cacheDir,
	}
}

// countEntries returns max(index)+1 over the datum entries of type name,
// ignoring resample entries, or 0 if there are none.
func countEntries(name string, entries []string) int {
	count := 0
	for _, e := range entries {
		if !strings.HasPrefix(e, name) {
			continue
		}
		// resample records are named <name>_<kind>_binsize<b>_<i>
		rest := e[len(name):]
		if strings.HasPrefix(rest, "_") {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(rest, filepath.Ext(rest)))
		if err != nil || idx < 0 {
			continue
		}
		if idx+1 > count {
			count = idx + 1
		}
	}
	return count
}

// Len returns the number of stored measurements.
func (d *DataSet) Len() int { return d.count }

// Path returns the absolute archive path.
func (d *DataSet) Path() string { return d.path }

// ElementType returns the element type descriptor.
func (d *DataSet) ElementType() ElementType { return d.elem }

// Compressed reports whether entries are compressed.
func (d *DataSet) Compressed() bool { return d.method != MethodStore }

// Method returns the entry compression method.
func (d *DataSet) Method() Method { return d.method }

// LargeFile reports whether zip64 archives over 2 GiB are allowed.
func (d *DataSet) LargeFile() bool { return d.largeFile }

// CacheDir returns the on-disk resample cache directory.
func (d *DataSet) CacheDir() string { return d.cacheDir }

func (d *DataSet) String() string {
	return fmt.Sprintf("Data Set Object\n---------------\nData type: %s\nData file: %s\nNumber of data: %d",
		d.elem, d.path, d.count)
}

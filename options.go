package dataset

import (
	"math/rand/v2"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Method is the zip compression method used for archive entries.
type Method uint16

const (
	MethodStore   Method = Method(zip.Store)
	MethodDeflate Method = Method(zip.Deflate)
	MethodZstd    Method = Method(zstd.ZipMethodWinZip)
)

func (m Method) String() string {
	switch m {
	case MethodStore:
		return "store"
	case MethodDeflate:
		return "deflate"
	case MethodZstd:
		return "zstd"
	}
	return "unknown"
}

// Options configures a DataSet.
//
//   - Method:      compression of archive entries (store, deflate, zstd)
//   - LargeFile:   allow zip64 archives beyond 2 GiB
//   - UseMmap:     map the archive read-only while reading an entry
//   - CacheBudget: bytes of resamples kept in memory before spilling to disk (0 = unlimited)
//   - CacheDir:    on-disk resample cache directory ("" = <archive path without ext>cache)
//   - Rand:        random source for bootstrap draws
//   - Logger:      structured logger (nil = no-op)
type Options struct {
	Method      Method
	LargeFile   bool
	UseMmap     bool
	CacheBudget int64
	CacheDir    string
	Rand        *rand.Rand
	Logger      *zap.Logger
}

// DefaultOptions returns the configuration used by Create and Load when no
// options are given.
func DefaultOptions() Options {
	return Options{
		Method:    MethodDeflate,
		LargeFile: true,
		UseMmap:   true,
	}
}

// Option mutates Options.
type Option func(*Options)

// WithCompression selects deflate (true) or store (false), like the compress
// flag of the on-disk format.
func WithCompression(compress bool) Option {
	return func(o *Options) {
		if compress {
			o.Method = MethodDeflate
		} else {
			o.Method = MethodStore
		}
	}
}

// WithMethod selects the compression method directly.
func WithMethod(m Method) Option { return func(o *Options) { o.Method = m } }

// WithLargeFile toggles zip64 support.
func WithLargeFile(on bool) Option { return func(o *Options) { o.LargeFile = on } }

// WithMmap toggles memory-mapped reads.
func WithMmap(on bool) Option { return func(o *Options) { o.UseMmap = on } }

// WithCacheBudget limits the in-memory resample cache to n bytes.
func WithCacheBudget(n int64) Option { return func(o *Options) { o.CacheBudget = n } }

// WithCacheDir overrides the on-disk resample cache directory.
func WithCacheDir(dir string) Option { return func(o *Options) { o.CacheDir = dir } }

// WithSeed seeds the bootstrap random source.
func WithSeed(seed uint64) Option {
	return func(o *Options) { o.Rand = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithRand installs a caller-owned random source.
func WithRand(r *rand.Rand) Option { return func(o *Options) { o.Rand = r } }

// WithLogger installs a logger.
func WithLogger(l *zap.Logger) Option { return func(o *Options) { o.Logger = l } }

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if o.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		o.Rand = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

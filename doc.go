// Package dataset stores an ensemble of Monte Carlo measurements in a single
// zip archive and estimates observables with their bootstrap and jackknife
// errors.
//
// Measurements are value.Value trees (scalars, arrays, sequences, mappings or
// registered opaque types). Each one is written as its own archive entry and
// read back on demand, so an ensemble larger than memory can still be binned
// and resampled.
//
// The package is organised by concern:
//
//	options.go     – functional options & defaults
//	element.go     – element type descriptors & opaque type registry
//	config.go      – the JSON "type" record stored in every archive
//	dataset.go     – Create, Load & accessors
//	io.go          – entry append, Get, iteration
//	mmap.go        – read-only archive views
//	codec.go       – entry & cache-file encoding
//	bin.go         – bin averages
//	cache.go       – bootstrap/jackknife resample cache
//	resample.go    – Bootstrap, Jackknife, Measure, Statistics
//	stats.go       – cache hit/miss counters
//	flush_close.go – persisting & releasing the resample cache
//	buffer.go      – pooled read buffers
//
// Typical use:
//
//	ds, err := dataset.Create(dataset.Float, "plaq.zip", dataset.WithSeed(7))
//	...
//	for _, p := range plaquettes {
//		if err := ds.Add(value.Scalar(p)); err != nil { ... }
//	}
//	mean, stderr, err := ds.Jackknife(identity, dataset.WithBinSize(10))
package dataset

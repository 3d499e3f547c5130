package dataset

import "sync/atomic"

// CacheStats counts resample cache lookups. HitRatio is a percentage (0-100).
type CacheStats struct {
	MemoryHits uint64
	DiskHits   uint64
	Misses     uint64 // lookups that regenerated a batch
	HitRatio   float64
	Records    int   // records held in memory
	Bytes      int64 // estimated bytes held in memory
}

// CacheStats returns a snapshot of the resample cache counters.
func (d *DataSet) CacheStats() CacheStats {
	mem := atomic.LoadUint64(&d.statMemHits)
	disk := atomic.LoadUint64(&d.statDiskHits)
	misses := atomic.LoadUint64(&d.statMisses)
	total := mem + disk + misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(mem+disk) / float64(total) * 100.0
	}
	return CacheStats{
		MemoryHits: mem,
		DiskHits:   disk,
		Misses:     misses,
		HitRatio:   ratio,
		Records:    len(d.cache),
		Bytes:      d.cacheBytes,
	}
}

// ResetCacheStats zeroes the hit/miss counters.
func (d *DataSet) ResetCacheStats() {
	atomic.StoreUint64(&d.statMemHits, 0)
	atomic.StoreUint64(&d.statDiskHits, 0)
	atomic.StoreUint64(&d.statMisses, 0)
}
